package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/d60-Lab/freed/internal/service"
)

// HTTPTarget 通过触发端点调用（部署为独立进程时使用）。
// Timeout > 0 时限制单次请求；服务端已开始的调用不会因此中断
type HTTPTarget struct {
	Endpoint   string
	ServiceKey string
	Timeout    time.Duration
	Client     *http.Client
}

func (t HTTPTarget) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (t HTTPTarget) Invoke(ctx context.Context) (*service.RunSummary, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	if t.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.ServiceKey)
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("call trigger endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		var summary service.RunSummary
		if err := json.Unmarshal(body, &summary); err != nil {
			return nil, fmt.Errorf("decode run summary: %w", err)
		}
		return &summary, nil
	}

	var envelope struct {
		Error *service.TriggerError `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return nil, envelope.Error
	}
	return nil, fmt.Errorf("trigger endpoint returned %d", resp.StatusCode)
}
