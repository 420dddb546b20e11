package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/internal/testutil"
	"github.com/d60-Lab/freed/pkg/clock"
)

type blockingTarget struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTarget) Invoke(context.Context) (*service.RunSummary, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return &service.RunSummary{}, nil
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New("every minute", LocalTarget{}, nil)
	assert.Error(t, err)

	_, err = New("@every 1m", nil, nil)
	assert.Error(t, err)

	inv, err := New("*/30 * * * * *", LocalTarget{}, nil)
	require.NoError(t, err)
	require.NoError(t, inv.Stop(context.Background()))
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	target := &blockingTarget{entered: make(chan struct{}, 1), release: make(chan struct{})}
	inv, err := New("@every 1h", target, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = inv.RunOnce(context.Background())
	}()
	<-target.entered

	sum, err := inv.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.EqualValues(t, 1, inv.Skipped())

	close(target.release)
	<-done
	assert.EqualValues(t, 1, inv.Runs())
	assert.Equal(t, 1, target.calls)
}

func TestLocalTarget_PublishesDueRows(t *testing.T) {
	db := testutil.NewDB(t)
	contents := repository.NewContentRepository(db)
	ledger := repository.NewLedgerRepository(db)
	testutil.SeedPost(t, db, "c1", "author", model.PostScheduled)
	testutil.SeedPending(t, db, "s1", "c1", testutil.Epoch)

	trig := service.NewPublicationTrigger(contents, ledger, service.TriggerOptions{Clock: clock.NewManual(testutil.Epoch.Add(time.Second))})
	inv, err := New("@every 1m", LocalTarget{Trigger: trig}, nil)
	require.NoError(t, err)

	sum, err := inv.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Published)
}

func TestHTTPTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": service.CodeLedgerUnavailable, "message": "down"}})
			return
		}
		_ = json.NewEncoder(w).Encode(service.RunSummary{TotalScheduled: 2, Published: 1, Failed: 1})
	}))
	defer srv.Close()

	sum, err := HTTPTarget{Endpoint: srv.URL, ServiceKey: "key"}.Invoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalScheduled)
	assert.Equal(t, 1, sum.Failed)

	_, err = HTTPTarget{Endpoint: srv.URL}.Invoke(context.Background())
	var terr *service.TriggerError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, service.CodeLedgerUnavailable, terr.Code)
}

func TestHTTPTarget_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	start := time.Now()
	_, err := HTTPTarget{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}.Invoke(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStart_LogsSchedule(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inv, err := New("@every 1h", LocalTarget{}, zap.New(core))
	require.NoError(t, err)

	inv.Start()
	require.NoError(t, inv.Stop(context.Background()))

	started := logs.FilterMessage("invoker started").All()
	require.Len(t, started, 1)
	fields := started[0].ContextMap()
	assert.Equal(t, "@every 1h", fields["schedule"])
	assert.NotContains(t, fields, "next")
}
