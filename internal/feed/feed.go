// Package feed 读者时间线：inbox 直读数据库，已发布内容快照缓存在 Redis。
// 快照只来自 published 内容（发布后不再回退），定时发布的到期扫描不经过这里。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/pkg/tracing"
)

// Item 时间线中的一条内容
type Item struct {
	PostID      string          `json:"post_id"`
	AuthorID    string          `json:"author_id"`
	Title       string          `json:"title"`
	Payload     json.RawMessage `json:"payload" swaggertype:"object"`
	PublishedAt time.Time       `json:"published_at"`
	Score       int64           `json:"score"`
}

// Page 一页时间线，NextCursor 为 0 表示没有更多
type Page struct {
	Items      []Item `json:"items"`
	NextCursor int64  `json:"next_cursor"`
}

// Service 时间线读取
type Service struct {
	db       *gorm.DB
	contents repository.ContentRepository
	cache    *redis.Client
	ttl      time.Duration

	inboxQueries atomic.Int64
	postLoads    atomic.Int64
}

// NewService cache 可以为 nil（不缓存）
func NewService(db *gorm.DB, contents repository.ContentRepository, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{db: db, contents: contents, cache: cache, ttl: ttl}
}

func postKey(id string) string { return fmt.Sprintf("feed:post:%s", id) }

// Timeline 按 score 倒序读取 before 之前的条目；before <= 0 表示第一页
func (s *Service) Timeline(ctx context.Context, userID string, before int64, limit int) (*Page, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	ctx, span := tracing.Tracer("feed").Start(ctx, "feed.timeline")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("feed.limit", limit))
	s.inboxQueries.Add(1)

	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if before > 0 {
		q = q.Where("score < ?", before)
	}
	var rows []model.Inbox
	if err := q.Order("score DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.PostID
	}
	snaps, err := s.loadPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]Item, 0, len(rows))}
	for _, r := range rows {
		it, ok := snaps[r.PostID]
		if !ok {
			// 已删除的内容直接跳过
			continue
		}
		it.Score = r.Score
		page.Items = append(page.Items, it)
	}
	if len(rows) == limit {
		page.NextCursor = rows[len(rows)-1].Score
	}
	return page, nil
}

func (s *Service) loadPosts(ctx context.Context, ids []string) (map[string]Item, error) {
	out := make(map[string]Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	if s.cache != nil {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = postKey(id)
		}
		if vals, err := s.cache.MGet(ctx, keys...).Result(); err == nil {
			for i, v := range vals {
				str, ok := v.(string)
				if !ok {
					continue
				}
				var it Item
				if json.Unmarshal([]byte(str), &it) == nil {
					out[ids[i]] = it
				}
			}
		}
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	s.postLoads.Add(1)
	posts, err := s.contents.ListPublishedByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	var pipe redis.Pipeliner
	if s.cache != nil {
		pipe = s.cache.Pipeline()
	}
	for _, p := range posts {
		it := Item{PostID: p.ID, AuthorID: p.AuthorID, Title: p.Title, Payload: json.RawMessage(p.Payload)}
		if p.PublishedAt != nil {
			it.PublishedAt = *p.PublishedAt
		}
		out[p.ID] = it
		if pipe != nil {
			if payload, err := json.Marshal(it); err == nil {
				pipe.Set(ctx, postKey(p.ID), payload, s.ttl)
			}
		}
	}
	if pipe != nil {
		_, _ = pipe.Exec(ctx)
	}
	return out, nil
}

// Invalidate 删除内容后清理快照
func (s *Service) Invalidate(ctx context.Context, postID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, postKey(postID)).Err()
}

// Counters 数据库读取次数，用于测试缓存命中
type Counters struct {
	InboxQueries int64
	PostLoads    int64
}

func (s *Service) Counters() Counters {
	return Counters{InboxQueries: s.inboxQueries.Load(), PostLoads: s.postLoads.Load()}
}
