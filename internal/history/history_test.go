package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/voxgate-ai/voxgate/internal/history"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_AppendAndRecent(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	h := history.NewRedis(rdb)
	ctx := context.Background()

	msgs := []struct{ role, content string }{
		{"user", "Hello there"},
		{"assistant", "Hi! How can I help?"},
		{"user", "What is two plus two?"},
	}
	for _, m := range msgs {
		if err := h.Append(ctx, "s1", m.role, m.content); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := h.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("messages: want 3, got %d", len(got))
	}
	for i, m := range msgs {
		if got[i].Role != m.role || got[i].Content != m.content {
			t.Errorf("message %d: want {%s %q}, got {%s %q}",
				i, m.role, m.content, got[i].Role, got[i].Content)
		}
	}
}

func TestRedis_RecentLimit(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	h := history.NewRedis(rdb)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := h.Append(ctx, "s1", "user", "msg"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := h.Recent(ctx, "s1", 0) // 0 = default limit
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != history.DefaultRecentLimit {
		t.Errorf("messages: want %d, got %d", history.DefaultRecentLimit, len(got))
	}
}

func TestRedis_RecentMissingSession(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	h := history.NewRedis(rdb)

	got, err := h.Recent(context.Background(), "nope", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("missing session: want empty, got %d messages", len(got))
	}
}

func TestRedis_Expiry(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	h := history.NewRedis(rdb, history.WithTTL(time.Minute))
	ctx := context.Background()

	if err := h.Append(ctx, "s1", "user", "hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := h.Recent(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired session: want empty, got %d messages", len(got))
	}
}

func TestRedis_Clear(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	h := history.NewRedis(rdb)
	ctx := context.Background()

	_ = h.Append(ctx, "s1", "user", "hello")
	if err := h.Clear(ctx, "s1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ := h.Recent(ctx, "s1", 10)
	if len(got) != 0 {
		t.Errorf("cleared session: want empty, got %d messages", len(got))
	}
}

func TestResponseCache_RoundTrip(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	c := history.NewResponseCache(rdb)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "query", "prompt"); err != nil || ok {
		t.Fatalf("empty cache: want miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "query", "prompt", "the answer"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "query", "prompt")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if got != "the answer" {
		t.Errorf("cached value: want %q, got %q", "the answer", got)
	}
}

func TestResponseCache_KeyedBySystemPrompt(t *testing.T) {
	t.Parallel()

	_, rdb := newTestRedis(t)
	c := history.NewResponseCache(rdb)
	ctx := context.Background()

	_ = c.Set(ctx, "query", "prompt A", "answer A")
	if _, ok, _ := c.Get(ctx, "query", "prompt B"); ok {
		t.Error("different system prompt must not hit the same cache entry")
	}
}

func TestResponseCache_TTL(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)
	c := history.NewResponseCache(rdb)
	ctx := context.Background()

	_ = c.Set(ctx, "q", "p", "answer")
	mr.FastForward(25 * time.Hour)
	if _, ok, _ := c.Get(ctx, "q", "p"); ok {
		t.Error("entry older than 24h must have expired")
	}
}
