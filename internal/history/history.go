// Package history stores the short-term conversation memory consumed by the
// LLM router, and the keyed response cache for repeated first-turn queries.
// Both are backed by Redis: history as a per-session list with a sliding
// expiry, cached responses as plain keys with a 24 h TTL.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxgate-ai/voxgate/pkg/provider/llm"
)

const (
	// DefaultTTL is the sliding expiry of a session's history list. An idle
	// conversation is forgotten after an hour.
	DefaultTTL = time.Hour

	// DefaultRecentLimit is how many trailing messages Recent returns when
	// the caller passes a non-positive limit.
	DefaultRecentLimit = 10

	sessionKeyPrefix = "session:"
)

// Provider is the narrow interface the conversation gateway consumes.
type Provider interface {
	// Append adds a message to the end of a session's history and refreshes
	// the session's expiry.
	Append(ctx context.Context, sessionID, role, content string) error

	// Recent returns up to limit trailing messages in order. A non-positive
	// limit uses DefaultRecentLimit. A missing session returns an empty slice.
	Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)

	// Clear removes a session's history entirely.
	Clear(ctx context.Context, sessionID string) error
}

// Redis implements Provider on a Redis list per session.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Provider = (*Redis)(nil)

// Option configures a Redis history provider.
type Option func(*Redis)

// WithTTL overrides the session history expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis creates a history provider on an existing Redis client. The client
// is shared with the response cache; the caller owns its lifecycle.
func NewRedis(rdb *redis.Client, opts ...Option) *Redis {
	r := &Redis{rdb: rdb, ttl: DefaultTTL}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Append implements Provider.
func (r *Redis) Append(ctx context.Context, sessionID, role, content string) error {
	payload, err := json.Marshal(llm.Message{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("history: marshal message: %w", err)
	}
	key := sessionKeyPrefix + sessionID
	if err := r.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("history: append: %w", err)
	}
	if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("history: refresh expiry: %w", err)
	}
	return nil
}

// Recent implements Provider.
func (r *Redis) Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	raw, err := r.rdb.LRange(ctx, sessionKeyPrefix+sessionID, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	msgs := make([]llm.Message, 0, len(raw))
	for _, item := range raw {
		var m llm.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// A corrupt entry should not take down the whole history.
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear implements Provider.
func (r *Redis) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}
