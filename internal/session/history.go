package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// HistoryStore mirrors conversation transcripts to Redis so they survive a
// process restart. The in-memory session remains authoritative within one
// process.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewHistoryStore creates a Redis-backed history mirror.
func NewHistoryStore(rdb *redis.Client, tracer trace.Tracer) *HistoryStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("scheduling-agent.internal.session.history")
	}
	return &HistoryStore{
		redis:  rdb,
		tracer: tracer,
	}
}

// Save persists the full history for a session.
func (s *HistoryStore) Save(ctx context.Context, sessionID string, history []Message) error {
	ctx, span := s.tracer.Start(ctx, "session.save_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(sessionID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist history: %w", err)
	}
	return nil
}

// Load retrieves the persisted history for a session. An unknown session
// returns nil history and no error.
func (s *HistoryStore) Load(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load history: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode history: %w", err)
	}
	return history, nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session_history:%s", sessionID)
}
