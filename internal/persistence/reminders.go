package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const reminderKeyPrefix = "helpdesk:eval-reminder:"

// ReminderStore keeps evaluation-reminder bookkeeping keys in Redis. The keys
// are advisory markers for an external reminder sender; the auto-close sweep
// reads from Postgres, which stays the source of truth. Failures here never
// affect ticket transitions; callers log and move on.
type ReminderStore interface {
	Set(ctx context.Context, ticketID string, ttl time.Duration) error
	Clear(ctx context.Context, ticketID string) error
}

type redisReminderStore struct {
	client *redis.Client
}

// NewReminderStore builds a Redis-backed reminder store.
func NewReminderStore(client *redis.Client) ReminderStore {
	return &redisReminderStore{client: client}
}

func (s *redisReminderStore) Set(ctx context.Context, ticketID string, ttl time.Duration) error {
	return s.client.Set(ctx, reminderKeyPrefix+ticketID, time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

func (s *redisReminderStore) Clear(ctx context.Context, ticketID string) error {
	return s.client.Del(ctx, reminderKeyPrefix+ticketID).Err()
}
