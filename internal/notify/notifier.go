// internal/notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Kind classifies a notification for the downstream consumer.
type Kind string

const (
	KindChallengeSent     Kind = "challenge_sent"
	KindChallengeAccepted Kind = "challenge_accepted"
	KindChallengeRejected Kind = "challenge_rejected"
	KindMatchFound        Kind = "match_found"
)

// DefaultQueueName is the Redis list the notification consumer drains.
const DefaultQueueName = "pongd_notifications"

// Record is the payload pushed onto the queue.
type Record struct {
	UserID      int64  `json:"user_id"`
	Kind        Kind   `json:"kind"`
	ReferenceID string `json:"reference_id"`
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
}

// Notifier publishes notification records onto a Redis list for the
// notification microservice to deliver. Delivery is asynchronous and
// best-effort: a nil or unreachable client degrades to a logged drop,
// never an error surfaced to the caller.
type Notifier struct {
	rdb   *redis.Client
	queue string
	log   *logrus.Logger
}

// New connects a Notifier to Redis. A ping failure is returned so the
// caller can decide to run without notifications.
func New(addr string, db int, queue string, log *logrus.Logger) (*Notifier, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Notifier{rdb: rdb, queue: queue, log: log}, nil
}

// Notify enqueues one notification. Safe on a nil receiver so callers
// never need to branch on whether notifications are configured.
func (n *Notifier) Notify(ctx context.Context, userID int64, kind Kind, referenceID, message string) {
	if n == nil || n.rdb == nil {
		return
	}
	rec := Record{
		UserID:      userID,
		Kind:        kind,
		ReferenceID: referenceID,
		Message:     message,
		Timestamp:   time.Now().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		n.log.Errorf("failed to marshal notification record: %v", err)
		return
	}
	if err := n.rdb.RPush(ctx, n.queue, data).Err(); err != nil {
		n.log.Warnf("failed to enqueue %s notification for user %d: %v", kind, userID, err)
	}
}

// Close releases the Redis client.
func (n *Notifier) Close() error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Close()
}
