package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sokoni-backend/pkg/logger"
)

// StatusEvent is one row-change notification for a payment intent.
type StatusEvent struct {
	IntentID uuid.UUID `json:"intent_id"`
	Status   string    `json:"status"`
	Receipt  string    `json:"receipt,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Feed delivers status change events scoped to a single intent.
// Publishers are the webhook handler and the gateway fallback writer;
// the reconciler's realtime channel is the subscriber.
type Feed interface {
	// Subscribe returns a channel of events for the given intent and a
	// function that tears the subscription down. The channel is closed
	// on teardown or when ctx is cancelled.
	Subscribe(ctx context.Context, intentID uuid.UUID) (<-chan StatusEvent, func(), error)

	// Publish broadcasts an event to all subscribers of the intent.
	Publish(ctx context.Context, ev StatusEvent) error
}

func channelName(intentID uuid.UUID) string {
	return fmt.Sprintf("payments:intent:%s", intentID)
}

// RedisFeed implements Feed over Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Subscribe(ctx context.Context, intentID uuid.UUID) (<-chan StatusEvent, func(), error) {
	sub := f.client.Subscribe(ctx, channelName(intentID))

	// Force the subscription onto the wire before returning so callers
	// do not miss events published right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe to intent feed: %w", err)
	}

	out := make(chan StatusEvent, 8)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var ev StatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Error("Malformed intent feed event", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	unsubscribe := func() {
		_ = sub.Close()
	}

	return out, unsubscribe, nil
}

func (f *RedisFeed) Publish(ctx context.Context, ev StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal intent feed event: %w", err)
	}

	if err := f.client.Publish(ctx, channelName(ev.IntentID), payload).Err(); err != nil {
		return fmt.Errorf("publish intent feed event: %w", err)
	}

	return nil
}
