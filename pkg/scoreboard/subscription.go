package scoreboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription represents an active Pub/Sub subscription delivering decoded
// events of type T. Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures; the subscription continues after
// errors and the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeArtifactEvents subscribes to artifact publish/retire events for this instance.
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a subscriber that falls too far behind loses messages.
func (c *Client) SubscribeArtifactEvents(ctx context.Context) (*Subscription[ArtifactEvent], error) {
	return subscribe[ArtifactEvent](ctx, c, ArtifactEventsChannel(c.instanceName))
}

// SubscribeGroupEvents subscribes to group comparison announcements for this instance.
func (c *Client) SubscribeGroupEvents(ctx context.Context) (*Subscription[GroupComparison], error) {
	return subscribe[GroupComparison](ctx, c, GroupEventsChannel(c.instanceName))
}

func subscribe[T any](ctx context.Context, c *Client, channel string) (*Subscription[T], error) {
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event on %s: %w", channel, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
