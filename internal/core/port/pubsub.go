package port

import "context"

// FanoutSubscription is a live subscription to one or more fan-out channels.
type FanoutSubscription interface {
	// Messages yields raw payloads in receipt order. The channel is closed
	// when the subscription is closed or the broker connection drops, even
	// if no consumer is draining it; payloads undelivered at close time are
	// dropped.
	Messages() <-chan string
	// Join adds a channel to the live subscription.
	Join(ctx context.Context, channel string) error
	Close() error
}

// FanoutBroker distributes payloads to every subscriber of a channel across
// all process instances.
type FanoutBroker interface {
	Publish(ctx context.Context, channel string, payload string) error
	Subscribe(ctx context.Context, channels ...string) (FanoutSubscription, error)
}
