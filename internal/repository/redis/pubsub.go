package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	red "github.com/redis/go-redis/v9"

	"github.com/Ajirohack/API/internal/core/port"
)

// FanoutBroker distributes real-time payloads across process instances
// using Redis pub/sub channels.
type FanoutBroker struct {
	client *red.Client
}

// NewFanoutBroker wires a Redis client into a fan-out broker.
func NewFanoutBroker(client *red.Client) *FanoutBroker {
	return &FanoutBroker{client: client}
}

// Publish sends the payload to every current subscriber of the channel.
func (b *FanoutBroker) Publish(ctx context.Context, channel string, payload string) error {
	if channel == "" {
		return errors.New("channel must not be empty")
	}

	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

// Subscribe opens a subscription covering the supplied channels.
func (b *FanoutBroker) Subscribe(ctx context.Context, channels ...string) (port.FanoutSubscription, error) {
	if len(channels) == 0 {
		return nil, errors.New("at least one channel is required")
	}

	pubsub := b.client.Subscribe(ctx, channels...)

	// Force the subscribe round trip so a broker outage surfaces here
	// instead of as a silent dead channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &fanoutSubscription{
		pubsub:   pubsub,
		messages: make(chan string, 64),
		done:     make(chan struct{}),
	}
	go sub.pump()

	return sub, nil
}

type fanoutSubscription struct {
	pubsub    *red.PubSub
	messages  chan string
	done      chan struct{}
	closeOnce sync.Once
}

// pump forwards broker payloads until the subscription closes. A send
// parked on a full buffer must still observe Close, so every send races
// the done channel; payloads pending at close time are abandoned.
func (s *fanoutSubscription) pump() {
	defer close(s.messages)
	for msg := range s.pubsub.Channel() {
		select {
		case s.messages <- msg.Payload:
		case <-s.done:
			return
		}
	}
}

func (s *fanoutSubscription) Messages() <-chan string {
	return s.messages
}

func (s *fanoutSubscription) Join(ctx context.Context, channel string) error {
	if channel == "" {
		return errors.New("channel must not be empty")
	}
	if err := s.pubsub.Subscribe(ctx, channel); err != nil {
		return fmt.Errorf("redis subscribe channel: %w", err)
	}
	return nil
}

func (s *fanoutSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.pubsub.Close()
}

var _ port.FanoutBroker = (*FanoutBroker)(nil)
