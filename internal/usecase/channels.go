package usecase

import (
	"context"
	"strings"

	"github.com/Ajirohack/API/internal/core/port"
)

// ChannelPolicy decides which fan-out channels a subject may join on top of
// the ones every connection is subscribed to automatically.
//
// Public channels live under "channel:". A subject may also join its own
// "user:<subject>:*" channels from a second device. Role broadcast channels
// are never joinable directly; membership there is derived from token roles
// at handshake time.
type ChannelPolicy struct{}

// NewChannelPolicy constructs the default policy.
func NewChannelPolicy() *ChannelPolicy {
	return &ChannelPolicy{}
}

// Authorized reports whether the subject may join the channel.
func (p *ChannelPolicy) Authorized(_ context.Context, subject, channel string) (bool, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return false, nil
	}

	if strings.HasPrefix(channel, "channel:") {
		return true, nil
	}

	if subject != "" && strings.HasPrefix(channel, "user:"+subject+":") {
		return true, nil
	}

	return false, nil
}

var _ port.ChannelAuthorizer = (*ChannelPolicy)(nil)
