package port

import "context"

// ChannelAuthorizer decides whether a subject may join a named channel.
// Channel membership is owned by an external collaborator.
type ChannelAuthorizer interface {
	Authorized(ctx context.Context, subject, channelID string) (bool, error)
}
