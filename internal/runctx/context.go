package runctx

import "context"

type ctxKey string

const (
	keyRunID     ctxKey = "run_id"
	keyChannelID ctxKey = "channel_id"
)

// WithRunID stores the migration run id for logs.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRunID, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(keyRunID).(string)
	return v
}

// WithChannelID stores the channel being processed.
func WithChannelID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyChannelID, id)
}

// ChannelID returns the channel id if present.
func ChannelID(ctx context.Context) string {
	v, _ := ctx.Value(keyChannelID).(string)
	return v
}
