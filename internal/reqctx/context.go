package reqctx

import "context"

type ctxKey string

const (
	keyRequestID ctxKey = "directchat_request_id"
	keyUserID    ctxKey = "directchat_user_id"
)

// WithRequestID stores the correlation id used in service logs.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRequestID, rid)
}

// RequestID returns correlation id if present.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}

// WithUserID stores the authenticated user id.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, keyUserID, uid)
}

func UserID(ctx context.Context) string {
	v, _ := ctx.Value(keyUserID).(string)
	return v
}
