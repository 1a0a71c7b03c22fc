package logger

import "context"

type ctxKey int

const (
	loggerKey ctxKey = iota
	idsKey
)

// ids are the correlation values L attaches to every entry: the
// X-Request-ID of an intercepted call and the ULID of a notify client.
type ids struct {
	request string
	client  string
}

func idsFrom(ctx context.Context) ids {
	v, _ := ctx.Value(idsKey).(ids)
	return v
}

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the stored logger, or Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	v := idsFrom(ctx)
	v.request = id
	return context.WithValue(ctx, idsKey, v)
}

func RequestIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).request
}

func WithClientID(ctx context.Context, id string) context.Context {
	v := idsFrom(ctx)
	v.client = id
	return context.WithValue(ctx, idsKey, v)
}

func ClientIDFromContext(ctx context.Context) string {
	return idsFrom(ctx).client
}

// L returns FromContext(ctx) tagged with whichever IDs ctx carries.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	v := idsFrom(ctx)
	if v.request != "" {
		l = l.With("request_id", v.request)
	}
	if v.client != "" {
		l = l.With("client_id", v.client)
	}
	return l
}
