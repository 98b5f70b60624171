package session

import "context"

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller's username.
func WithCaller(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, callerKey{}, username)
}

// CallerFromContext reports who is making the current request. Handlers
// resolve it once and pass it to the account service explicitly.
func CallerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callerKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
