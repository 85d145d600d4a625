package btcvault

import (
	"context"
)

// Caller is the authenticated request identity. Subject is expected to
// be a member public key when the perimeter is enabled.
type Caller struct {
	Subject string `json:"subject"`
}

type contextKey struct{}

var callerContextKey = contextKey{}

func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

func CallerFrom(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(*Caller)
	return caller, ok
}
