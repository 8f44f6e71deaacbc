package controller

import (
	"context"

	"github.com/google/uuid"
)

// correlationKey is an unexported context key type so this package's
// correlation ids never collide with another package's context values.
type correlationKey struct{}

// WithCorrelationID attaches id to ctx for PushBlock/PushTransaction to log
// against; a ctx without one gets a fresh random id per call from
// correlationID. The id is for log correlation only: it is never hashed into a
// block or transaction, never consensus-critical, and has no bearing on
// fork choice or application order — purely a debugging aid for an
// operator grepping logs across PushBlock/PushTransaction calls that belong
// to the same request.
func WithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// correlationID returns the id on ctx, generating and not persisting a
// fresh one if the caller never set one. A missing id is the common case
// for internal calls (e.g. replay); external callers that want correlated
// logs across retries should call WithCorrelationID themselves.
func correlationID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(correlationKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.New()
}
