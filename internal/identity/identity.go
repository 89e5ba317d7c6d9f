// Package identity carries the authenticated user through a request
// context.  The JWT middleware stores the token subject with
// ContextWithUserID and the booking service reads it back through
// ContextProvider.
package identity

import (
	"context"
	"errors"
)

// ErrNoUser is returned when the context carries no authenticated user.
var ErrNoUser = errors.New("no authenticated user")

type userIDKey struct{}

// ContextWithUserID returns a copy of ctx carrying userID.
func ContextWithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user stored in ctx.  A missing or zero id
// reports false.
func UserIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(userIDKey{}).(uint64)
	return id, ok && id != 0
}

// ContextProvider resolves the current user from the request context.
type ContextProvider struct{}

// CurrentUserID returns the authenticated user or ErrNoUser.
func (ContextProvider) CurrentUserID(ctx context.Context) (uint64, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return 0, ErrNoUser
	}
	return id, nil
}
