// Package http provides HTTP middleware and handlers for authentication,
// session management, and user administration.
package http

import (
	"context"

	authDomain "github.com/sshdeck/sshdeck/internal/auth/domain"
)

// userKey is a context key type for storing the authenticated user.
type userKey struct{}

// sessionKey is a context key type for storing the authenticated session.
type sessionKey struct{}

// WithUser stores an authenticated user in the context.
func WithUser(ctx context.Context, user *authDomain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser retrieves the authenticated user from the context.
// Returns (user, true) if present, or (nil, false) if no user was set.
func GetUser(ctx context.Context) (*authDomain.User, bool) {
	user, ok := ctx.Value(userKey{}).(*authDomain.User)
	return user, ok
}

// WithSession stores the authenticated session in the context.
func WithSession(ctx context.Context, session *authDomain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSession retrieves the authenticated session from the context.
// Returns (session, true) if present, or (nil, false) if no session was set.
func GetSession(ctx context.Context) (*authDomain.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*authDomain.Session)
	return session, ok
}
