package auth

import (
	"context"
	"fmt"
)

type identityKey string

const (
	keyUserID identityKey = "user_id"
	keyEmail  identityKey = "email"
	keyRole   identityKey = "role"
)

// WithIdentity stores the signed-in user's claims for handlers and services
// running on behalf of the request.
func WithIdentity(ctx context.Context, userID, email, role string) context.Context {
	ctx = context.WithValue(ctx, keyUserID, userID)
	ctx = context.WithValue(ctx, keyEmail, email)
	return context.WithValue(ctx, keyRole, role)
}

func identity(ctx context.Context, key identityKey) (string, error) {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s, nil
	}
	return "", fmt.Errorf("auth: %s not in context", string(key))
}

func UserID(ctx context.Context) (string, error) { return identity(ctx, keyUserID) }

func Email(ctx context.Context) (string, error) { return identity(ctx, keyEmail) }

func Role(ctx context.Context) (string, error) { return identity(ctx, keyRole) }

// Actor returns the user id in ctx, or "" for anonymous calls.
func Actor(ctx context.Context) string {
	id, _ := UserID(ctx)
	return id
}
