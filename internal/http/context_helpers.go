package httpx

import (
	"context"

	"github.com/soundpipe/soundpipe/internal/domain/model"
)

type contextKey string

const userContextKey contextKey = "user"

// SetUserInContext stores the resolved owner in the request context.
func SetUserInContext(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the resolved owner from the request context.
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userContextKey).(model.User)
	return user, ok
}
