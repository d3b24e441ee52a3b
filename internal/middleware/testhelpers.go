package middleware

import (
	"context"

	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/request"
)

// SetUserInContext sets user in context, for handler tests that bypass Auth
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return request.WithUser(ctx, user)
}
