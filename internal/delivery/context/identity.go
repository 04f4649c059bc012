package context

import (
	"context"

	"cambio/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

// WithIdentity returns a new context carrying the authenticated caller.
func WithIdentity(ctx context.Context, identity *entity.Identity) context.Context {
	return context.WithValue(ctx, KeyIdentity, identity)
}

// GetIdentity extracts the caller resolved by the bearer gate, or nil.
func GetIdentity(ctx context.Context) *entity.Identity {
	if identity, ok := ctx.Value(KeyIdentity).(*entity.Identity); ok {
		return identity
	}

	return nil
}

// SetIdentity stores the caller on both the echo context and its request context.
func SetIdentity(c echo.Context, identity *entity.Identity) {
	c.Set(string(KeyIdentity), identity)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), identity)))
}

// GetIdentityFromEcho reads the caller stored by SetIdentity.
func GetIdentityFromEcho(c echo.Context) *entity.Identity {
	if identity, ok := c.Get(string(KeyIdentity)).(*entity.Identity); ok {
		return identity
	}

	return GetIdentity(c.Request().Context())
}
