// Package middleware contains the echo middleware of the HTTP delivery.
package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "cambio/internal/delivery/context"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const bearerScheme = "Bearer"

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// AuthMiddleware is the bearer gate in front of protected routes.
type AuthMiddleware struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// Authenticate resolves the bearer token and attaches the caller to the request.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return m.reject(c, errors.Wrap(domainerrors.ErrUnauthorized, "missing or malformed authorization header"))
		}

		ctx := c.Request().Context()
		identity, err := m.sessionUC.Validate(ctx, token)
		if err != nil {
			if errors.Is(err, domainerrors.ErrUnauthorized) {
				return m.reject(c, err)
			}

			return errors.WithStack(err)
		}

		deliverycontext.SetIdentity(c, identity)
		logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.Any("user_id", identity.UserID))
		c.SetRequest(c.Request().WithContext(deliverycontext.WithLogger(c.Request().Context(), logger)))

		return next(c)
	}
}

func (m *AuthMiddleware) reject(c echo.Context, err error) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, bearerScheme)

	return err
}

// bearerToken extracts the credentials of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
