// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	deliverycontext "cambio/internal/delivery/context"
	"cambio/internal/delivery/http/response"
	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const tokenTypeBearer = "bearer"

const resetRequestedMessage = "If the email exists, a password reset code has been sent"

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// AuthHandler serves the password session routes under /auth.
type AuthHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// LoginRequest is accepted as JSON or as an urlencoded form.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required,max=255"`
	Password string `json:"password" form:"password" validate:"required,max=1024"`
}

// SessionResponse is returned by every route that signs a user in.
type SessionResponse struct {
	Token     string                 `json:"token"`
	TokenType string                 `json:"token_type"`
	User      *entity.ProfileSummary `json:"user"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=1024"`
	NewPassword     string `json:"new_password" validate:"required,max=1024"`
}

// ResetPasswordRequest asks for a recovery code.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// ConfirmResetPasswordRequest redeems a recovery code.
type ConfirmResetPasswordRequest struct {
	Username     string `json:"username" validate:"required,max=255"`
	RecoveryCode string `json:"recovery_code" validate:"required,max=256"`
	NewPassword  string `json:"new_password" validate:"required,max=1024"`
}

func newSessionResponse(session *entity.Session) *SessionResponse {
	return &SessionResponse{Token: session.Token, TokenType: tokenTypeBearer, User: session.Profile}
}

// Login handles POST /auth/login.
// Form posts get the bare {access_token, token_type} pair expected by OAuth2 password clients.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid login input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	session, err := h.sessionUC.Login(c.Request().Context(), &usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidCredentials) {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}

		return errors.WithStack(err)
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		return c.JSON(http.StatusOK, map[string]string{
			"access_token": session.Token,
			"token_type":   tokenTypeBearer,
		})
	}

	return response.Success(c, http.StatusOK, newSessionResponse(session), "Login successful")
}

// VerifyCredentials handles POST /auth/verify-credentials.
func (h *AuthHandler) VerifyCredentials(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid credentials input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	err := h.sessionUC.VerifyCredentials(c.Request().Context(), &usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"valid": true}, "Credentials are valid")
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessionUC.Logout(c.Request().Context(), deliverycontext.GetIdentityFromEcho(c)); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Logged out successfully")
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid change password input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	err = h.sessionUC.ChangePassword(c.Request().Context(), &usecase.ChangePasswordInput{
		UserID:          identity.UserID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password changed successfully")
}

// RequestPasswordReset handles POST /auth/reset-password.
// The answer is the same whether or not the email is known, including on internal failures.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid password reset input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	ctx := c.Request().Context()
	if err := h.sessionUC.RequestPasswordReset(ctx, req.Email); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Error("Password reset request failed", slog.Any("error", err))
	}

	return response.Success(c, http.StatusOK, nil, resetRequestedMessage)
}

// ConfirmPasswordReset handles POST /auth/reset-password/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req ConfirmResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "Invalid password reset input")
	}
	if err := c.Validate(&req); err != nil {
		return errors.WithStack(err)
	}

	err := h.sessionUC.ConfirmPasswordReset(c.Request().Context(), &usecase.ConfirmPasswordResetInput{
		Username:     req.Username,
		RecoveryCode: req.RecoveryCode,
		NewPassword:  req.NewPassword,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password has been reset successfully")
}

// currentIdentity returns the caller attached by the bearer gate.
func currentIdentity(c echo.Context) (*entity.Identity, error) {
	identity := deliverycontext.GetIdentityFromEcho(c)
	if identity == nil {
		return nil, errors.Wrap(domainerrors.ErrUnauthorized, "no identity on request")
	}

	return identity, nil
}
