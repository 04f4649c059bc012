package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"cambio/config"
	deliverycontext "cambio/internal/delivery/context"
	"cambio/internal/delivery/http/response"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// OAuthHandlerParams holds dependencies for OAuthHandler, injected by Fx.
type OAuthHandlerParams struct {
	fx.In

	OAuthUC usecase.OAuthUsecase
	Config  *config.Config
	Logger  *slog.Logger
}

// OAuthHandler serves the provider sign-in routes under /integraciones/oauth.
type OAuthHandler struct {
	oauthUC       usecase.OAuthUsecase
	redirectHosts map[string]struct{}
	logger        *slog.Logger
}

// NewOAuthHandler is the constructor for OAuthHandler.
func NewOAuthHandler(params OAuthHandlerParams) *OAuthHandler {
	return &OAuthHandler{
		oauthUC:       params.OAuthUC,
		redirectHosts: redirectHosts(params.Config),
		logger:        params.Logger,
	}
}

// redirectHosts collects the hosts a callback may hand a token to: the
// configured allowlist plus the host of oauth.publicUrl.
func redirectHosts(cfg *config.Config) map[string]struct{} {
	hosts := make(map[string]struct{})
	if cfg == nil || cfg.OAuth == nil {
		return hosts
	}

	for _, host := range cfg.OAuth.AllowedRedirectHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			hosts[host] = struct{}{}
		}
	}
	if public, err := url.Parse(cfg.OAuth.PublicURL); err == nil && public.Hostname() != "" {
		hosts[strings.ToLower(public.Hostname())] = struct{}{}
	}

	return hosts
}

// Authorize handles GET /integraciones/oauth/:provider by redirecting to the consent screen.
func (h *OAuthHandler) Authorize(c echo.Context) error {
	consentURL, err := h.oauthUC.AuthorizeURL(c.Request().Context(), &usecase.AuthorizeInput{
		Provider:    c.Param("provider"),
		RedirectURI: c.QueryParam("redirect_uri"),
		State:       c.QueryParam("state"),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return c.Redirect(http.StatusFound, consentURL)
}

// Callback handles GET /integraciones/oauth/:provider/callback.
// With a redirect parameter the session token is handed to that URL instead of the body.
func (h *OAuthHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	provider := c.Param("provider")

	if denied := c.QueryParam("error"); denied != "" {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Info("OAuth consent denied",
			slog.String("provider", provider),
			slog.String("reason", denied),
		)

		return errors.WithStack(domainerrors.ErrProviderExchangeFailed.WithDetails(denied))
	}

	target := c.QueryParam("redirect")
	var redirectURL *url.URL
	if target != "" {
		parsed, err := h.parseRedirect(target)
		if err != nil {
			return err
		}
		redirectURL = parsed
	}

	session, err := h.oauthUC.HandleCallback(ctx, &usecase.CallbackInput{
		Provider:    provider,
		Code:        c.QueryParam("code"),
		RedirectURI: c.QueryParam("redirect_uri"),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if redirectURL != nil {
		query := redirectURL.Query()
		query.Set("access_token", session.Token)
		query.Set("token_type", tokenTypeBearer)
		redirectURL.RawQuery = query.Encode()

		return c.Redirect(http.StatusFound, redirectURL.String())
	}

	return response.Success(c, http.StatusOK, newSessionResponse(session), "OAuth login successful")
}

// parseRedirect accepts absolute http and https URLs on an allowed host only.
func (h *OAuthHandler) parseRedirect(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("redirect must be an absolute http(s) URL"))
	}
	if _, ok := h.redirectHosts[strings.ToLower(parsed.Hostname())]; !ok {
		return nil, errors.WithStack(domainerrors.ErrValidationFailed.WithDetails("redirect host is not allowed"))
	}

	return parsed, nil
}
