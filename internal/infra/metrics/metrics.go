// Package metrics exposes the identity counters through OpenTelemetry with a Prometheus reader.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"cambio/config"
	"cambio/internal/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
)

const meterName = "cambio/identity"

// Params defines the dependencies of the metrics provider.
type Params struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
}

// AuthMetrics holds the counters of the session and linking flows.
// A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	handler http.Handler

	loginTotal           metric.Int64Counter
	tokenValidationTotal metric.Int64Counter
	oauthLinkTotal       metric.Int64Counter
	passwordResetTotal   metric.Int64Counter
}

// New builds the meter provider. When metrics are disabled the counters are
// no-ops and Handler returns nil.
func New(params Params) (*AuthMetrics, error) {
	if params.Config.Metrics == nil || !params.Config.Metrics.Enabled {
		params.Logger.Info("Metrics disabled")

		return newAuthMetrics(noop.NewMeterProvider().Meter(meterName), nil)
	}

	registry := prometheus.NewRegistry()
	provider, err := newMeterProvider(registry)
	if err != nil {
		return nil, err
	}

	params.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})

	return newAuthMetrics(
		provider.Meter(meterName),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	)
}

func newMeterProvider(registry *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create prometheus exporter")
	}

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}

func newAuthMetrics(meter metric.Meter, handler http.Handler) (*AuthMetrics, error) {
	m := &AuthMetrics{handler: handler}

	var err error
	if m.loginTotal, err = meter.Int64Counter(
		"auth_login",
		metric.WithDescription("Password login attempts by result"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create auth_login counter")
	}

	if m.tokenValidationTotal, err = meter.Int64Counter(
		"auth_token_validation",
		metric.WithDescription("Bearer token validations by result"),
		metric.WithUnit("{validation}"),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create auth_token_validation counter")
	}

	if m.oauthLinkTotal, err = meter.Int64Counter(
		"oauth_link",
		metric.WithDescription("OAuth callback resolutions by provider and outcome"),
		metric.WithUnit("{resolution}"),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create oauth_link counter")
	}

	if m.passwordResetTotal, err = meter.Int64Counter(
		"auth_password_reset",
		metric.WithDescription("Password reset requests and confirmations by result"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, errors.Wrap(err, "failed to create auth_password_reset counter")
	}

	return m, nil
}

// Handler serves the Prometheus exposition format, or nil when disabled.
func (m *AuthMetrics) Handler() http.Handler {
	if m == nil {
		return nil
	}

	return m.handler
}

func (m *AuthMetrics) RecordLogin(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.loginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *AuthMetrics) RecordTokenValidation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.tokenValidationTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *AuthMetrics) RecordOAuthLink(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.oauthLinkTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

func (m *AuthMetrics) RecordPasswordReset(ctx context.Context, stage, result string) {
	if m == nil {
		return
	}
	m.passwordResetTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("result", result),
	))
}
