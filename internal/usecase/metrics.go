package usecase

import "context"

// AuthMetrics records outcomes of the identity flows.
type AuthMetrics interface {
	RecordLogin(ctx context.Context, result string)
	RecordTokenValidation(ctx context.Context, result string)
	RecordOAuthLink(ctx context.Context, provider, outcome string)
	RecordPasswordReset(ctx context.Context, stage, result string)
}
