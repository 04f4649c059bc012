package service

// TokenService produces the random secrets of the session core.
type TokenService interface {
	// GenerateSessionToken returns a url-safe opaque bearer token with no embedded payload.
	GenerateSessionToken() (string, error)

	// GenerateRecoveryCode returns a single-use password reset code.
	GenerateRecoveryCode() (string, error)

	// GenerateSecret returns a random password that satisfies the strength policy.
	GenerateSecret() (string, error)

	// Compare reports whether a and b are equal in constant time.
	Compare(a, b string) bool
}
