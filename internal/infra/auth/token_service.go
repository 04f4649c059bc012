package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"

	"cambio/internal/domain/service"

	"github.com/pkg/errors"
)

const (
	sessionTokenBytes = 48
	recoveryCodeBytes = 32
	secretLength      = 24
)

const (
	secretUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	secretLower   = "abcdefghijkmnopqrstuvwxyz"
	secretDigits  = "23456789"
	secretSymbols = "!@#$%^&*()"
)

type tokenService struct{}

// NewTokenService is the constructor for tokenService.
func NewTokenService() service.TokenService {
	return &tokenService{}
}

// GenerateSessionToken returns 48 random bytes encoded as unpadded base64url.
func (s *tokenService) GenerateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate session token")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateRecoveryCode returns 32 random bytes hex encoded.
func (s *tokenService) GenerateRecoveryCode() (string, error) {
	buf := make([]byte, recoveryCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate recovery code")
	}

	return hex.EncodeToString(buf), nil
}

// GenerateSecret returns a random password containing every character class.
func (s *tokenService) GenerateSecret() (string, error) {
	classes := []string{secretUpper, secretLower, secretDigits, secretSymbols}
	all := secretUpper + secretLower + secretDigits + secretSymbols

	out := make([]byte, 0, secretLength)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < secretLength {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates so the mandatory classes are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", errors.Wrap(err, "failed to shuffle secret")
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}

	return string(out), nil
}

// Compare reports whether a and b are equal without leaking where they differ.
func (s *tokenService) Compare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, errors.Wrap(err, "failed to generate secret")
	}

	return alphabet[n.Int64()], nil
}
