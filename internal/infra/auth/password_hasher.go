// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"strings"
	"unicode"

	"cambio/config"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/service"

	"github.com/pkg/errors"
)

// passwordHasher writes argon2id hashes and verifies every format in passwordHash.
type passwordHasher struct {
	policy *config.PasswordStrengthConfig
}

// NewPasswordHasher is the constructor for passwordHasher.
func NewPasswordHasher(cfg *config.Config) service.PasswordHasher {
	policy := cfg.PasswordStrength
	if policy == nil {
		policy = config.DefaultPasswordStrength()
	}

	return &passwordHasher{policy: policy}
}

// Hash generates a salted argon2id hash in PHC string form.
func (h *passwordHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "failed to generate salt")
	}

	return newArgon2Hash(password, salt).String(), nil
}

// Check compares a plaintext password with any supported hash format.
func (h *passwordHasher) Check(password, hash string) bool {
	parsed, err := parsePasswordHash(hash)
	if err != nil {
		return false
	}

	return parsed.matches(password)
}

// ValidatePasswordStrength enforces the configured policy and reports every failed rule.
func (h *passwordHasher) ValidatePasswordStrength(password string) error {
	var (
		hasUpper, hasLower, hasDigit, hasSpecial bool
		problems                                 []string
	)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(h.policy.SpecialChars, r) {
			hasSpecial = true
		}
	}

	length := len([]rune(password))
	if h.policy.MinLength > 0 && length < h.policy.MinLength {
		problems = append(problems, "too short")
	}
	if h.policy.MaxLength > 0 && length > h.policy.MaxLength {
		problems = append(problems, "too long")
	}
	if h.policy.RequireUppercase && !hasUpper {
		problems = append(problems, "missing uppercase letter")
	}
	if h.policy.RequireLowercase && !hasLower {
		problems = append(problems, "missing lowercase letter")
	}
	if h.policy.RequireNumbers && !hasDigit {
		problems = append(problems, "missing digit")
	}
	if h.policy.RequireSpecial && !hasSpecial {
		problems = append(problems, "missing symbol from "+h.policy.SpecialChars)
	}

	if len(problems) > 0 {
		return domainerrors.ErrWeakPassword.WithDetails(strings.Join(problems, ", "))
	}

	return nil
}
