// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
// Hashes are self-describing, so Check accepts every format the system has ever written.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password in the current format.
	Hash(password string) (string, error)

	// Check compares a plaintext password with a hash. Unknown or malformed hashes never match.
	Check(password, hash string) bool

	// ValidatePasswordStrength returns domainerrors.ErrWeakPassword describing every failed rule.
	ValidatePasswordStrength(password string) error
}
