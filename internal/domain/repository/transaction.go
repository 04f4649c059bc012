package repository

import "context"

// TransactionManager defines the interface for managing database transactions.
// It is the unit of work of the identity core: every write performed through
// the factory handed to fn commits or rolls back together.
type TransactionManager interface {
	// Execute runs fn within a single database transaction.
	// If fn returns an error or panics, the transaction is rolled back. Otherwise, it's committed once.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances bound to one transaction.
type RepositoryFactory interface {
	// CredentialRepo returns a CredentialRepository bound to the current transaction.
	CredentialRepo() CredentialRepository

	// ProfileRepo returns a ProfileRepository bound to the current transaction.
	ProfileRepo() ProfileRepository

	// ExternalAccountRepo returns an ExternalAccountRepository bound to the current transaction.
	ExternalAccountRepo() ExternalAccountRepository
}
