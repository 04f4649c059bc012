package impl

import (
	"context"
	"strings"
	"sync"
	"time"

	"cambio/internal/domain/entity"
	domainerrors "cambio/internal/domain/errors"
	"cambio/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// memState is one snapshot of the identity tables.
type memState struct {
	credentials map[uuid.UUID]entity.Credential
	profiles    map[uuid.UUID]entity.Profile
	deleted     map[uuid.UUID]bool
	accounts    map[uuid.UUID]entity.ExternalAccount
}

func newMemState() *memState {
	return &memState{
		credentials: map[uuid.UUID]entity.Credential{},
		profiles:    map[uuid.UUID]entity.Profile{},
		deleted:     map[uuid.UUID]bool{},
		accounts:    map[uuid.UUID]entity.ExternalAccount{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.credentials {
		c.credentials[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.deleted {
		c.deleted[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}

	return c
}

// memStore is a transactional in-memory implementation of the persistence ports.
// Execute works on a snapshot that replaces the committed state only when fn succeeds.
type memStore struct {
	mu      sync.Mutex
	state   *memState
	commits int

	// onLinkCreate runs before an external account insert with the committed
	// state. Returning true makes the insert fail as if a concurrent writer won.
	onLinkCreate func(committed *memState, account *entity.ExternalAccount) bool
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (s *memStore) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	access := func(f func(*memState) error) error { return f(work) }

	if err := fn(&memFactory{store: s, access: access}); err != nil {
		return err
	}

	s.state = work
	s.commits++

	return nil
}

// direct returns a factory reading and writing the committed state outside any transaction.
func (s *memStore) direct() *memFactory {
	return &memFactory{store: s, access: func(f func(*memState) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		return f(s.state)
	}}
}

func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

type memFactory struct {
	store  *memStore
	access func(func(*memState) error) error
}

func (f *memFactory) CredentialRepo() repository.CredentialRepository {
	return &memCredentialRepo{access: f.access}
}

func (f *memFactory) ProfileRepo() repository.ProfileRepository {
	return &memProfileRepo{access: f.access}
}

func (f *memFactory) ExternalAccountRepo() repository.ExternalAccountRepository {
	return &memExternalAccountRepo{store: f.store, access: f.access}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s

	return &v
}

// --- credentials ---

type memCredentialRepo struct {
	access func(func(*memState) error) error
}

func (r *memCredentialRepo) Create(_ context.Context, credential *entity.Credential) error {
	return r.access(func(s *memState) error {
		for _, c := range s.credentials {
			if c.Username == credential.Username {
				return repository.ErrUsernameTaken
			}
		}
		if credential.ID == uuid.Nil {
			credential.ID = uuid.New()
		}
		if credential.CreatedAt.IsZero() {
			credential.CreatedAt = time.Now()
			credential.UpdatedAt = credential.CreatedAt
		}
		stored := *credential
		stored.Token = cloneString(credential.Token)
		stored.RecoveryCode = cloneString(credential.RecoveryCode)
		s.credentials[credential.ID] = stored

		return nil
	})
}

func (r *memCredentialRepo) find(match func(entity.Credential) bool) (*entity.Credential, error) {
	var found *entity.Credential
	err := r.access(func(s *memState) error {
		for _, c := range s.credentials {
			if match(c) {
				c.Token = cloneString(c.Token)
				c.RecoveryCode = cloneString(c.RecoveryCode)
				found = &c

				return nil
			}
		}

		return repository.ErrCredentialNotFound
	})

	return found, err
}

func (r *memCredentialRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Credential, error) {
	return r.find(func(c entity.Credential) bool { return c.ID == id })
}

func (r *memCredentialRepo) FindByUsername(_ context.Context, username string) (*entity.Credential, error) {
	return r.find(func(c entity.Credential) bool { return c.Username == username })
}

func (r *memCredentialRepo) FindByToken(_ context.Context, token string) (*entity.Credential, error) {
	return r.find(func(c entity.Credential) bool { return c.Token != nil && *c.Token == token })
}

func (r *memCredentialRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrCredentialNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (r *memCredentialRepo) update(id uuid.UUID, mutate func(*entity.Credential)) error {
	return r.access(func(s *memState) error {
		c, ok := s.credentials[id]
		if !ok {
			return repository.ErrCredentialNotFound
		}
		mutate(&c)
		s.credentials[id] = c

		return nil
	})
}

func (r *memCredentialRepo) UpdateToken(_ context.Context, id uuid.UUID, token string, issuedAt time.Time) error {
	return r.update(id, func(c *entity.Credential) {
		c.Token = &token
		c.UpdatedAt = issuedAt
	})
}

func (r *memCredentialRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(id, func(c *entity.Credential) { c.PasswordHash = passwordHash })
}

func (r *memCredentialRepo) UpdateRecoveryCode(_ context.Context, id uuid.UUID, code *string) error {
	return r.update(id, func(c *entity.Credential) { c.RecoveryCode = cloneString(code) })
}

func (r *memCredentialRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.access(func(s *memState) error {
		if _, ok := s.credentials[id]; !ok {
			return repository.ErrCredentialNotFound
		}
		delete(s.credentials, id)

		return nil
	})
}

// --- profiles ---

type memProfileRepo struct {
	access func(func(*memState) error) error
}

func (r *memProfileRepo) Create(_ context.Context, profile *entity.Profile) error {
	return r.access(func(s *memState) error {
		for id, p := range s.profiles {
			if s.deleted[id] {
				continue
			}
			if profile.Email != nil && p.Email != nil && strings.EqualFold(*p.Email, *profile.Email) {
				return repository.ErrEmailTaken
			}
			if profile.AuthID != nil && p.AuthID != nil && *p.AuthID == *profile.AuthID {
				return domainerrors.ErrConflict.WrapMessage("credential already attached to another profile")
			}
		}
		if profile.ID == uuid.Nil {
			profile.ID = uuid.New()
		}
		if profile.Role == "" {
			profile.Role = entity.RoleClient
		}
		profile.CreatedAt = time.Now()
		profile.UpdatedAt = profile.CreatedAt
		s.profiles[profile.ID] = *profile

		return nil
	})
}

func (r *memProfileRepo) find(match func(entity.Profile) bool) (*entity.Profile, error) {
	var found *entity.Profile
	err := r.access(func(s *memState) error {
		for id, p := range s.profiles {
			if !s.deleted[id] && match(p) {
				found = &p

				return nil
			}
		}

		return repository.ErrProfileNotFound
	})

	return found, err
}

func (r *memProfileRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Profile, error) {
	return r.find(func(p entity.Profile) bool { return p.ID == id })
}

func (r *memProfileRepo) FindByAuthID(_ context.Context, authID uuid.UUID) (*entity.Profile, error) {
	return r.find(func(p entity.Profile) bool { return p.AuthID != nil && *p.AuthID == authID })
}

func (r *memProfileRepo) FindByEmail(_ context.Context, email string) (*entity.Profile, error) {
	return r.find(func(p entity.Profile) bool { return p.Email != nil && strings.EqualFold(*p.Email, email) })
}

func (r *memProfileRepo) AttachCredential(_ context.Context, id, authID uuid.UUID) error {
	return r.access(func(s *memState) error {
		p, ok := s.profiles[id]
		if !ok || s.deleted[id] || p.AuthID != nil {
			return repository.ErrProfileNotFound
		}
		p.AuthID = &authID
		s.profiles[id] = p

		return nil
	})
}

func (r *memProfileRepo) Update(_ context.Context, profile *entity.Profile) error {
	return r.access(func(s *memState) error {
		if _, ok := s.profiles[profile.ID]; !ok || s.deleted[profile.ID] {
			return repository.ErrProfileNotFound
		}
		profile.UpdatedAt = time.Now()
		s.profiles[profile.ID] = *profile

		return nil
	})
}

func (r *memProfileRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.access(func(s *memState) error {
		p, ok := s.profiles[id]
		if !ok || s.deleted[id] {
			return repository.ErrProfileNotFound
		}
		p.AuthID = nil
		s.profiles[id] = p
		s.deleted[id] = true

		return nil
	})
}

// --- external accounts ---

type memExternalAccountRepo struct {
	store  *memStore
	access func(func(*memState) error) error
}

func (r *memExternalAccountRepo) Create(_ context.Context, account *entity.ExternalAccount) error {
	if hook := r.store.onLinkCreate; hook != nil && hook(r.store.state, account) {
		return errors.Wrap(domainerrors.ErrLinkConflict, "simulated concurrent link")
	}

	return r.access(func(s *memState) error {
		for _, a := range s.accounts {
			if a.Provider == account.Provider && a.ProviderUserID == account.ProviderUserID {
				return errors.Wrap(domainerrors.ErrLinkConflict, "duplicate link")
			}
		}
		if account.ID == uuid.Nil {
			account.ID = uuid.New()
		}
		account.CreatedAt = time.Now()
		account.UpdatedAt = account.CreatedAt
		s.accounts[account.ID] = *account

		return nil
	})
}

func (r *memExternalAccountRepo) FindByProviderUserID(_ context.Context, provider entity.ProviderType, providerUserID string) (*entity.ExternalAccount, error) {
	var found *entity.ExternalAccount
	err := r.access(func(s *memState) error {
		for _, a := range s.accounts {
			if a.Provider == provider && a.ProviderUserID == providerUserID {
				found = &a

				return nil
			}
		}

		return repository.ErrExternalAccountNotFound
	})

	return found, err
}

func (r *memExternalAccountRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]*entity.ExternalAccount, error) {
	var out []*entity.ExternalAccount
	err := r.access(func(s *memState) error {
		for _, a := range s.accounts {
			if a.UserID == userID {
				out = append(out, &a)
			}
		}

		return nil
	})

	return out, err
}

func (r *memExternalAccountRepo) UpdateTokens(_ context.Context, id uuid.UUID, accessToken, refreshToken *string) error {
	return r.access(func(s *memState) error {
		a, ok := s.accounts[id]
		if !ok {
			return repository.ErrExternalAccountNotFound
		}
		a.AccessToken = cloneString(accessToken)
		if refreshToken != nil {
			a.RefreshToken = cloneString(refreshToken)
		}
		s.accounts[id] = a

		return nil
	})
}

func (r *memExternalAccountRepo) DeleteByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.access(func(s *memState) error {
		for id, a := range s.accounts {
			if a.UserID == userID {
				delete(s.accounts, id)
				n++
			}
		}

		return nil
	})

	return n, err
}

// --- integrations ---

type memIntegrationRepo struct {
	integrations map[string]*entity.Integration
}

func (r *memIntegrationRepo) FindByProvider(_ context.Context, provider string) (*entity.Integration, error) {
	integration, ok := r.integrations[provider]
	if !ok || !integration.IsActive {
		return nil, repository.ErrIntegrationNotFound
	}
	copied := *integration

	return &copied, nil
}
