package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cambio/config"
	"cambio/internal/domain/entity"
	"cambio/internal/domain/service"
	"cambio/internal/infra/auth"

	"github.com/stretchr/testify/require"
)

const testTTL = 1440 * time.Minute

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth:             &config.AuthConfig{TokenExpirationMinutes: int(testTTL / time.Minute)},
		PasswordStrength: config.DefaultPasswordStrength(),
		OAuth:            &config.OAuthConfig{PublicURL: "https://api.cambio.test/"},
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// recordingMetrics keeps every recorded label set in order.
type recordingMetrics struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMetrics) add(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
}

func (m *recordingMetrics) RecordLogin(_ context.Context, result string) {
	m.add("login:" + result)
}

func (m *recordingMetrics) RecordTokenValidation(_ context.Context, result string) {
	m.add("validate:" + result)
}

func (m *recordingMetrics) RecordOAuthLink(_ context.Context, provider, outcome string) {
	m.add("oauth:" + provider + ":" + outcome)
}

func (m *recordingMetrics) RecordPasswordReset(_ context.Context, stage, result string) {
	m.add("reset:" + stage + ":" + result)
}

func (m *recordingMetrics) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.events...)
}

var (
	sharedHasher     service.PasswordHasher
	sharedHasherOnce sync.Once
	hashCache        sync.Map
)

func testHasher() service.PasswordHasher {
	sharedHasherOnce.Do(func() {
		sharedHasher = auth.NewPasswordHasher(newTestConfig())
	})

	return sharedHasher
}

// hashOf returns an argon2id hash of password, computed once per test binary.
func hashOf(t *testing.T, password string) string {
	t.Helper()

	if cached, ok := hashCache.Load(password); ok {
		return cached.(string)
	}
	hash, err := testHasher().Hash(password)
	require.NoError(t, err)
	hashCache.Store(password, hash)

	return hash
}

func strPtr(s string) *string {
	return &s
}

// seedAccount stores a credentialed profile and returns both.
func seedAccount(t *testing.T, store *memStore, username, password string) (*entity.Credential, *entity.Profile) {
	t.Helper()

	ctx := context.Background()
	factory := store.direct()

	credential := &entity.Credential{Username: username, PasswordHash: hashOf(t, password)}
	require.NoError(t, factory.CredentialRepo().Create(ctx, credential))

	profile := &entity.Profile{
		AuthID: &credential.ID,
		Email:  strPtr(username),
		Names:  strPtr("Alice"),
		Role:   entity.RoleClient,
	}
	require.NoError(t, factory.ProfileRepo().Create(ctx, profile))

	return credential, profile
}
