package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/config"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:          "test-secret",
		Issuer:          "restoku",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testConfig())
	tenantID := uuid.New()
	user := &models.User{ID: uuid.New(), TenantID: &tenantID, Email: "a@b.c", Name: "Ani", Role: models.RoleTenantAdmin}

	pair, err := m.GenerateTokenPair(user)
	require.NoError(t, err)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleTenantAdmin, claims.Role)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.NotEmpty(t, claims.ID)

	_, err = m.ValidateToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, userID, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestJWTManager_RejectsForeignSecretAndExpired(t *testing.T) {
	m := NewJWTManager(testConfig())
	user := &models.User{ID: uuid.New(), Role: models.RoleCustomer}

	otherCfg := testConfig()
	otherCfg.Secret = "other"
	pair, err := NewJWTManager(otherCfg).GenerateTokenPair(user)
	require.NoError(t, err)
	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewJWTManager(testConfig())
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err = past.GenerateTokenPair(user)
	require.NoError(t, err)
	_, err = m.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore, uuid.UUID) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := NewService(store, NewJWTManager(testConfig()), NewMemoryRevocations())
	return svc, store, uuid.New()
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, tenantID := newTestService(t)

	_, err := svc.Register(ctx, &models.User{TenantID: &tenantID, Name: "Sari", Email: "Sari@Example.com"}, "rahasia123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "sari@example.com"}, "x12345678")
	assert.ErrorIs(t, err, ErrEmailTaken)

	user, pair, err := svc.Login(ctx, &tenantID, "sari@example.com", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotNil(t, user.LastLoginAt)

	claims, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = svc.Login(ctx, &tenantID, "sari@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	other := uuid.New()
	_, _, err = svc.Login(ctx, &other, "sari@example.com", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_PlatformAdminLogsInOnAnyTenant(t *testing.T) {
	ctx := context.Background()
	svc, _, tenantID := newTestService(t)

	_, err := svc.Register(ctx, &models.User{Email: "root@restoku.id", Role: models.RolePlatformAdmin}, "rahasia123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, &models.User{Email: "plain@restoku.id", Role: models.RoleCustomer}, "rahasia123")
	require.NoError(t, err)

	user, _, err := svc.Login(ctx, &tenantID, "root@restoku.id", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, models.RolePlatformAdmin, user.Role)

	_, _, err = svc.Login(ctx, &tenantID, "plain@restoku.id", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, _, tenantID := newTestService(t)

	pair, err := svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "a@b.c"}, "rahasia123")
	require.NoError(t, err)

	claims, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims))

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestService_RefreshRotates(t *testing.T) {
	ctx := context.Background()
	svc, _, tenantID := newTestService(t)

	pair, err := svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "a@b.c"}, "rahasia123")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestService_EmailChange(t *testing.T) {
	ctx := context.Background()
	svc, store, tenantID := newTestService(t)

	_, err := svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "old@example.com"}, "rahasia123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "taken@example.com"}, "rahasia123")
	require.NoError(t, err)

	user, err := store.GetUserByEmail(ctx, &tenantID, "old@example.com")
	require.NoError(t, err)

	_, err = svc.StartEmailChange(ctx, user.ID, "taken@example.com", "rahasia123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.StartEmailChange(ctx, user.ID, "new@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.StartEmailChange(ctx, user.ID, "New@Example.com", "rahasia123")
	require.NoError(t, err)

	pending, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", pending.Email)
	assert.Equal(t, "new@example.com", pending.PendingEmail)

	_, err = svc.ConfirmEmailChange(ctx, "bogus")
	assert.ErrorIs(t, err, ErrEmailTokenInvalid)

	confirmed, err := svc.ConfirmEmailChange(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", confirmed.Email)
	assert.Empty(t, confirmed.PendingEmail)

	_, err = svc.ConfirmEmailChange(ctx, token)
	assert.ErrorIs(t, err, ErrEmailTokenInvalid)
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, store, tenantID := newTestService(t)

	_, err := svc.Register(ctx, &models.User{TenantID: &tenantID, Email: "a@b.c"}, "rahasia123")
	require.NoError(t, err)
	user, err := store.GetUserByEmail(ctx, &tenantID, "a@b.c")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong", "baru12345"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "rahasia123", "baru12345"))

	_, _, err = svc.Login(ctx, &tenantID, "a@b.c", "rahasia123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, &tenantID, "a@b.c", "baru12345")
	assert.NoError(t, err)
}

func TestMemoryRevocations_Expiry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevocations()

	require.NoError(t, r.Revoke(ctx, "jti-1", -time.Second))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-2", time.Minute))
	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, r.RevokeUser(ctx, "u1", time.Hour))
	revoked, err = r.IsUserRevoked(ctx, "u1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, revoked)
}
