package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("jwt:\n  secret: s3cret\n"))
	require.NoError(t, err)

	assert.Equal(t, TenantModePath, cfg.Tenant.Mode)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "restoku_token", cfg.Session.TokenCookie)
	assert.Equal(t, "restoku_visitor", cfg.Session.VisitorCookie)
	assert.Equal(t, 5*time.Minute, cfg.Tenant.CacheTTL)
	assert.Equal(t, "restoku", cfg.NATS.SubjectPrefix)
}

func TestParse_SubdomainRequiresBaseDomain(t *testing.T) {
	_, err := Parse([]byte("jwt:\n  secret: x\ntenant:\n  mode: subdomain\n"))
	require.Error(t, err)

	cfg, err := Parse([]byte("jwt:\n  secret: x\ntenant:\n  mode: subdomain\n  base_domain: .Restoku.ID\n"))
	require.NoError(t, err)
	assert.Equal(t, "restoku.id", cfg.Tenant.BaseDomain)
}

func TestParse_InvalidMode(t *testing.T) {
	_, err := Parse([]byte("jwt:\n  secret: x\ntenant:\n  mode: header\n"))
	assert.Error(t, err)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("TENANT_MODE", "subdomain")
	t.Setenv("TENANT_BASE_DOMAIN", "restoku.test")
	t.Setenv("DATABASE_URL", "postgres://localhost/restoku")

	cfg, err := Parse([]byte("jwt:\n  secret: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, TenantModeSubdomain, cfg.Tenant.Mode)
	assert.Equal(t, "restoku.test", cfg.Tenant.BaseDomain)
	assert.Equal(t, "postgres://localhost/restoku", cfg.Database.DSN)
}

func TestParse_SecretsKeyLength(t *testing.T) {
	_, err := Parse([]byte("jwt:\n  secret: x\nsecrets:\n  key: short\n"))
	assert.Error(t, err)
}
