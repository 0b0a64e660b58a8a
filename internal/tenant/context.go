package tenant

import (
	"context"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/models"
)

type resolved struct {
	tenant   *models.Tenant
	basePath string
}

var key = appstate.NewKey[*resolved]("tenant")

// WithTenant returns a context carrying the resolved tenant and its URL base
func WithTenant(ctx context.Context, t *models.Tenant, basePath string) context.Context {
	return key.With(ctx, &resolved{tenant: t, basePath: basePath})
}

// FromContext returns the tenant resolved for the request
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	r, ok := key.From(ctx)
	if !ok {
		return nil, false
	}
	return r.tenant, true
}

// Must returns the tenant or panics when called outside the tenant gate
func Must(ctx context.Context) *models.Tenant {
	return key.Must(ctx).tenant
}

// BasePath returns the URL prefix of the tenant subtree, "" in subdomain mode or outside a tenant
func BasePath(ctx context.Context) string {
	r, ok := key.From(ctx)
	if !ok {
		return ""
	}
	return r.basePath
}
