package favorites

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/statestore"
)

func TestToggle(t *testing.T) {
	p := NewProvider(statestore.NewMemoryStore(0))
	f := p.For(appstate.NewScopes(0).Bind("visitor", uuid.New()))
	ctx := context.Background()
	id := uuid.New()

	added, err := f.Toggle(ctx, id)
	require.NoError(t, err)
	assert.True(t, added)

	has, err := f.Has(ctx, id)
	require.NoError(t, err)
	assert.True(t, has)

	added, err = f.Toggle(ctx, id)
	require.NoError(t, err)
	assert.False(t, added)

	list, err := f.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNoDuplicates(t *testing.T) {
	p := NewProvider(statestore.NewMemoryStore(0))
	f := p.For(appstate.NewScopes(0).Bind("visitor", uuid.New()))
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for _, id := range []uuid.UUID{a, b} {
		_, err := f.Toggle(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, f.Remove(ctx, b))
	require.NoError(t, f.Remove(ctx, b))

	list, err := f.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, list)
}

func TestTenantSwitchDiscards(t *testing.T) {
	store := statestore.NewMemoryStore(0)
	p := NewProvider(store)
	scopes := appstate.NewScopes(0)
	ctx := context.Background()

	_, err := p.For(scopes.Bind("visitor", uuid.New())).Toggle(ctx, uuid.New())
	require.NoError(t, err)

	list, err := p.For(scopes.Bind("visitor", uuid.New())).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, store.Len())
}

func TestPersistedAcrossRestart(t *testing.T) {
	store := statestore.NewMemoryStore(0)
	tenantID := uuid.New()
	id := uuid.New()

	_, err := NewProvider(store).For(appstate.NewScopes(0).Bind("visitor", tenantID)).Toggle(context.Background(), id)
	require.NoError(t, err)

	has, err := NewProvider(store).For(appstate.NewScopes(0).Bind("visitor", tenantID)).Has(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, has)
}
