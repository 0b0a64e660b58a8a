package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/appstate"
	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/routing"
	"github.com/restoku/restoku-server/internal/storage"
)

func TestNotifier_NotifyPublishesAndLists(t *testing.T) {
	store := storage.NewMemoryStore()
	bus := events.NewLocalBus("restoku")
	n := NewNotifier(store, bus)
	tn := &models.Tenant{ID: uuid.New(), Slug: "warung"}
	userID := uuid.New()

	var published []events.Event
	_, err := bus.Subscribe("warung", events.NotificationTopic(userID.String()), func(e events.Event) {
		published = append(published, e)
	})
	require.NoError(t, err)

	note, err := n.Notify(context.Background(), tn, userID, "Pesanan siap", "Pesanan A-1 siap diambil", "/akun/pesanan/aktif")
	require.NoError(t, err)
	require.Len(t, published, 1)

	var got models.Notification
	require.NoError(t, published[0].Decode(&got))
	assert.Equal(t, note.ID, got.ID)

	_, err = n.Notify(context.Background(), tn, userID, "Promo", "Diskon 10%", "")
	require.NoError(t, err)

	inbox, err := n.Inbox(context.Background(), tn.ID, userID, 20)
	require.NoError(t, err)
	assert.Len(t, inbox.Items, 2)
	assert.Equal(t, 2, inbox.Unread)

	require.NoError(t, n.MarkRead(context.Background(), tn.ID, userID, note.ID))
	inbox, err = n.Inbox(context.Background(), tn.ID, userID, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.Unread)

	count, err := n.MarkAllRead(context.Background(), tn.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifier_InboxIsTenantScoped(t *testing.T) {
	store := storage.NewMemoryStore()
	n := NewNotifier(store, events.NewLocalBus("restoku"))
	userID := uuid.New()
	a := &models.Tenant{ID: uuid.New(), Slug: "a-resto"}
	b := &models.Tenant{ID: uuid.New(), Slug: "b-resto"}

	_, err := n.Notify(context.Background(), a, userID, "A", "", "")
	require.NoError(t, err)

	inbox, err := n.Inbox(context.Background(), b.ID, userID, 20)
	require.NoError(t, err)
	assert.Empty(t, inbox.Items)
}

func TestToasts_DrainOnce(t *testing.T) {
	var toasts Toasts
	toasts.Success("Ditambahkan ke keranjang")
	toasts.Error("Kode promo tidak valid")

	got := toasts.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, KindSuccess, got[0].Kind)
	assert.Empty(t, toasts.Drain())
}

func TestToasts_Bounded(t *testing.T) {
	var toasts Toasts
	for i := 0; i < maxToasts+3; i++ {
		toasts.Push(KindInfo, string(rune('a'+i)))
	}
	got := toasts.Drain()
	require.Len(t, got, maxToasts)
	assert.Equal(t, "d", got[0].Message)
}

func TestToastProvider_Decorate(t *testing.T) {
	p := NewToastProvider()
	scope := appstate.NewScopes(0).Bind("visitor", uuid.New())
	p.For(scope).Success("Berhasil masuk")

	var view routing.PageView
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Decorate(r, &view)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(appstate.ScopeKey.With(req.Context(), scope))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Contains(t, view.Meta, "toasts")
	assert.Equal(t, []Toast{{Kind: KindSuccess, Message: "Berhasil masuk"}}, view.Meta["toasts"])
	assert.Empty(t, p.For(scope).Drain())
}
