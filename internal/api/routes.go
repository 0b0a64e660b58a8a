package api

import (
	"net/http"

	"github.com/restoku/restoku-server/internal/routing"
)

func page(f *routing.Forest, pattern, name string, fn routing.PageFunc) *routing.Route {
	return &routing.Route{Method: http.MethodGet, Pattern: pattern, Name: name, Forest: f, Page: fn}
}

func action(f *routing.Forest, method, pattern, name string, fn http.HandlerFunc) *routing.Route {
	return &routing.Route{Method: method, Pattern: pattern, Name: name, Forest: f, Action: fn}
}

func redirect(f *routing.Forest, pattern, name, target string) *routing.Route {
	return &routing.Route{Method: http.MethodGet, Pattern: pattern, Name: name, Forest: f, Redirect: target}
}

// routes declares every route of the platform and tenant trees
func (s *Server) routes(fs routing.Forests) []*routing.Route {
	var routes []*routing.Route
	add := func(rs ...*routing.Route) { routes = append(routes, rs...) }

	// Platform
	p := fs.Platform
	add(
		page(p, "/", "platform.home", s.platformHomePage),
		page(p, "/fitur", "platform.features", s.platformFeaturesPage),
		page(p, "/harga", "platform.pricing", s.platformPricingPage),
		page(p, "/kontak", "platform.contact", s.platformContactPage),
		action(p, http.MethodPost, "/daftar-restoran", "platform.register-restaurant", s.handleRegisterRestaurant),
		action(p, http.MethodGet, "/api/v1/health", "platform.health", s.handleHealth),
	)

	// Storefront
	sf := fs.Storefront
	add(
		page(sf, "/", "storefront.home", s.homePage),
		page(sf, "/menu", "storefront.menu", s.menuPage),
		page(sf, "/menu/{itemID}", "storefront.menu-item", s.menuItemPage),
		page(sf, "/keranjang", "storefront.cart", s.cartPage),
		action(sf, http.MethodPost, "/keranjang/items", "storefront.cart-add", s.handleCartAdd),
		action(sf, http.MethodPatch, "/keranjang/items/{itemID}", "storefront.cart-update", s.handleCartUpdate),
		action(sf, http.MethodDelete, "/keranjang/items/{itemID}", "storefront.cart-remove", s.handleCartRemove),
		action(sf, http.MethodPost, "/keranjang/checkout", "storefront.checkout", s.handleCheckout),
		action(sf, http.MethodPost, "/favorit/{itemID}", "storefront.favorite-toggle", s.handleFavoriteToggle),
		page(sf, "/faq", "storefront.faq", s.faqPage),
		page(sf, "/lokasi", "storefront.locations", s.locationsPage),
		action(sf, http.MethodPost, "/lokasi", "storefront.location-select", s.handleSelectLocation),
		action(sf, http.MethodPost, "/kontak", "storefront.contact", s.handleContact),
		page(sf, "/login", "storefront.login", s.loginPage),
		action(sf, http.MethodPost, "/login", "storefront.login-submit", s.handleLogin),
		action(sf, http.MethodPost, "/logout", "storefront.logout", s.handleLogout),
		action(sf, http.MethodPost, "/daftar", "storefront.register", s.handleRegister),
		action(sf, http.MethodPost, "/chat", "storefront.chat-open", s.handleChatOpen),
		action(sf, http.MethodPost, "/chat/{conversationID}/pesan", "storefront.chat-send", s.handleChatSend),
		action(sf, http.MethodGet, "/chat/ws", "storefront.chat-ws", s.handleChatSocket),
	)

	// Customer account
	c := fs.Customer
	add(
		redirect(c, "", "customer.index", "/akun/profil"),
		page(c, "/profil", "customer.profile", s.profilePage),
		action(c, http.MethodPut, "/profil", "customer.profile-update", s.handleProfileUpdate),
		action(c, http.MethodPost, "/keamanan/password", "customer.password", s.handlePasswordChange),
		action(c, http.MethodPost, "/keamanan/email", "customer.email", s.handleEmailChange),
		page(c, "/keamanan/email/konfirmasi", "customer.email-confirm", s.emailConfirmPage),
		redirect(c, "/pesanan", "customer.orders-index", "/akun/pesanan/aktif"),
		page(c, "/pesanan/aktif", "customer.orders-active", s.activeOrdersPage),
		page(c, "/pesanan/riwayat", "customer.orders-history", s.orderHistoryPage),
		page(c, "/pesanan/{orderID}", "customer.order", s.orderPage),
		redirect(c, "/reservasi", "customer.reservations-index", "/akun/reservasi/buat"),
		page(c, "/reservasi/buat", "customer.reservation-new", s.reservationFormPage),
		action(c, http.MethodPost, "/reservasi/buat", "customer.reservation-create", s.handleReservationCreate),
		page(c, "/reservasi/daftar", "customer.reservations", s.reservationsPage),
		action(c, http.MethodPost, "/reservasi/{reservationID}/batal", "customer.reservation-cancel", s.handleReservationCancel),
		page(c, "/favorit", "customer.favorites", s.favoritesPage),
		page(c, "/poin", "customer.points", s.pointsPage),
		page(c, "/notifikasi", "customer.notifications", s.notificationsPage),
		action(c, http.MethodPost, "/notifikasi/{notificationID}/baca", "customer.notification-read", s.handleNotificationRead),
		action(c, http.MethodPost, "/notifikasi/baca-semua", "customer.notifications-read-all", s.handleNotificationsReadAll),
		action(c, http.MethodPut, "/tampilan", "customer.appearance", s.handleAppearance),
	)

	// Restaurant administration
	a := fs.Admin
	add(
		redirect(a, "", "admin.index", "/admin/dasbor"),
		page(a, "/dasbor", "admin.dashboard", s.adminDashboardPage),
		redirect(a, "/menu", "admin.menu-index", "/admin/menu/kelola-menu"),
		page(a, "/menu/kelola-menu", "admin.menu", s.adminMenuPage),
		action(a, http.MethodPost, "/menu/kelola-menu", "admin.menu-create", s.handleMenuItemCreate),
		action(a, http.MethodPut, "/menu/kelola-menu/{itemID}", "admin.menu-update", s.handleMenuItemUpdate),
		action(a, http.MethodDelete, "/menu/kelola-menu/{itemID}", "admin.menu-delete", s.handleMenuItemDelete),
		page(a, "/menu/kategori", "admin.categories", s.adminCategoriesPage),
		action(a, http.MethodPost, "/menu/kategori", "admin.category-create", s.handleCategoryCreate),
		page(a, "/pesanan", "admin.orders", s.adminOrdersPage),
		action(a, http.MethodPost, "/pesanan/{orderID}/status", "admin.order-status", s.handleOrderStatus),
		page(a, "/reservasi", "admin.reservations", s.adminReservationsPage),
		action(a, http.MethodPost, "/reservasi/{reservationID}/status", "admin.reservation-status", s.handleReservationStatus),
		page(a, "/promosi", "admin.promos", s.adminPromosPage),
		action(a, http.MethodPost, "/promosi", "admin.promo-create", s.handlePromoCreate),
		action(a, http.MethodPut, "/promosi/{promoID}", "admin.promo-update", s.handlePromoUpdate),
		action(a, http.MethodDelete, "/promosi/{promoID}", "admin.promo-delete", s.handlePromoDelete),
		page(a, "/analitik", "admin.analytics", s.adminAnalyticsPage),
		page(a, "/staf", "admin.staff", s.adminStaffPage),
		action(a, http.MethodPost, "/staf", "admin.staff-create", s.handleStaffCreate),
		action(a, http.MethodPut, "/staf/{userID}", "admin.staff-update", s.handleStaffUpdate),
		action(a, http.MethodDelete, "/staf/{userID}", "admin.staff-delete", s.handleStaffDelete),
		redirect(a, "/pengaturan", "admin.settings-index", "/admin/pengaturan/restoran"),
		page(a, "/pengaturan/restoran", "admin.settings-restaurant", s.restaurantSettingsPage),
		action(a, http.MethodPut, "/pengaturan/restoran", "admin.settings-restaurant-update", s.handleRestaurantSettings),
		page(a, "/pengaturan/tema", "admin.settings-theme", s.themeSettingsPage),
		action(a, http.MethodPut, "/pengaturan/tema", "admin.settings-theme-update", s.handleThemeSettings),
		page(a, "/pengaturan/email", "admin.settings-email", s.emailSettingsPage),
		action(a, http.MethodPut, "/pengaturan/email", "admin.settings-email-update", s.handleEmailSettings),
		page(a, "/pengaturan/integrasi", "admin.settings-integrations", s.integrationSettingsPage),
		action(a, http.MethodPut, "/pengaturan/integrasi", "admin.settings-integrations-update", s.handleIntegrationSettings),
		page(a, "/log-aktivitas", "admin.activity", s.activityLogPage),
	)

	// Customer service console
	cs := fs.CS
	add(
		redirect(cs, "", "cs.index", "/cs/dasbor"),
		page(cs, "/dasbor", "cs.dashboard", s.csDashboardPage),
		page(cs, "/live-chat", "cs.live-chat", s.liveChatQueuePage),
		action(cs, http.MethodPost, "/live-chat/{conversationID}/ambil", "cs.live-chat-claim", s.handleChatClaim),
		action(cs, http.MethodPost, "/live-chat/{conversationID}/pesan", "cs.live-chat-send", s.handleAgentSend),
		action(cs, http.MethodPost, "/live-chat/{conversationID}/tutup", "cs.live-chat-close", s.handleChatClose),
		action(cs, http.MethodGet, "/live-chat/ws", "cs.live-chat-ws", s.handleAgentSocket),
		page(cs, "/faq", "cs.faq", s.csFAQPage),
		action(cs, http.MethodPost, "/faq", "cs.faq-create", s.handleFAQCreate),
		action(cs, http.MethodPut, "/faq/{faqID}", "cs.faq-update", s.handleFAQUpdate),
		action(cs, http.MethodDelete, "/faq/{faqID}", "cs.faq-delete", s.handleFAQDelete),
		page(cs, "/inbox", "cs.inbox", s.inboxPage),
		action(cs, http.MethodPost, "/inbox/{messageID}/baca", "cs.inbox-read", s.handleInboxRead),
	)

	return routes
}
