package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/models"
)

// MemoryStore implements Store in process memory for development and tests.
// Writes apply immediately; Commit and Rollback are no-ops.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[uuid.UUID]*models.User
	tenants       map[uuid.UUID]*models.Tenant
	categories    map[uuid.UUID]*models.MenuCategory
	menuItems     map[uuid.UUID]*models.MenuItem
	orders        map[uuid.UUID]*models.Order
	reservations  map[uuid.UUID]*models.Reservation
	promos        map[uuid.UUID]*models.PromoCode
	activity      []*models.ActivityLog
	faqs          map[uuid.UUID]*models.FAQ
	conversations map[uuid.UUID]*models.Conversation
	chatMessages  []*models.ChatMessage
	inbox         map[uuid.UUID]*models.InboxMessage
	notifications map[uuid.UUID]*models.Notification
	loyalty       map[[2]uuid.UUID]*models.LoyaltyAccount
	loyaltyLedger []*models.LoyaltyTransaction
	emailSettings map[uuid.UUID]*models.EmailSettings
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[uuid.UUID]*models.User),
		tenants:       make(map[uuid.UUID]*models.Tenant),
		categories:    make(map[uuid.UUID]*models.MenuCategory),
		menuItems:     make(map[uuid.UUID]*models.MenuItem),
		orders:        make(map[uuid.UUID]*models.Order),
		reservations:  make(map[uuid.UUID]*models.Reservation),
		promos:        make(map[uuid.UUID]*models.PromoCode),
		faqs:          make(map[uuid.UUID]*models.FAQ),
		conversations: make(map[uuid.UUID]*models.Conversation),
		inbox:         make(map[uuid.UUID]*models.InboxMessage),
		notifications: make(map[uuid.UUID]*models.Notification),
		loyalty:       make(map[[2]uuid.UUID]*models.LoyaltyAccount),
		emailSettings: make(map[uuid.UUID]*models.EmailSettings),
	}
}

// BeginTx returns the store itself
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemoryStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemoryStore) Rollback() error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// ========== Users ==========

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range s.users {
		if u.Email == user.Email && sameTenant(u.TenantID, user.TenantID) {
			return ErrDuplicateKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func sameTenant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, tenantID *uuid.UUID, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email && sameTenant(u.TenantID, tenantID) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUserByEmailToken(ctx context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return nil, ErrNotFound
	}
	for _, u := range s.users {
		if u.EmailChangeToken == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	user.Email = strings.ToLower(user.Email)
	for _, u := range s.users {
		if u.ID != user.ID && u.Email == user.Email && sameTenant(u.TenantID, existing.TenantID) {
			return ErrDuplicateKey
		}
	}
	user.UpdatedAt = time.Now()
	user.CreatedAt = existing.CreatedAt
	user.TenantID = existing.TenantID

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.TenantID == nil || *u.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context, tenantID uuid.UUID, roles []models.Role, limit, offset int) ([]*models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.User
	for _, u := range s.users {
		if u.TenantID == nil || *u.TenantID != tenantID {
			continue
		}
		if len(roles) > 0 && !containsRole(roles, u.Role) {
			continue
		}
		cp := *u
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), int64(len(list)), nil
}

func containsRole(roles []models.Role, r models.Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// ========== Tenants ==========

func cloneTenant(t *models.Tenant) *models.Tenant {
	cp := *t
	cp.Outlets = append(models.Outlets(nil), t.Outlets...)
	return &cp
}

func (s *MemoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant.Slug = strings.ToLower(tenant.Slug)
	for _, t := range s.tenants {
		if t.Slug == tenant.Slug {
			return ErrDuplicateKey
		}
	}
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	s.tenants[tenant.ID] = cloneTenant(tenant)
	return nil
}

func (s *MemoryStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTenant(t), nil
}

func (s *MemoryStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slug = strings.ToLower(slug)
	for _, t := range s.tenants {
		if t.Slug == slug {
			return cloneTenant(t), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tenants[tenant.ID]
	if !ok {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	tenant.CreatedAt = existing.CreatedAt
	tenant.Slug = existing.Slug
	s.tenants[tenant.ID] = cloneTenant(tenant)
	return nil
}

func (s *MemoryStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.Tenant
	for _, t := range s.tenants {
		list = append(list, cloneTenant(t))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), int64(len(list)), nil
}

// ========== Menu ==========

func (s *MemoryStore) CreateMenuCategory(ctx context.Context, category *models.MenuCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category.Touch(time.Now())
	cp := *category
	s.categories[category.ID] = &cp
	return nil
}

func (s *MemoryStore) ListMenuCategories(ctx context.Context, tenantID uuid.UUID) ([]*models.MenuCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.MenuCategory
	for _, c := range s.categories {
		if c.TenantID == tenantID {
			cp := *c
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (s *MemoryStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.Touch(time.Now())
	cp := *item
	s.menuItems[item.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMenuItem(ctx context.Context, tenantID, id uuid.UUID) (*models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.menuItems[id]
	if !ok || item.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.menuItems[item.ID]
	if !ok || existing.TenantID != item.TenantID {
		return ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now()
	cp := *item
	s.menuItems[item.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteMenuItem(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menuItems[id]
	if !ok || item.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.menuItems, id)
	return nil
}

func (s *MemoryStore) ListMenuItems(ctx context.Context, tenantID uuid.UUID, filter MenuFilter) ([]*models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.MenuItem
	for _, item := range s.menuItems {
		if item.TenantID != tenantID {
			continue
		}
		if filter.CategoryID != nil && (item.CategoryID == nil || *item.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.AvailableOnly && !item.Available {
			continue
		}
		if filter.FeaturedOnly && !item.Featured {
			continue
		}
		cp := *item
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// ========== Orders ==========

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.Touch(time.Now())
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

func orderMatches(o *models.Order, filter models.OrderFilter) bool {
	if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, st := range filter.Statuses {
			if o.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.From != nil && o.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !o.CreatedAt.Before(*filter.To) {
		return false
	}
	return true
}

func (s *MemoryStore) ListOrders(ctx context.Context, tenantID uuid.UUID, filter models.OrderFilter, limit, offset int) ([]*models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.Order
	for _, o := range s.orders {
		if o.TenantID == tenantID && orderMatches(o, filter) {
			cp := cloneOrder(o)
			cp.Items = nil
			list = append(list, cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), int64(len(list)), nil
}

func (s *MemoryStore) GetOrderStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.OrderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.OrderStats{ByStatus: make(map[models.OrderStatus]int64)}
	top := make(map[uuid.UUID]*models.TopItem)

	for _, o := range s.orders {
		if o.TenantID != tenantID || o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		stats.ByStatus[o.Status]++
		if o.Status == models.OrderCancelled {
			continue
		}
		stats.OrderCount++
		stats.Revenue = stats.Revenue.Add(o.Total)
		for _, item := range o.Items {
			t, ok := top[item.MenuItemID]
			if !ok {
				t = &models.TopItem{MenuItemID: item.MenuItemID, Name: item.Name}
				top[item.MenuItemID] = t
			}
			t.Quantity += int64(item.Quantity)
			t.Revenue = t.Revenue.Add(item.LineTotal())
		}
	}

	if stats.OrderCount > 0 {
		stats.AverageOrder = stats.Revenue.Div(decimal.NewFromInt(stats.OrderCount)).Round(2)
	}
	for _, t := range top {
		stats.TopItems = append(stats.TopItems, *t)
	}
	sort.Slice(stats.TopItems, func(i, j int) bool {
		if stats.TopItems[i].Quantity != stats.TopItems[j].Quantity {
			return stats.TopItems[i].Quantity > stats.TopItems[j].Quantity
		}
		return stats.TopItems[i].Name < stats.TopItems[j].Name
	})
	if len(stats.TopItems) > 5 {
		stats.TopItems = stats.TopItems[:5]
	}
	return stats, nil
}

// ========== Reservations ==========

func (s *MemoryStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Touch(time.Now())
	if r.Status == "" {
		r.Status = models.ReservationPending
	}
	cp := *r
	s.reservations[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, tenantID, id uuid.UUID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok || r.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpdateReservationStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok || r.TenantID != tenantID {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListReservations(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID, limit, offset int) ([]*models.Reservation, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.Reservation
	for _, r := range s.reservations {
		if r.TenantID != tenantID || (customerID != nil && r.CustomerID != *customerID) {
			continue
		}
		cp := *r
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ReservedAt.After(list[j].ReservedAt) })
	return page(list, limit, offset), int64(len(list)), nil
}

// ========== Promos ==========

func (s *MemoryStore) CreatePromo(ctx context.Context, p *models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Code = strings.ToUpper(p.Code)
	for _, existing := range s.promos {
		if existing.TenantID == p.TenantID && existing.Code == p.Code {
			return ErrDuplicateKey
		}
	}
	p.Touch(time.Now())
	cp := *p
	s.promos[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPromo(ctx context.Context, tenantID, id uuid.UUID) (*models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.promos[id]
	if !ok || p.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPromoByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = strings.ToUpper(code)
	for _, p := range s.promos {
		if p.TenantID == tenantID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdatePromo(ctx context.Context, p *models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.promos[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return ErrNotFound
	}
	p.Code = strings.ToUpper(p.Code)
	for _, other := range s.promos {
		if other.ID != p.ID && other.TenantID == p.TenantID && other.Code == p.Code {
			return ErrDuplicateKey
		}
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	p.UsedCount = existing.UsedCount
	cp := *p
	s.promos[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePromo(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promos[id]
	if !ok || p.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.promos, id)
	return nil
}

func (s *MemoryStore) ListPromos(ctx context.Context, tenantID uuid.UUID) ([]*models.PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.PromoCode
	for _, p := range s.promos {
		if p.TenantID == tenantID {
			cp := *p
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) IncrementPromoUsage(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promos[id]
	if !ok || p.TenantID != tenantID {
		return ErrNotFound
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return fmt.Errorf("%w: %w", ErrInvalidData, models.ErrPromoExhausted)
	}
	p.UsedCount++
	p.UpdatedAt = time.Now()
	return nil
}

// ========== Activity ==========

func (s *MemoryStore) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Level == "" {
		entry.Level = models.ActivityLevelInfo
	}
	cp := *entry
	s.activity = append(s.activity, &cp)
	return nil
}

func (s *MemoryStore) ListActivityLogs(ctx context.Context, tenantID uuid.UUID, filter models.ActivityFilter, limit, offset int) ([]*models.ActivityLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.ActivityLog
	for i := len(s.activity) - 1; i >= 0; i-- {
		e := s.activity[i]
		if e.TenantID != tenantID {
			continue
		}
		if filter.Type != nil && e.Type != *filter.Type {
			continue
		}
		if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
			continue
		}
		if filter.StartTime != nil && e.CreatedAt.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && e.CreatedAt.After(*filter.EndTime) {
			continue
		}
		cp := *e
		list = append(list, &cp)
	}
	return page(list, limit, offset), int64(len(list)), nil
}

// ========== FAQ ==========

func (s *MemoryStore) CreateFAQ(ctx context.Context, faq *models.FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	faq.Touch(time.Now())
	cp := *faq
	s.faqs[faq.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateFAQ(ctx context.Context, faq *models.FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.faqs[faq.ID]
	if !ok || existing.TenantID != faq.TenantID {
		return ErrNotFound
	}
	faq.CreatedAt = existing.CreatedAt
	faq.UpdatedAt = time.Now()
	cp := *faq
	s.faqs[faq.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteFAQ(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.faqs[id]
	if !ok || f.TenantID != tenantID {
		return ErrNotFound
	}
	delete(s.faqs, id)
	return nil
}

func (s *MemoryStore) ListFAQs(ctx context.Context, tenantID uuid.UUID, publishedOnly bool) ([]*models.FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.FAQ
	for _, f := range s.faqs {
		if f.TenantID != tenantID || (publishedOnly && !f.Published) {
			continue
		}
		cp := *f
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// ========== Live chat ==========

func (s *MemoryStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Touch(time.Now())
	if c.Status == "" {
		c.Status = models.ConversationWaiting
	}
	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetConversation(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok || c.TenantID != tenantID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) UpdateConversation(ctx context.Context, c *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.conversations[c.ID]
	if !ok || existing.TenantID != c.TenantID {
		return ErrNotFound
	}
	existing.AgentID = c.AgentID
	existing.Status = c.Status
	existing.ClosedAt = c.ClosedAt
	existing.UpdatedAt = time.Now()
	c.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, tenantID uuid.UUID, statuses []models.ConversationStatus) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.Conversation
	for _, c := range s.conversations {
		if c.TenantID != tenantID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if c.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *MemoryStore) CreateChatMessage(ctx context.Context, m *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	cp := *m
	s.chatMessages = append(s.chatMessages, &cp)
	return nil
}

func (s *MemoryStore) ListChatMessages(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.ChatMessage
	for _, m := range s.chatMessages {
		if m.TenantID == tenantID && m.ConversationID == conversationID {
			cp := *m
			list = append(list, &cp)
		}
	}
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

// ========== Inbox ==========

func (s *MemoryStore) CreateInboxMessage(ctx context.Context, m *models.InboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Touch(time.Now())
	cp := *m
	s.inbox[m.ID] = &cp
	return nil
}

func (s *MemoryStore) ListInboxMessages(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.InboxMessage, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.InboxMessage
	for _, m := range s.inbox {
		if m.TenantID == tenantID {
			cp := *m
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), int64(len(list)), nil
}

func (s *MemoryStore) MarkInboxMessageRead(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.inbox[id]
	if !ok || m.TenantID != tenantID {
		return ErrNotFound
	}
	if m.ReadAt == nil {
		now := time.Now()
		m.ReadAt = &now
	}
	return nil
}

// ========== Notifications ==========

func (s *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.Notification
	for _, n := range s.notifications {
		if n.TenantID == tenantID && n.UserID == userID {
			cp := *n
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, 0), nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.TenantID != tenantID || n.UserID != userID {
		return ErrNotFound
	}
	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
	}
	return nil
}

func (s *MemoryStore) MarkAllNotificationsRead(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var count int64
	for _, n := range s.notifications {
		if n.TenantID == tenantID && n.UserID == userID && n.ReadAt == nil {
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

// ========== Loyalty ==========

func (s *MemoryStore) GetLoyaltyAccount(ctx context.Context, tenantID, userID uuid.UUID) (*models.LoyaltyAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.loyalty[[2]uuid.UUID{tenantID, userID}]; ok {
		cp := *a
		return &cp, nil
	}
	return &models.LoyaltyAccount{TenantID: tenantID, UserID: userID}, nil
}

func (s *MemoryStore) AddLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) (*models.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]uuid.UUID{txn.TenantID, txn.UserID}
	account, ok := s.loyalty[key]
	if !ok {
		account = &models.LoyaltyAccount{TenantID: txn.TenantID, UserID: txn.UserID}
	}
	if account.Balance+txn.Points < 0 {
		return nil, ErrInsufficientPoints
	}

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	account.Balance += txn.Points
	if txn.Points > 0 {
		account.Lifetime += txn.Points
	}
	account.UpdatedAt = txn.CreatedAt
	s.loyalty[key] = account

	cp := *txn
	s.loyaltyLedger = append(s.loyaltyLedger, &cp)

	result := *account
	return &result, nil
}

func (s *MemoryStore) ListLoyaltyTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.LoyaltyTransaction
	for i := len(s.loyaltyLedger) - 1; i >= 0; i-- {
		t := s.loyaltyLedger[i]
		if t.TenantID == tenantID && t.UserID == userID {
			cp := *t
			list = append(list, &cp)
		}
	}
	return page(list, limit, 0), nil
}

func (s *MemoryStore) CancelledOrderPoints(ctx context.Context, tenantID, userID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make(map[uuid.UUID]int)
	for _, t := range s.loyaltyLedger {
		if t.TenantID != tenantID || t.UserID != userID || t.OrderID == nil {
			continue
		}
		if o, ok := s.orders[*t.OrderID]; ok && o.Status == models.OrderCancelled {
			sums[*t.OrderID] += t.Points
		}
	}
	for id, points := range sums {
		if points <= 0 {
			delete(sums, id)
		}
	}
	return sums, nil
}

// ========== Settings ==========

func (s *MemoryStore) GetEmailSettings(ctx context.Context, tenantID uuid.UUID) (*models.EmailSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	es, ok := s.emailSettings[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *es
	return &cp, nil
}

func (s *MemoryStore) SaveEmailSettings(ctx context.Context, es *models.EmailSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	es.UpdatedAt = time.Now()
	cp := *es
	s.emailSettings[es.TenantID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
