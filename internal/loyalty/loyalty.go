// Package loyalty keeps per-tenant customer points: earned on orders,
// redeemed at checkout.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
)

var (
	// SpendPerPoint is the paid amount that earns one point
	SpendPerPoint = decimal.NewFromInt(10000)
	// PointValue is the discount one point is worth at checkout
	PointValue = decimal.NewFromInt(100)
)

// ErrInvalidPoints is returned for a negative redemption
var ErrInvalidPoints = errors.New("points must not be negative")

// Store is the loyalty part of the store
type Store interface {
	GetLoyaltyAccount(ctx context.Context, tenantID, userID uuid.UUID) (*models.LoyaltyAccount, error)
	AddLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) (*models.LoyaltyAccount, error)
	ListLoyaltyTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.LoyaltyTransaction, error)
	CancelledOrderPoints(ctx context.Context, tenantID, userID uuid.UUID) (map[uuid.UUID]int, error)
}

// PointsFor returns the points earned by a paid total
func PointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(SpendPerPoint).Floor().IntPart())
}

// Value returns the checkout discount worth of points
func Value(points int) decimal.Decimal {
	return PointValue.Mul(decimal.NewFromInt(int64(points)))
}

// Redeemable caps points to what the balance allows and the amount can absorb
func Redeemable(points, balance int, amount decimal.Decimal) int {
	if points > balance {
		points = balance
	}
	if limit := int(amount.Div(PointValue).Floor().IntPart()); points > limit {
		points = limit
	}
	if points < 0 {
		return 0
	}
	return points
}

// Summary is the customer points page
type Summary struct {
	Account      *models.LoyaltyAccount       `json:"account"`
	Value        decimal.Decimal              `json:"value"`
	Transactions []*models.LoyaltyTransaction `json:"transactions"`
}

// Service applies point movements to the ledger
type Service struct {
	store Store
	now   func() time.Time

	// serializes cancellations so a clawback is not applied twice
	cancelMu sync.Mutex
}

// NewService creates the loyalty service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Name implements appstate.Provider
func (s *Service) Name() string { return "loyalty" }

// Start implements appstate.Provider
func (s *Service) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (s *Service) Close() error { return nil }

// Account returns the customer's account, zero balance when none exists yet
func (s *Service) Account(ctx context.Context, tenantID, userID uuid.UUID) (*models.LoyaltyAccount, error) {
	account, err := s.store.GetLoyaltyAccount(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("get loyalty account: %w", err)
	}
	return account, nil
}

// Summary returns the account with its latest ledger entries
func (s *Service) Summary(ctx context.Context, tenantID, userID uuid.UUID, limit int) (*Summary, error) {
	account, err := s.Account(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	txns, err := s.store.ListLoyaltyTransactions(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list loyalty transactions: %w", err)
	}
	if txns == nil {
		txns = []*models.LoyaltyTransaction{}
	}
	return &Summary{Account: account, Value: Value(account.Balance), Transactions: txns}, nil
}

// Earn credits the points for a paid order. Orders below one point earn nothing
// and leave no ledger entry.
func (s *Service) Earn(ctx context.Context, order *models.Order) (int, error) {
	points := PointsFor(order.Total)
	if points == 0 {
		return 0, nil
	}
	orderID := order.ID
	_, err := s.store.AddLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
		CreatedAt: s.now(),
		TenantID:  order.TenantID,
		UserID:    order.CustomerID,
		OrderID:   &orderID,
		Points:    points,
		Reason:    "Pesanan " + order.Number,
	})
	if err != nil {
		return 0, fmt.Errorf("earn points: %w", err)
	}
	return points, nil
}

// Redeem debits points for an order. storage.ErrInsufficientPoints is
// returned when the balance is too low.
func (s *Service) Redeem(ctx context.Context, order *models.Order, points int) (*models.LoyaltyAccount, error) {
	if points < 0 {
		return nil, ErrInvalidPoints
	}
	if points == 0 {
		return s.Account(ctx, order.TenantID, order.CustomerID)
	}
	orderID := order.ID
	account, err := s.store.AddLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
		CreatedAt: s.now(),
		TenantID:  order.TenantID,
		UserID:    order.CustomerID,
		OrderID:   &orderID,
		Points:    -points,
		Reason:    "Penukaran poin " + order.Number,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientPoints) {
			return nil, err
		}
		return nil, fmt.Errorf("redeem points: %w", err)
	}
	return account, nil
}

// Refund returns redeemed points of a cancelled order
func (s *Service) Refund(ctx context.Context, order *models.Order) error {
	if order.PointsUsed == 0 {
		return nil
	}
	orderID := order.ID
	_, err := s.store.AddLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
		CreatedAt: s.now(),
		TenantID:  order.TenantID,
		UserID:    order.CustomerID,
		OrderID:   &orderID,
		Points:    order.PointsUsed,
		Reason:    "Pengembalian poin " + order.Number,
	})
	if err != nil {
		return fmt.Errorf("refund points: %w", err)
	}
	return nil
}

// Cancel settles the ledger for an order that has just been cancelled.
// Redeemed points are returned first. Then points still credited by cancelled
// orders of the customer are taken back, as far as the balance allows; what
// cannot be taken back yet is retried on the customer's next cancellation.
// It returns the points taken back.
func (s *Service) Cancel(ctx context.Context, order *models.Order) (int, error) {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	if err := s.Refund(ctx, order); err != nil {
		return 0, err
	}

	outstanding, err := s.store.CancelledOrderPoints(ctx, order.TenantID, order.CustomerID)
	if err != nil {
		return 0, fmt.Errorf("cancelled order points: %w", err)
	}
	if len(outstanding) == 0 {
		return 0, nil
	}
	account, err := s.Account(ctx, order.TenantID, order.CustomerID)
	if err != nil {
		return 0, err
	}

	// this order first, then the older debts in a stable order
	ids := make([]uuid.UUID, 0, len(outstanding))
	for id := range outstanding {
		if id != order.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if _, ok := outstanding[order.ID]; ok {
		ids = append([]uuid.UUID{order.ID}, ids...)
	}

	balance, reversed := account.Balance, 0
	for _, id := range ids {
		points := outstanding[id]
		if points > balance {
			points = balance
		}
		if points <= 0 {
			break
		}
		reason := "Pembatalan poin"
		if id == order.ID {
			reason += " " + order.Number
		}
		orderID := id
		_, err := s.store.AddLoyaltyTransaction(ctx, &models.LoyaltyTransaction{
			CreatedAt: s.now(),
			TenantID:  order.TenantID,
			UserID:    order.CustomerID,
			OrderID:   &orderID,
			Points:    -points,
			Reason:    reason,
		})
		if err != nil {
			return reversed, fmt.Errorf("reverse points: %w", err)
		}
		balance -= points
		reversed += points
	}
	return reversed, nil
}
