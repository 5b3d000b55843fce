package marketplace

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
	"github.com/sudo-init-do/gigbridge/internal/escrow"
)

// Service implements the order lifecycle: bids, orders and milestones.
// Every operation takes the acting user explicitly and validates ownership
// against the stored row, never against request state.
type Service struct {
	store Store
	esc   *escrow.Coordinator
}

func NewService(store Store, esc *escrow.Coordinator) *Service {
	return &Service{store: store, esc: esc}
}

// EscrowSource adapts the marketplace store to the narrow read interface
// the escrow coordinator works against.
type EscrowSource struct {
	store Store
}

func NewEscrowSource(store Store) *EscrowSource {
	return &EscrowSource{store: store}
}

func (s *EscrowSource) Order(ctx context.Context, orderID string) (escrow.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err == ErrNotFound {
		return escrow.Order{}, apperr.New(apperr.NotFound, "order not found")
	}
	if err != nil {
		return escrow.Order{}, err
	}
	return escrow.Order{
		ID:          o.ID,
		EmployerID:  o.EmployerID,
		DeveloperID: o.DeveloperID,
		Amount:      o.Amount,
	}, nil
}

func (s *EscrowSource) Milestone(ctx context.Context, milestoneID string) (escrow.Milestone, error) {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err == ErrNotFound {
		return escrow.Milestone{}, apperr.New(apperr.NotFound, "milestone not found")
	}
	if err != nil {
		return escrow.Milestone{}, err
	}
	return escrow.Milestone{ID: m.ID, OrderID: m.OrderID, Amount: m.Amount}, nil
}

func (s *EscrowSource) UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return s.store.UnapprovedAmount(ctx, orderID)
}
