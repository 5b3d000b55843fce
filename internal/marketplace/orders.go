package marketplace

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// CreateOrderFromBid turns an accepted bid into an order with one default
// milestone covering the full amount. The order and the milestone are
// written atomically; a project can only ever have one order.
func (s *Service) CreateOrderFromBid(ctx context.Context, bidID string) (*Order, error) {
	b, err := s.bid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.Status != BidAccepted {
		return nil, apperr.New(apperr.InvalidState, "only an accepted bid can create an order")
	}

	p, err := s.Project(ctx, b.ProjectID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	o := &Order{
		ID:             uuid.NewString(),
		OrderNo:        GenerateOrderNo(),
		ProjectID:      p.ID,
		BidID:          bidID,
		EmployerID:     p.UserID,
		DeveloperID:    b.DeveloperID,
		Amount:         b.ProposedPrice,
		Status:         OrderPendingPayment,
		MilestoneCount: 1,
		Deadline:       p.Deadline,
	}
	o.Touch(now)

	m := &Milestone{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		Title:       "Project delivery",
		Description: "Complete and deliver all project requirements",
		Amount:      b.ProposedPrice,
		Sequence:    1,
		Status:      MilestonePending,
		DueDate:     p.Deadline,
	}
	m.Touch(now)

	if err := s.store.CreateOrderWithMilestone(ctx, o, m); err != nil {
		if err == ErrDuplicate {
			return nil, apperr.New(apperr.Conflict, "this project already has an order")
		}
		return nil, err
	}

	log.Printf("order created: %s", o.OrderNo)
	return o, nil
}

// ConfirmPayment escrows the order amount from the employer's wallet and
// starts the work. The status flips first so a racing confirm loses before
// any funds move; the flip is reverted if the freeze fails.
func (s *Service) ConfirmPayment(ctx context.Context, actor, orderID string) (*Order, error) {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.EmployerID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the employer can confirm payment")
	}
	if !OrderCanTransition(o.Status, OrderInProgress) {
		return nil, apperr.New(apperr.InvalidState, "order is not awaiting payment")
	}

	ok, err := s.store.SetOrderStatus(ctx, orderID, []string{OrderPendingPayment}, OrderInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "payment was already confirmed")
	}

	if _, err := s.esc.EscrowPayment(ctx, orderID); err != nil {
		if _, rerr := s.store.SetOrderStatus(ctx, orderID, []string{OrderInProgress}, OrderPendingPayment); rerr != nil {
			log.Printf("order %s: failed to revert status after escrow failure: %v", orderID, rerr)
		}
		return nil, err
	}

	// activate the first milestone
	if next, err := s.store.NextPendingMilestone(ctx, orderID); err == nil && next != nil {
		if _, err := s.store.SetMilestoneStatus(ctx, next.ID, []string{MilestonePending}, MilestoneInProgress); err != nil {
			log.Printf("order %s: failed to activate milestone %s: %v", orderID, next.ID, err)
		}
	}

	log.Printf("order payment confirmed: %s", o.OrderNo)
	return s.order(ctx, orderID)
}

// CancelOrder cancels an order before completion. An order that was paid
// gets the unapproved portion of the escrow refunded; one still awaiting
// payment has nothing frozen. The project reopens either way.
func (s *Service) CancelOrder(ctx context.Context, actor, orderID string) error {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return err
	}
	if o.EmployerID != actor {
		return apperr.New(apperr.Forbidden, "only the employer can cancel this order")
	}
	if o.Status != OrderPendingPayment && o.Status != OrderInProgress {
		return apperr.New(apperr.InvalidState, "order can no longer be cancelled")
	}

	// The cancelled flip is the exactly-once gate for the refund; if the
	// refund then fails the flip is reverted so the order does not end up
	// cancelled with the escrow still frozen.
	wasPaid := o.Status == OrderInProgress
	ok, err := s.store.SetOrderStatus(ctx, orderID, []string{o.Status}, OrderCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Conflict, "order changed state concurrently")
	}

	if wasPaid {
		if _, err := s.esc.RefundEscrow(ctx, orderID); err != nil {
			if _, rerr := s.store.SetOrderStatus(ctx, orderID, []string{OrderCancelled}, OrderInProgress); rerr != nil {
				log.Printf("order %s: failed to revert status after refund failure: %v", orderID, rerr)
			}
			return err
		}
	}

	if _, err := s.store.SetProjectStatus(ctx, o.ProjectID, ProjectInProgress, ProjectOpen); err != nil {
		log.Printf("order %s: failed to reopen project: %v", orderID, err)
	}

	log.Printf("order cancelled: %s", o.OrderNo)
	return nil
}

// AddMilestone appends a milestone to a running order.
func (s *Service) AddMilestone(ctx context.Context, actor, orderID, title, description string, amount decimal.Decimal, dueDate *time.Time) (*Milestone, error) {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.EmployerID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the employer can add milestones")
	}
	if o.Status != OrderInProgress {
		return nil, apperr.New(apperr.InvalidState, "milestones can only be added while the order is in progress")
	}
	if title == "" || !amount.IsPositive() {
		return nil, apperr.New(apperr.InvalidState, "milestone needs a title and a positive amount")
	}

	existing, err := s.store.ListMilestones(ctx, orderID)
	if err != nil {
		return nil, err
	}
	maxSeq := 0
	for _, m := range existing {
		if m.Sequence > maxSeq {
			maxSeq = m.Sequence
		}
	}

	m := &Milestone{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		Title:       title,
		Description: description,
		Amount:      amount,
		Sequence:    maxSeq + 1,
		Status:      MilestonePending,
		DueDate:     dueDate,
	}
	m.Touch(time.Now())
	if err := s.store.AddMilestone(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CompleteOrder closes an order once every milestone is approved. Normally
// triggered by the last approval; the direct route requires the order's
// own employer.
func (s *Service) CompleteOrder(ctx context.Context, actor, orderID string) (*Order, error) {
	o, err := s.order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.EmployerID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the employer can complete this order")
	}

	approved, err := s.store.CountApprovedMilestones(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if approved < o.MilestoneCount {
		return nil, apperr.New(apperr.InvalidState, "not all milestones are approved")
	}

	ok, err := s.store.SetOrderStatus(ctx, orderID, []string{OrderInProgress, OrderDelivered}, OrderCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "order changed state concurrently")
	}

	if _, err := s.store.SetProjectStatus(ctx, o.ProjectID, ProjectInProgress, ProjectCompleted); err != nil {
		log.Printf("order %s: failed to close project: %v", orderID, err)
	}

	log.Printf("order completed: %s", o.OrderNo)
	return s.order(ctx, orderID)
}

func (s *Service) OrderByID(ctx context.Context, id string) (*Order, error) {
	return s.order(ctx, id)
}

func (s *Service) OrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	o, err := s.store.GetOrderByNo(ctx, orderNo)
	if err == ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	return o, err
}

func (s *Service) MyOrders(ctx context.Context, actor, role, status string) ([]*Order, error) {
	return s.store.ListOrdersByUser(ctx, actor, role, status)
}

func (s *Service) OrderMilestones(ctx context.Context, orderID string) ([]*Milestone, error) {
	if _, err := s.order(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListMilestones(ctx, orderID)
}

func (s *Service) order(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err == ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	return o, err
}
