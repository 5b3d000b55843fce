package marketplace

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// CreateBid submits a developer's offer on an open project. A developer
// holds at most one non-withdrawn bid per project.
func (s *Service) CreateBid(ctx context.Context, actor, projectID string, price decimal.Decimal, days int, proposal string) (*Bid, error) {
	if !price.IsPositive() || days <= 0 {
		return nil, apperr.New(apperr.InvalidState, "price and duration must be positive")
	}

	p, err := s.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.UserID == actor {
		return nil, apperr.New(apperr.Forbidden, "cannot bid on your own project")
	}
	if p.Status != ProjectOpen {
		return nil, apperr.New(apperr.InvalidState, "project is not open for bids")
	}

	b := &Bid{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		DeveloperID:   actor,
		ProposedPrice: price,
		ProposedDays:  days,
		Proposal:      proposal,
		Status:        BidPending,
	}
	b.Touch(time.Now())
	if err := s.store.CreateBid(ctx, b); err != nil {
		if err == ErrDuplicate {
			return nil, apperr.New(apperr.Conflict, "you already have a bid on this project")
		}
		return nil, err
	}
	return b, nil
}

// UpdateBid revises a pending bid's offer.
func (s *Service) UpdateBid(ctx context.Context, actor, bidID string, price decimal.Decimal, days int, proposal string) (*Bid, error) {
	b, err := s.bid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.DeveloperID != actor {
		return nil, apperr.New(apperr.Forbidden, "not your bid")
	}
	if b.Status != BidPending {
		return nil, apperr.New(apperr.InvalidState, "only pending bids can be updated")
	}
	if !price.IsPositive() || days <= 0 {
		return nil, apperr.New(apperr.InvalidState, "price and duration must be positive")
	}

	ok, err := s.store.UpdateBidProposal(ctx, bidID, price, days, proposal)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "bid was decided concurrently")
	}
	return s.bid(ctx, bidID)
}

// WithdrawBid takes a pending bid out of the running.
func (s *Service) WithdrawBid(ctx context.Context, actor, bidID string) error {
	b, err := s.bid(ctx, bidID)
	if err != nil {
		return err
	}
	if b.DeveloperID != actor {
		return apperr.New(apperr.Forbidden, "not your bid")
	}
	if b.Status != BidPending {
		return apperr.New(apperr.InvalidState, "only pending bids can be withdrawn")
	}

	ok, err := s.store.SetBidStatus(ctx, bidID, BidPending, BidWithdrawn)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Conflict, "bid was decided concurrently")
	}
	return nil
}

// AcceptBid accepts one bid, rejects every other pending bid on the project
// and moves the project to in_progress. Creating the order is a separate
// explicit call (CreateOrderFromBid) so a failed order creation can be
// retried without re-running the acceptance.
func (s *Service) AcceptBid(ctx context.Context, actor, bidID string) (*Bid, error) {
	b, err := s.bid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	p, err := s.Project(ctx, b.ProjectID)
	if err != nil {
		return nil, err
	}

	if p.UserID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the project owner can accept bids")
	}
	if p.Status != ProjectOpen {
		return nil, apperr.New(apperr.InvalidState, "project is not open")
	}
	if b.Status != BidPending {
		return nil, apperr.New(apperr.InvalidState, "bid is not pending")
	}

	ok, err := s.store.AcceptBidCascade(ctx, bidID, b.ProjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "bid was decided concurrently")
	}

	log.Printf("bid %s accepted on project %s", bidID, b.ProjectID)
	return s.bid(ctx, bidID)
}

// RejectBid turns down a pending bid.
func (s *Service) RejectBid(ctx context.Context, actor, bidID string) error {
	b, err := s.bid(ctx, bidID)
	if err != nil {
		return err
	}
	p, err := s.Project(ctx, b.ProjectID)
	if err != nil {
		return err
	}
	if p.UserID != actor {
		return apperr.New(apperr.Forbidden, "only the project owner can reject bids")
	}
	if b.Status != BidPending {
		return apperr.New(apperr.InvalidState, "bid is not pending")
	}

	ok, err := s.store.SetBidStatus(ctx, bidID, BidPending, BidRejected)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.Conflict, "bid was decided concurrently")
	}
	return nil
}

func (s *Service) ProjectBids(ctx context.Context, projectID string) ([]*Bid, error) {
	return s.store.ListBidsByProject(ctx, projectID)
}

func (s *Service) bid(ctx context.Context, id string) (*Bid, error) {
	b, err := s.store.GetBid(ctx, id)
	if err == ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "bid not found")
	}
	return b, err
}
