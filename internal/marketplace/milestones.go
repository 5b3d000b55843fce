package marketplace

import (
	"context"
	"log"
	"strings"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// StartMilestone puts a pending milestone in progress. Milestones run
// sequentially, so it refuses while another milestone on the order is
// still active.
func (s *Service) StartMilestone(ctx context.Context, actor, milestoneID string) (*Milestone, error) {
	m, o, err := s.milestoneWithOrder(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if o.DeveloperID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the developer can start this milestone")
	}
	if !MilestoneCanTransition(m.Status, MilestoneInProgress) {
		return nil, apperr.New(apperr.InvalidState, "milestone is not pending")
	}

	active, err := s.store.HasActiveMilestone(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperr.New(apperr.InvalidState, "another milestone is still active on this order")
	}

	ok, err := s.store.SetMilestoneStatus(ctx, milestoneID, []string{MilestonePending}, MilestoneInProgress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "milestone changed state concurrently")
	}
	return s.milestone(ctx, milestoneID)
}

// SubmitMilestone hands the work over for review. Allowed from in_progress
// and from rejected (resubmission). The order shows delivered while a
// submission is pending review.
func (s *Service) SubmitMilestone(ctx context.Context, actor, milestoneID, note string) (*Milestone, error) {
	m, o, err := s.milestoneWithOrder(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if o.DeveloperID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the developer can submit this milestone")
	}
	if !MilestoneCanTransition(m.Status, MilestoneSubmitted) {
		return nil, apperr.New(apperr.InvalidState, "milestone cannot be submitted from its current state")
	}
	if strings.TrimSpace(note) == "" {
		return nil, apperr.New(apperr.InvalidState, "a submit note is required")
	}

	ok, err := s.store.SetMilestoneSubmitted(ctx, milestoneID, note)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "milestone changed state concurrently")
	}

	if _, err := s.store.SetOrderStatus(ctx, o.ID, []string{OrderInProgress}, OrderDelivered); err != nil {
		log.Printf("milestone %s: failed to mark order delivered: %v", milestoneID, err)
	}

	log.Printf("milestone submitted: %s", milestoneID)
	return s.milestone(ctx, milestoneID)
}

// ReviewMilestone is the employer's approval gate. Approval releases the
// milestone's escrowed amount exactly once: the conditional submitted ->
// approved flip is the gate, and a raced second review observes a
// conflict. If the release itself fails the flip is reverted so the
// milestone returns to awaiting review instead of sitting approved and
// unpaid. Rejection sends the milestone back for resubmission.
func (s *Service) ReviewMilestone(ctx context.Context, actor, milestoneID string, approved bool, note string) (*Milestone, error) {
	m, o, err := s.milestoneWithOrder(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	if o.EmployerID != actor {
		return nil, apperr.New(apperr.Forbidden, "only the employer can review this milestone")
	}
	if m.Status != MilestoneSubmitted {
		return nil, apperr.New(apperr.InvalidState, "milestone is not awaiting review")
	}

	ok, err := s.store.SetMilestoneReviewed(ctx, milestoneID, approved, note)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "milestone was already reviewed")
	}

	if !approved {
		if _, err := s.store.SetOrderStatus(ctx, o.ID, []string{OrderDelivered}, OrderInProgress); err != nil {
			log.Printf("milestone %s: failed to revert order status: %v", milestoneID, err)
		}
		log.Printf("milestone rejected: %s", milestoneID)
		return s.milestone(ctx, milestoneID)
	}

	if _, err := s.esc.ReleaseMilestonePayment(ctx, milestoneID); err != nil {
		if _, rerr := s.store.RevertMilestoneApproval(ctx, milestoneID); rerr != nil {
			log.Printf("milestone %s: failed to revert approval after release failure: %v", milestoneID, rerr)
		}
		return nil, err
	}

	approvedCount, err := s.store.CountApprovedMilestones(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	if approvedCount >= o.MilestoneCount {
		if _, err := s.CompleteOrder(ctx, actor, o.ID); err != nil {
			return nil, err
		}
	} else {
		if _, err := s.store.SetOrderStatus(ctx, o.ID, []string{OrderDelivered}, OrderInProgress); err != nil {
			log.Printf("milestone %s: failed to resume order: %v", milestoneID, err)
		}
		if next, err := s.store.NextPendingMilestone(ctx, o.ID); err == nil && next != nil {
			if _, err := s.store.SetMilestoneStatus(ctx, next.ID, []string{MilestonePending}, MilestoneInProgress); err != nil {
				log.Printf("milestone %s: failed to activate next milestone: %v", milestoneID, err)
			}
		}
	}

	log.Printf("milestone approved: %s", milestoneID)
	return s.milestone(ctx, milestoneID)
}

func (s *Service) milestone(ctx context.Context, id string) (*Milestone, error) {
	m, err := s.store.GetMilestone(ctx, id)
	if err == ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "milestone not found")
	}
	return m, err
}

func (s *Service) milestoneWithOrder(ctx context.Context, id string) (*Milestone, *Order, error) {
	m, err := s.milestone(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	o, err := s.order(ctx, m.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return m, o, nil
}
