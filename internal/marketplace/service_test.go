package marketplace

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
	"github.com/sudo-init-do/gigbridge/internal/escrow"
	"github.com/sudo-init-do/gigbridge/internal/wallet"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc    *Service
	ledger *wallet.Ledger
}

func newFixture() *fixture {
	store := NewMemoryStore()
	ledger := wallet.NewLedger(wallet.NewMemoryStore())
	esc := escrow.NewCoordinator(ledger, NewEscrowSource(store))
	return &fixture{
		svc:    NewService(store, esc),
		ledger: ledger,
	}
}

// openProjectWithBid is the common setup: an employer's open project with
// one pending bid from a developer.
func (f *fixture) openProjectWithBid(t *testing.T, price string) (*Project, *Bid) {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, "emp", "Build API", "REST backend", dec("2000"), nil)
	require.NoError(t, err)
	b, err := f.svc.CreateBid(ctx, "dev", p.ID, dec(price), 14, "I can do this")
	require.NoError(t, err)
	return p, b
}

// paidOrder walks through accept, order creation and payment confirmation.
func (f *fixture) paidOrder(t *testing.T, price string) *Order {
	t.Helper()
	ctx := context.Background()
	_, b := f.openProjectWithBid(t, price)
	_, err := f.svc.AcceptBid(ctx, "emp", b.ID)
	require.NoError(t, err)
	o, err := f.svc.CreateOrderFromBid(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.ledger.Recharge(ctx, "emp", dec(price))
	require.NoError(t, err)
	o, err = f.svc.ConfirmPayment(ctx, "emp", o.ID)
	require.NoError(t, err)
	return o
}

func TestCreateBidValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p, _ := f.svc.CreateProject(ctx, "emp", "Build API", "", dec("2000"), nil)

	// the owner cannot bid on their own project
	_, err := f.svc.CreateBid(ctx, "emp", p.ID, dec("500"), 7, "")
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	_, err = f.svc.CreateBid(ctx, "dev", p.ID, dec("500"), 7, "")
	require.NoError(t, err)

	// one live bid per developer per project
	_, err = f.svc.CreateBid(ctx, "dev", p.ID, dec("450"), 7, "")
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestWithdrawnBidCanBeReplaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, b := f.openProjectWithBid(t, "500")

	require.NoError(t, f.svc.WithdrawBid(ctx, "dev", b.ID))

	_, err := f.svc.CreateBid(ctx, "dev", b.ProjectID, dec("450"), 10, "second try")
	require.NoError(t, err)
}

func TestAcceptBidCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	p, b1 := f.openProjectWithBid(t, "500")
	b2, err := f.svc.CreateBid(ctx, "dev2", p.ID, dec("600"), 10, "")
	require.NoError(t, err)

	// only the owner may accept
	_, err = f.svc.AcceptBid(ctx, "dev2", b1.ID)
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	accepted, err := f.svc.AcceptBid(ctx, "emp", b1.ID)
	require.NoError(t, err)
	require.Equal(t, BidAccepted, accepted.Status)

	// sibling pending bids are rejected, project moves on
	other, _ := f.svc.bid(ctx, b2.ID)
	require.Equal(t, BidRejected, other.Status)
	proj, _ := f.svc.Project(ctx, p.ID)
	require.Equal(t, ProjectInProgress, proj.Status)

	// acceptance does not create the order
	_, err = f.svc.OrderByID(ctx, b1.ID)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// a second accept on the now-closed project fails
	_, err = f.svc.AcceptBid(ctx, "emp", b2.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestCreateOrderFromBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, b := f.openProjectWithBid(t, "500")

	// a pending bid cannot become an order
	_, err := f.svc.CreateOrderFromBid(ctx, b.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	_, err = f.svc.AcceptBid(ctx, "emp", b.ID)
	require.NoError(t, err)

	o, err := f.svc.CreateOrderFromBid(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, OrderPendingPayment, o.Status)
	require.True(t, o.Amount.Equal(dec("500")))
	require.Equal(t, 1, o.MilestoneCount)
	require.NotEmpty(t, o.OrderNo)

	// a single default milestone covers the full amount
	ms, err := f.svc.OrderMilestones(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Equal(t, "Project delivery", ms[0].Title)
	require.Equal(t, MilestonePending, ms[0].Status)
	require.True(t, ms[0].Amount.Equal(dec("500")))

	// a project only ever has one order
	_, err = f.svc.CreateOrderFromBid(ctx, b.ID)
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, b := f.openProjectWithBid(t, "500")
	_, _ = f.svc.AcceptBid(ctx, "emp", b.ID)
	o, _ := f.svc.CreateOrderFromBid(ctx, b.ID)

	// without funds the order stays payable
	_, err := f.svc.ConfirmPayment(ctx, "emp", o.ID)
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderPendingPayment, o.Status)

	_, _ = f.ledger.Recharge(ctx, "emp", dec("500"))
	o, err = f.svc.ConfirmPayment(ctx, "emp", o.ID)
	require.NoError(t, err)
	require.Equal(t, OrderInProgress, o.Status)
	require.NotNil(t, o.StartedAt)

	// funds are escrowed and the first milestone is active
	w, _ := f.ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.IsZero())
	require.True(t, w.FrozenAmount.Equal(dec("500")))
	ms, _ := f.svc.OrderMilestones(ctx, o.ID)
	require.Equal(t, MilestoneInProgress, ms[0].Status)

	// paying twice is refused
	_, err = f.svc.ConfirmPayment(ctx, "emp", o.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestSingleMilestoneApprovalCompletesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "500")

	ms, _ := f.svc.OrderMilestones(ctx, o.ID)
	m := ms[0]

	// a submit note is required
	_, err := f.svc.SubmitMilestone(ctx, "dev", m.ID, "  ")
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	m, err = f.svc.SubmitMilestone(ctx, "dev", m.ID, "done, see repo")
	require.NoError(t, err)
	require.Equal(t, MilestoneSubmitted, m.Status)
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderDelivered, o.Status)

	// only the employer reviews
	_, err = f.svc.ReviewMilestone(ctx, "dev", m.ID, true, "")
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	m, err = f.svc.ReviewMilestone(ctx, "emp", m.ID, true, "looks good")
	require.NoError(t, err)
	require.Equal(t, MilestoneApproved, m.Status)
	require.NotNil(t, m.CompletedAt)

	// order and project close, developer is paid net of the fee
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderCompleted, o.Status)
	require.NotNil(t, o.CompletedAt)
	proj, _ := f.svc.Project(ctx, o.ProjectID)
	require.Equal(t, ProjectCompleted, proj.Status)

	dev, _ := f.ledger.Wallet(ctx, "dev")
	require.True(t, dev.Balance.Equal(dec("475")))
	emp, _ := f.ledger.Wallet(ctx, "emp")
	require.True(t, emp.FrozenAmount.IsZero())

	// an approved milestone cannot be resubmitted
	_, err = f.svc.SubmitMilestone(ctx, "dev", m.ID, "again")
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestRejectThenResubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "500")
	ms, _ := f.svc.OrderMilestones(ctx, o.ID)

	_, err := f.svc.SubmitMilestone(ctx, "dev", ms[0].ID, "first attempt")
	require.NoError(t, err)

	m, err := f.svc.ReviewMilestone(ctx, "emp", ms[0].ID, false, "missing tests")
	require.NoError(t, err)
	require.Equal(t, MilestoneRejected, m.Status)
	require.Equal(t, "missing tests", m.ReviewNote)

	// work resumes, no funds moved
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderInProgress, o.Status)
	dev, _ := f.ledger.Wallet(ctx, "dev")
	require.True(t, dev.Balance.IsZero())

	// rejected milestones can be resubmitted
	m, err = f.svc.SubmitMilestone(ctx, "dev", m.ID, "tests added")
	require.NoError(t, err)
	require.Equal(t, MilestoneSubmitted, m.Status)
}

func TestConcurrentReviewReleasesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "500")
	ms, _ := f.svc.OrderMilestones(ctx, o.ID)
	_, err := f.svc.SubmitMilestone(ctx, "dev", ms[0].ID, "done")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ReviewMilestone(ctx, "emp", ms[0].ID, true, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded)

	// the payout happened exactly once
	dev, _ := f.ledger.Wallet(ctx, "dev")
	require.True(t, dev.Balance.Equal(dec("475")))
}

func TestMultiMilestoneFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "1000")

	// the employer splits the remaining work into a second milestone
	m2, err := f.svc.AddMilestone(ctx, "emp", o.ID, "Deploy", "production rollout", dec("300"), nil)
	require.NoError(t, err)
	require.Equal(t, 2, m2.Sequence)
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, 2, o.MilestoneCount)

	ms, _ := f.svc.OrderMilestones(ctx, o.ID)
	first := ms[0]

	// second milestone cannot start while the first is active
	_, err = f.svc.StartMilestone(ctx, "dev", m2.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	_, err = f.svc.SubmitMilestone(ctx, "dev", first.ID, "phase one done")
	require.NoError(t, err)
	_, err = f.svc.ReviewMilestone(ctx, "emp", first.ID, true, "")
	require.NoError(t, err)

	// order keeps running and the next milestone was activated
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderInProgress, o.Status)
	m2Now, _ := f.svc.OrderMilestones(ctx, o.ID)
	require.Equal(t, MilestoneInProgress, m2Now[1].Status)

	// the appended milestone is not backed by escrow, only the original
	// order amount was frozen at payment time
	_, err = f.svc.SubmitMilestone(ctx, "dev", m2.ID, "deployed")
	require.NoError(t, err)
	_, err = f.svc.ReviewMilestone(ctx, "emp", m2.ID, true, "")
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	// the failed release rolled the approval back, so the milestone is
	// still awaiting review instead of sitting approved and unpaid
	m2Now, _ = f.svc.OrderMilestones(ctx, o.ID)
	require.Equal(t, MilestoneSubmitted, m2Now[1].Status)
	require.Nil(t, m2Now[1].CompletedAt)

	// no developer payout happened for the uncovered milestone
	w, _ := f.ledger.Wallet(ctx, "dev")
	require.True(t, w.Balance.Equal(dec("950")))

	// the employer can still settle it by rejecting
	_, err = f.svc.ReviewMilestone(ctx, "emp", m2.ID, false, "out of budget")
	require.NoError(t, err)
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "500")

	// only the employer cancels
	err := f.svc.CancelOrder(ctx, "dev", o.ID)
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	require.NoError(t, f.svc.CancelOrder(ctx, "emp", o.ID))

	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderCancelled, o.Status)

	// the full escrow comes back and the project reopens
	w, _ := f.ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.Equal(dec("500")))
	require.True(t, w.FrozenAmount.IsZero())
	proj, _ := f.svc.Project(ctx, o.ProjectID)
	require.Equal(t, ProjectOpen, proj.Status)

	// a cancelled order stays cancelled
	err = f.svc.CancelOrder(ctx, "emp", o.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestCancelUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, b := f.openProjectWithBid(t, "500")
	_, _ = f.svc.AcceptBid(ctx, "emp", b.ID)
	o, _ := f.svc.CreateOrderFromBid(ctx, b.ID)

	require.NoError(t, f.svc.CancelOrder(ctx, "emp", o.ID))

	// nothing was escrowed, so nothing moves
	txs, _ := f.ledger.OrderTransactions(ctx, o.ID)
	require.Empty(t, txs)
}

func TestCancelWithEscrowShortfall(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "1000")

	// milestones added after payment are not covered by the escrow; once the
	// covered milestone pays out, cancelling cannot refund the extra one
	_, err := f.svc.AddMilestone(ctx, "emp", o.ID, "Deploy", "", dec("300"), nil)
	require.NoError(t, err)

	ms, _ := f.svc.OrderMilestones(ctx, o.ID)
	_, err = f.svc.SubmitMilestone(ctx, "dev", ms[0].ID, "phase one done")
	require.NoError(t, err)
	_, err = f.svc.ReviewMilestone(ctx, "emp", ms[0].ID, true, "")
	require.NoError(t, err)

	err = f.svc.CancelOrder(ctx, "emp", o.ID)
	require.Equal(t, apperr.Conflict, apperr.KindOf(err))

	// the failed refund rolled the cancellation back
	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderInProgress, o.Status)

	// the shortfall is reported, never papered over with a partial refund
	w, _ := f.ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.IsZero())
	require.True(t, w.FrozenAmount.IsZero())
}

func TestCompleteOrderOnlyByOwningEmployer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	o := f.paidOrder(t, "500")

	// a different employer cannot force-complete someone else's order
	_, err := f.svc.CompleteOrder(ctx, "other-emp", o.ID)
	require.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	// the owner still cannot complete it with work outstanding
	_, err = f.svc.CompleteOrder(ctx, "emp", o.ID)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	o, _ = f.svc.OrderByID(ctx, o.ID)
	require.Equal(t, OrderInProgress, o.Status)
}
