package marketplace

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("marketplace: not found")

// ErrDuplicate is returned when a uniqueness rule is violated (one live bid
// per project and developer, one order per project).
var ErrDuplicate = errors.New("marketplace: duplicate")

// Store persists projects, bids, orders and milestones. Status mutators are
// conditional on the current status and report false when the row was not
// in the expected state, so a raced transition loses cleanly instead of
// applying twice.
type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	SetProjectStatus(ctx context.Context, id, from, to string) (bool, error)

	CreateBid(ctx context.Context, b *Bid) error
	GetBid(ctx context.Context, id string) (*Bid, error)
	UpdateBidProposal(ctx context.Context, id string, price decimal.Decimal, days int, proposal string) (bool, error)
	SetBidStatus(ctx context.Context, id, from, to string) (bool, error)
	ListBidsByProject(ctx context.Context, projectID string) ([]*Bid, error)
	// AcceptBidCascade accepts the bid, rejects every other pending bid on
	// the project and moves the project to in_progress, all in one unit.
	// False when the bid is no longer pending or the project not open.
	AcceptBidCascade(ctx context.Context, bidID, projectID string) (bool, error)

	// CreateOrderWithMilestone writes the order and its first milestone
	// atomically; ErrDuplicate when the project already has an order.
	CreateOrderWithMilestone(ctx context.Context, o *Order, m *Milestone) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (*Order, error)
	GetOrderByProject(ctx context.Context, projectID string) (*Order, error)
	ListOrdersByUser(ctx context.Context, userID, role, status string) ([]*Order, error)
	// SetOrderStatus moves the order to the target status when its current
	// status is one of from. Entering in_progress stamps started_at on
	// first entry; entering completed stamps completed_at.
	SetOrderStatus(ctx context.Context, id string, from []string, to string) (bool, error)

	// AddMilestone appends the milestone and bumps the order's milestone
	// count in one unit.
	AddMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, id string) (*Milestone, error)
	ListMilestones(ctx context.Context, orderID string) ([]*Milestone, error)
	SetMilestoneStatus(ctx context.Context, id string, from []string, to string) (bool, error)
	// SetMilestoneSubmitted moves in_progress|rejected -> submitted and
	// stores the submit note.
	SetMilestoneSubmitted(ctx context.Context, id, note string) (bool, error)
	// SetMilestoneReviewed moves submitted -> approved|rejected, stores the
	// review note and stamps completed_at on approval. This is the
	// exactly-once gate for fund release.
	SetMilestoneReviewed(ctx context.Context, id string, approved bool, note string) (bool, error)
	// RevertMilestoneApproval undoes an approval whose payout never went
	// through: approved -> submitted, completed_at cleared, so the
	// milestone can be reviewed again.
	RevertMilestoneApproval(ctx context.Context, id string) (bool, error)
	NextPendingMilestone(ctx context.Context, orderID string) (*Milestone, error)
	CountApprovedMilestones(ctx context.Context, orderID string) (int, error)
	HasActiveMilestone(ctx context.Context, orderID string) (bool, error)
	// UnapprovedAmount sums the amounts of every milestone not approved,
	// i.e. the portion of the escrow still owed back on cancellation.
	UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error)
}
