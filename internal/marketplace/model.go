package marketplace

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/utils"
)

// Project statuses
const (
	ProjectOpen       = "open"
	ProjectInProgress = "in_progress"
	ProjectCompleted  = "completed"
)

// Bid statuses
const (
	BidPending   = "pending"
	BidAccepted  = "accepted"
	BidRejected  = "rejected"
	BidWithdrawn = "withdrawn"
)

// Order statuses
const (
	OrderPendingPayment = "pending_payment"
	OrderInProgress     = "in_progress"
	OrderDelivered      = "delivered"
	OrderCompleted      = "completed"
	OrderCancelled      = "cancelled"
	OrderDisputed       = "disputed"
)

// Milestone statuses
const (
	MilestonePending    = "pending"
	MilestoneInProgress = "in_progress"
	MilestoneSubmitted  = "submitted"
	MilestoneApproved   = "approved"
	MilestoneRejected   = "rejected"
)

// orderTransitions is the single source of truth for legal order status
// changes. "disputed" is declared but has no inbound edge; it is reserved.
var orderTransitions = map[string][]string{
	OrderPendingPayment: {OrderInProgress, OrderCancelled},
	OrderInProgress:     {OrderDelivered, OrderCancelled, OrderCompleted},
	OrderDelivered:      {OrderInProgress, OrderCompleted},
}

// milestoneTransitions mirrors orderTransitions for milestones. "rejected"
// loops back to "submitted" so a developer can resubmit; "approved" is
// terminal.
var milestoneTransitions = map[string][]string{
	MilestonePending:    {MilestoneInProgress},
	MilestoneInProgress: {MilestoneSubmitted},
	MilestoneSubmitted:  {MilestoneApproved, MilestoneRejected},
	MilestoneRejected:   {MilestoneSubmitted},
}

func canTransition(table map[string][]string, from, to string) bool {
	for _, t := range table[from] {
		if t == to {
			return true
		}
	}
	return false
}

// OrderCanTransition reports whether an order may move from one status to
// another.
func OrderCanTransition(from, to string) bool {
	return canTransition(orderTransitions, from, to)
}

// MilestoneCanTransition reports whether a milestone may move from one
// status to another.
func MilestoneCanTransition(from, to string) bool {
	return canTransition(milestoneTransitions, from, to)
}

// Project is the registry entry bids are validated against: who owns it and
// whether it is still open.
type Project struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Budget      decimal.Decimal `json:"budget"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Status      string          `json:"status"`
	utils.AuditInfo
}

type Bid struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	DeveloperID   string          `json:"developer_id"`
	ProposedPrice decimal.Decimal `json:"proposed_price"`
	ProposedDays  int             `json:"proposed_days"`
	Proposal      string          `json:"proposal,omitempty"`
	Status        string          `json:"status"`
	utils.AuditInfo
}

type Order struct {
	ID             string          `json:"id"`
	OrderNo        string          `json:"order_no"`
	ProjectID      string          `json:"project_id"`
	BidID          string          `json:"bid_id"`
	EmployerID     string          `json:"employer_id"`
	DeveloperID    string          `json:"developer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	MilestoneCount int             `json:"milestone_count"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	utils.AuditInfo
}

type Milestone struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Sequence    int             `json:"sequence"`
	Status      string          `json:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	SubmitNote  string          `json:"submit_note,omitempty"`
	ReviewNote  string          `json:"review_note,omitempty"`
	utils.AuditInfo
}

// GenerateOrderNo builds the externally visible order reference. Stable
// once assigned.
func GenerateOrderNo() string {
	return "ORD" + strconv.FormatInt(time.Now().UnixMilli(), 10) + strings.ToUpper(uuid.NewString()[:4])
}
