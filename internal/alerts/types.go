package alerts

import "time"

// Task type constants
const (
	TaskBidAccepted        = "notify:bid_accepted"
	TaskPaymentConfirmed   = "notify:payment_confirmed"
	TaskOrderCancelled     = "notify:order_cancelled"
	TaskMilestoneSubmitted = "notify:milestone_submitted"
	TaskMilestoneReviewed  = "notify:milestone_reviewed"
	TaskWithdrawalReviewed = "notify:withdrawal_reviewed"
)

// Bid accepted payload (sent to the winning developer)
type BidAcceptedPayload struct {
	BidID       string    `json:"bid_id"`
	ProjectID   string    `json:"project_id"`
	DeveloperID string    `json:"developer_id"`
	SentAt      time.Time `json:"sent_at"`
}

// Payment confirmed payload (sent to the developer, work can start)
type PaymentConfirmedPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNo     string    `json:"order_no"`
	DeveloperID string    `json:"developer_id"`
	SentAt      time.Time `json:"sent_at"`
}

// Order cancelled payload
type OrderCancelledPayload struct {
	OrderID string    `json:"order_id"`
	SentAt  time.Time `json:"sent_at"`
}

// Milestone submitted payload (sent to the employer for review)
type MilestoneSubmittedPayload struct {
	MilestoneID string    `json:"milestone_id"`
	OrderID     string    `json:"order_id"`
	SentAt      time.Time `json:"sent_at"`
}

// Milestone reviewed payload (sent to the developer with the verdict)
type MilestoneReviewedPayload struct {
	MilestoneID string    `json:"milestone_id"`
	OrderID     string    `json:"order_id"`
	Approved    bool      `json:"approved"`
	SentAt      time.Time `json:"sent_at"`
}

// Withdrawal reviewed payload (sent to the wallet owner)
type WithdrawalReviewedPayload struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Approved      bool      `json:"approved"`
	SentAt        time.Time `json:"sent_at"`
}
