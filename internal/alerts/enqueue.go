package alerts

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

func enqueue(taskType string, payload any) error {
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(taskType, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("notifications"))
	return err
}

// EnqueueBidAccepted notifies the developer that their bid won
func EnqueueBidAccepted(bidID, projectID, developerID string) error {
	return enqueue(TaskBidAccepted, BidAcceptedPayload{
		BidID: bidID, ProjectID: projectID, DeveloperID: developerID, SentAt: time.Now(),
	})
}

// EnqueuePaymentConfirmed notifies the developer that escrow is funded
func EnqueuePaymentConfirmed(orderID, orderNo, developerID string) error {
	return enqueue(TaskPaymentConfirmed, PaymentConfirmedPayload{
		OrderID: orderID, OrderNo: orderNo, DeveloperID: developerID, SentAt: time.Now(),
	})
}

// EnqueueOrderCancelled notifies both parties that the order was cancelled
func EnqueueOrderCancelled(orderID string) error {
	return enqueue(TaskOrderCancelled, OrderCancelledPayload{
		OrderID: orderID, SentAt: time.Now(),
	})
}

// EnqueueMilestoneSubmitted asks the employer to review delivered work
func EnqueueMilestoneSubmitted(milestoneID, orderID string) error {
	return enqueue(TaskMilestoneSubmitted, MilestoneSubmittedPayload{
		MilestoneID: milestoneID, OrderID: orderID, SentAt: time.Now(),
	})
}

// EnqueueMilestoneReviewed tells the developer the review verdict
func EnqueueMilestoneReviewed(milestoneID, orderID string, approved bool) error {
	return enqueue(TaskMilestoneReviewed, MilestoneReviewedPayload{
		MilestoneID: milestoneID, OrderID: orderID, Approved: approved, SentAt: time.Now(),
	})
}

// EnqueueWithdrawalReviewed tells the wallet owner the review outcome
func EnqueueWithdrawalReviewed(transactionID, userID string, approved bool) error {
	return enqueue(TaskWithdrawalReviewed, WithdrawalReviewedPayload{
		TransactionID: transactionID, UserID: userID, Approved: approved, SentAt: time.Now(),
	})
}
