package alerts

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/hibiken/asynq"
)

var (
	client *asynq.Client
	server *asynq.Server
)

// Init starts the Asynq server and initializes a shared client.
func Init() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		if host := os.Getenv("REDIS_HOST"); host != "" {
			port := os.Getenv("REDIS_PORT")
			if port == "" {
				port = "6379"
			}
			redisAddr = host + ":" + port
		} else {
			// Default to docker-compose service name if running in container; otherwise localhost
			redisAddr = "redis:6379"
			if os.Getenv("RUN_LOCAL") == "true" {
				redisAddr = "127.0.0.1:6379"
			}
		}
	}

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client = asynq.NewClient(opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBidAccepted, handleBidAccepted)
	mux.HandleFunc(TaskPaymentConfirmed, handlePaymentConfirmed)
	mux.HandleFunc(TaskOrderCancelled, handleOrderCancelled)
	mux.HandleFunc(TaskMilestoneSubmitted, handleMilestoneSubmitted)
	mux.HandleFunc(TaskMilestoneReviewed, handleMilestoneReviewed)
	mux.HandleFunc(TaskWithdrawalReviewed, handleWithdrawalReviewed)

	server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"notifications": 10,
		},
	})
	go func() {
		if err := server.Run(mux); err != nil {
			log.Printf("Asynq server stopped: %v", err)
		}
	}()

	log.Printf("Asynq initialized (addr=%s)", redisAddr)
}

// Close releases client and stops server.
func Close() {
	if client != nil {
		_ = client.Close()
	}
	if server != nil {
		server.Shutdown()
	}
}

// Handlers below parse payloads and deliver via logs; email/push hooks go here.

func handleBidAccepted(_ context.Context, t *asynq.Task) error {
	var p BidAcceptedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] BidAccepted -> bid=%s project=%s developer=%s", p.BidID, p.ProjectID, p.DeveloperID)
	return nil
}

func handlePaymentConfirmed(_ context.Context, t *asynq.Task) error {
	var p PaymentConfirmedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] PaymentConfirmed -> order=%s (%s) developer=%s", p.OrderID, p.OrderNo, p.DeveloperID)
	return nil
}

func handleOrderCancelled(_ context.Context, t *asynq.Task) error {
	var p OrderCancelledPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] OrderCancelled -> order=%s", p.OrderID)
	return nil
}

func handleMilestoneSubmitted(_ context.Context, t *asynq.Task) error {
	var p MilestoneSubmittedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] MilestoneSubmitted -> milestone=%s order=%s", p.MilestoneID, p.OrderID)
	return nil
}

func handleMilestoneReviewed(_ context.Context, t *asynq.Task) error {
	var p MilestoneReviewedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] MilestoneReviewed -> milestone=%s order=%s approved=%v", p.MilestoneID, p.OrderID, p.Approved)
	return nil
}

func handleWithdrawalReviewed(_ context.Context, t *asynq.Task) error {
	var p WithdrawalReviewedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	log.Printf("[notify] WithdrawalReviewed -> txn=%s user=%s approved=%v", p.TransactionID, p.UserID, p.Approved)
	return nil
}
