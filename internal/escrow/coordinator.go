package escrow

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
	"github.com/sudo-init-do/gigbridge/internal/money"
	"github.com/sudo-init-do/gigbridge/internal/wallet"
)

// Order is the coordinator's view of an order: just the parties and the
// escrowed amount.
type Order struct {
	ID          string
	EmployerID  string
	DeveloperID string
	Amount      decimal.Decimal
}

// Milestone is the coordinator's view of a milestone.
type Milestone struct {
	ID      string
	OrderID string
	Amount  decimal.Decimal
}

// OrderSource supplies the order data the coordinator needs without pulling
// in the whole marketplace package.
type OrderSource interface {
	Order(ctx context.Context, orderID string) (Order, error)
	Milestone(ctx context.Context, milestoneID string) (Milestone, error)
	// UnapprovedAmount is the total still owed back to the employer if the
	// order is cancelled now.
	UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// Coordinator drives the wallet ledger from order and milestone
// transitions. It holds no state of its own; every operation reads the
// order side, moves funds through ledger primitives and records the audit
// rows.
type Coordinator struct {
	ledger *wallet.Ledger
	src    OrderSource
}

func NewCoordinator(ledger *wallet.Ledger, src OrderSource) *Coordinator {
	return &Coordinator{ledger: ledger, src: src}
}

// EscrowPayment freezes the order amount in the employer's wallet and
// records the payment. The caller retries after recharging when the balance
// is short; nothing is retried here.
func (c *Coordinator) EscrowPayment(ctx context.Context, orderID string) (*wallet.Transaction, error) {
	o, err := c.src.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	w, err := c.ledger.Wallet(ctx, o.EmployerID)
	if err != nil {
		return nil, err
	}

	after, err := c.ledger.Freeze(ctx, w.ID, o.Amount)
	if err != nil {
		return nil, err
	}

	t := &wallet.Transaction{
		WalletID:      w.ID,
		UserID:        o.EmployerID,
		Type:          wallet.TypePayment,
		Amount:        o.Amount,
		BalanceBefore: after.Add(o.Amount),
		BalanceAfter:  after,
		OrderID:       orderID,
		Status:        wallet.TxSuccess,
		Remark:        "escrow payment for order",
	}
	if err := c.ledger.Record(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("order %s: escrowed %s", orderID, o.Amount)
	return t, nil
}

// ReleaseMilestonePayment settles one approved milestone: the employer's
// frozen amount becomes expense, the developer receives amount minus the
// platform fee. The fee is recorded against the developer's wallet for
// bookkeeping only; it never lands in any wallet balance.
func (c *Coordinator) ReleaseMilestonePayment(ctx context.Context, milestoneID string) (*wallet.Transaction, error) {
	m, err := c.src.Milestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	o, err := c.src.Order(ctx, m.OrderID)
	if err != nil {
		return nil, err
	}

	employer, err := c.ledger.Wallet(ctx, o.EmployerID)
	if err != nil {
		return nil, err
	}
	developer, err := c.ledger.Wallet(ctx, o.DeveloperID)
	if err != nil {
		return nil, err
	}

	fee, net := money.Split(m.Amount)

	if _, err := c.ledger.ReleaseFrozenToExpense(ctx, employer.ID, m.Amount); err != nil {
		return nil, err
	}
	devAfter, err := c.ledger.AddIncome(ctx, developer.ID, net)
	if err != nil {
		return nil, err
	}

	income := &wallet.Transaction{
		WalletID:      developer.ID,
		UserID:        o.DeveloperID,
		Type:          wallet.TypeIncome,
		Amount:        net,
		BalanceBefore: devAfter.Sub(net),
		BalanceAfter:  devAfter,
		OrderID:       o.ID,
		MilestoneID:   milestoneID,
		Status:        wallet.TxSuccess,
		Remark:        fmt.Sprintf("milestone payout (%s%% service fee deducted)", money.ServiceFeeRate.Mul(decimal.NewFromInt(100))),
	}
	if err := c.ledger.Record(ctx, income); err != nil {
		return nil, err
	}

	if fee.IsPositive() {
		feeRow := &wallet.Transaction{
			WalletID:      developer.ID,
			UserID:        o.DeveloperID,
			Type:          wallet.TypeServiceFee,
			Amount:        fee,
			BalanceBefore: devAfter,
			BalanceAfter:  devAfter,
			OrderID:       o.ID,
			MilestoneID:   milestoneID,
			Status:        wallet.TxSuccess,
			Remark:        "platform service fee",
		}
		if err := c.ledger.Record(ctx, feeRow); err != nil {
			return nil, err
		}
	}

	log.Printf("milestone %s: released %s to developer %s", milestoneID, net, o.DeveloperID)
	return income, nil
}

// RefundEscrow returns the unapproved portion of the escrow to the
// employer's balance. Returns nil when there is nothing to refund.
func (c *Coordinator) RefundEscrow(ctx context.Context, orderID string) (*wallet.Transaction, error) {
	o, err := c.src.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	refund, err := c.src.UnapprovedAmount(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !refund.IsPositive() {
		log.Printf("order %s: nothing to refund", orderID)
		return nil, nil
	}

	w, err := c.ledger.Wallet(ctx, o.EmployerID)
	if err != nil {
		return nil, err
	}

	after, err := c.ledger.Unfreeze(ctx, w.ID, refund)
	if err != nil {
		if apperr.KindOf(err) == apperr.InsufficientFunds {
			return nil, apperr.New(apperr.Conflict, "refund failed, escrowed amount is short")
		}
		return nil, err
	}

	t := &wallet.Transaction{
		WalletID:      w.ID,
		UserID:        o.EmployerID,
		Type:          wallet.TypeRefund,
		Amount:        refund,
		BalanceBefore: after.Sub(refund),
		BalanceAfter:  after,
		OrderID:       orderID,
		Status:        wallet.TxSuccess,
		Remark:        "order cancelled, escrow refund",
	}
	if err := c.ledger.Record(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("order %s: refunded %s", orderID, refund)
	return t, nil
}
