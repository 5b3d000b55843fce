package escrow

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
	"github.com/sudo-init-do/gigbridge/internal/wallet"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubSource serves fixed orders and milestones to the coordinator.
type stubSource struct {
	orders     map[string]Order
	milestones map[string]Milestone
	unapproved map[string]decimal.Decimal
}

func (s *stubSource) Order(ctx context.Context, orderID string) (Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, apperr.New(apperr.NotFound, "order not found")
	}
	return o, nil
}

func (s *stubSource) Milestone(ctx context.Context, milestoneID string) (Milestone, error) {
	m, ok := s.milestones[milestoneID]
	if !ok {
		return Milestone{}, apperr.New(apperr.NotFound, "milestone not found")
	}
	return m, nil
}

func (s *stubSource) UnapprovedAmount(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return s.unapproved[orderID], nil
}

func newTestCoordinator() (*Coordinator, *wallet.Ledger, *stubSource) {
	ledger := wallet.NewLedger(wallet.NewMemoryStore())
	src := &stubSource{
		orders:     make(map[string]Order),
		milestones: make(map[string]Milestone),
		unapproved: make(map[string]decimal.Decimal),
	}
	return NewCoordinator(ledger, src), ledger, src
}

func TestEscrowPayment(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("500")}
	_, err := ledger.Recharge(ctx, "emp", dec("1000"))
	require.NoError(t, err)

	tx, err := c.EscrowPayment(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, wallet.TypePayment, tx.Type)
	require.Equal(t, "o1", tx.OrderID)

	w, _ := ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.Equal(dec("500")))
	require.True(t, w.FrozenAmount.Equal(dec("500")))
}

func TestEscrowPaymentInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("500")}
	_, _ = ledger.Recharge(ctx, "emp", dec("100"))

	_, err := c.EscrowPayment(ctx, "o1")
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	// wallet untouched
	w, _ := ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.Equal(dec("100")))
	require.True(t, w.FrozenAmount.IsZero())

	// no payment row
	txs, _ := ledger.OrderTransactions(ctx, "o1")
	require.Empty(t, txs)
}

func TestReleaseMilestonePayment(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("500")}
	src.milestones["m1"] = Milestone{ID: "m1", OrderID: "o1", Amount: dec("500")}
	_, _ = ledger.Recharge(ctx, "emp", dec("1000"))
	_, err := c.EscrowPayment(ctx, "o1")
	require.NoError(t, err)

	income, err := c.ReleaseMilestonePayment(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, wallet.TypeIncome, income.Type)
	require.True(t, income.Amount.Equal(dec("475")))

	emp, _ := ledger.Wallet(ctx, "emp")
	require.True(t, emp.Balance.Equal(dec("500")))
	require.True(t, emp.FrozenAmount.IsZero())

	dev, _ := ledger.Wallet(ctx, "dev")
	require.True(t, dev.Balance.Equal(dec("475")))

	// the fee row carries no balance movement
	txs, _ := ledger.OrderTransactions(ctx, "o1")
	var feeRow *wallet.Transaction
	for _, tx := range txs {
		if tx.Type == wallet.TypeServiceFee {
			feeRow = tx
		}
	}
	require.NotNil(t, feeRow)
	require.True(t, feeRow.Amount.Equal(dec("25")))
	require.True(t, feeRow.BalanceBefore.Equal(feeRow.BalanceAfter))
}

func TestReleaseConservesFunds(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("333.33")}
	src.milestones["m1"] = Milestone{ID: "m1", OrderID: "o1", Amount: dec("333.33")}
	_, _ = ledger.Recharge(ctx, "emp", dec("333.33"))
	_, err := c.EscrowPayment(ctx, "o1")
	require.NoError(t, err)
	_, err = c.ReleaseMilestonePayment(ctx, "m1")
	require.NoError(t, err)

	emp, _ := ledger.Wallet(ctx, "emp")
	dev, _ := ledger.Wallet(ctx, "dev")

	// what the employer paid equals developer net plus the platform fee
	paid := dec("333.33")
	fee := paid.Mul(dec("0.05")).Round(2)
	require.True(t, dev.Balance.Equal(paid.Sub(fee)))
	require.True(t, emp.Balance.IsZero())
	require.True(t, emp.FrozenAmount.IsZero())
}

func TestRefundEscrow(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("500")}
	src.unapproved["o1"] = dec("500")
	_, _ = ledger.Recharge(ctx, "emp", dec("500"))
	_, err := c.EscrowPayment(ctx, "o1")
	require.NoError(t, err)

	tx, err := c.RefundEscrow(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, wallet.TypeRefund, tx.Type)
	require.True(t, tx.Amount.Equal(dec("500")))

	w, _ := ledger.Wallet(ctx, "emp")
	require.True(t, w.Balance.Equal(dec("500")))
	require.True(t, w.FrozenAmount.IsZero())
}

func TestRefundEscrowNothingOwed(t *testing.T) {
	ctx := context.Background()
	c, ledger, src := newTestCoordinator()

	src.orders["o1"] = Order{ID: "o1", EmployerID: "emp", DeveloperID: "dev", Amount: dec("500")}
	src.unapproved["o1"] = decimal.Zero
	_, _ = ledger.Recharge(ctx, "emp", dec("500"))

	tx, err := c.RefundEscrow(ctx, "o1")
	require.NoError(t, err)
	require.Nil(t, tx)
}
