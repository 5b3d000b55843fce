package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() *Ledger {
	return NewLedger(NewMemoryStore())
}

func TestRecharge(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	tx, err := l.Recharge(ctx, "u1", dec("100"))
	require.NoError(t, err)
	require.Equal(t, TypeRecharge, tx.Type)
	require.Equal(t, TxSuccess, tx.Status)
	require.True(t, tx.BalanceBefore.IsZero())
	require.True(t, tx.BalanceAfter.Equal(dec("100")))
	require.NotEmpty(t, tx.TransactionNo)

	w, err := l.Wallet(ctx, "u1")
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(dec("100")))
}

func TestRechargeRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Recharge(ctx, "u1", dec("0"))
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	_, err = l.Recharge(ctx, "u1", dec("-5"))
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestWithdrawHeldForReview(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, err := l.Recharge(ctx, "u1", dec("100"))
	require.NoError(t, err)

	tx, err := l.Withdraw(ctx, "u1", dec("60"), "6212341234567890")
	require.NoError(t, err)
	require.Equal(t, TxProcessing, tx.Status)
	require.Contains(t, tx.Remark, "****")
	require.NotContains(t, tx.Remark, "6212341234567890")

	// balance is deducted up front
	w, _ := l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("40")))

	pending, err := l.PendingWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestWithdrawInsufficientLeavesBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, err := l.Recharge(ctx, "u1", dec("50"))
	require.NoError(t, err)

	_, err = l.Withdraw(ctx, "u1", dec("80"), "6212341234567890")
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	w, _ := l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("50")))

	// no withdraw row was written
	txs, err := l.Transactions(ctx, "u1", TypeWithdraw, 20, 0)
	require.NoError(t, err)
	require.Empty(t, txs)
}

func TestReviewWithdrawalApprove(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, _ = l.Recharge(ctx, "u1", dec("100"))
	tx, _ := l.Withdraw(ctx, "u1", dec("60"), "6212341234567890")

	out, err := l.ReviewWithdrawal(ctx, tx.ID, true)
	require.NoError(t, err)
	require.Equal(t, TxSuccess, out.Status)

	// funds stay deducted
	w, _ := l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("40")))

	// second review is rejected
	_, err = l.ReviewWithdrawal(ctx, tx.ID, true)
	require.Equal(t, apperr.InvalidState, apperr.KindOf(err))
}

func TestReviewWithdrawalRejectReturnsFunds(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, _ = l.Recharge(ctx, "u1", dec("100"))
	tx, _ := l.Withdraw(ctx, "u1", dec("60"), "6212341234567890")

	out, err := l.ReviewWithdrawal(ctx, tx.ID, false)
	require.NoError(t, err)
	require.Equal(t, TxFailed, out.Status)

	w, _ := l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("100")))
}

func TestConcurrentWithdrawSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, _ = l.Recharge(ctx, "u1", dec("100"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Withdraw(ctx, "u1", dec("80"), "6212341234567890")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))
		}
	}
	require.Equal(t, 1, succeeded)

	w, _ := l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("20")))
}

func TestTransactionsFilterByType(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, _ = l.Recharge(ctx, "u1", dec("100"))
	_, _ = l.Recharge(ctx, "u1", dec("50"))
	_, _ = l.Withdraw(ctx, "u1", dec("30"), "6212341234567890")

	recharges, err := l.Transactions(ctx, "u1", TypeRecharge, 20, 0)
	require.NoError(t, err)
	require.Len(t, recharges, 2)

	all, err := l.Transactions(ctx, "u1", "", 20, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestFreezePrimitives(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	w, _ := l.Wallet(ctx, "u1")
	after, err := l.AddBalance(ctx, w.ID, dec("100"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("100")))

	after, err = l.Freeze(ctx, w.ID, dec("60"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("40")))
	w, _ = l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("40")))
	require.True(t, w.FrozenAmount.Equal(dec("60")))

	// cannot freeze more than the balance
	_, err = l.Freeze(ctx, w.ID, dec("50"))
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	// cannot unfreeze more than is frozen
	_, err = l.Unfreeze(ctx, w.ID, dec("61"))
	require.Equal(t, apperr.InsufficientFunds, apperr.KindOf(err))

	after, err = l.Unfreeze(ctx, w.ID, dec("60"))
	require.NoError(t, err)
	require.True(t, after.Equal(dec("100")))
	w, _ = l.Wallet(ctx, "u1")
	require.True(t, w.Balance.Equal(dec("100")))
	require.True(t, w.FrozenAmount.IsZero())
}

func TestConcurrentRechargeAuditRowsExact(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()
	_, err := l.Wallet(ctx, "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Recharge(ctx, "u1", dec("10"))
		}()
	}
	wg.Wait()

	rows, err := l.Transactions(ctx, "u1", TypeRecharge, 20, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// each row reflects the balance its own update produced, so the two
	// after-values are 10 and 20 in some order, never a stale duplicate
	seen := map[string]bool{}
	for _, r := range rows {
		require.True(t, r.BalanceAfter.Equal(r.BalanceBefore.Add(dec("10"))))
		seen[r.BalanceAfter.String()] = true
	}
	require.True(t, seen[dec("10").String()])
	require.True(t, seen[dec("20").String()])
}
