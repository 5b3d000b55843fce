package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// Ledger owns a wallet's counters and its append-only transaction history.
// Callers pass the acting user explicitly; nothing here reads ambient
// request state.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Wallet(ctx context.Context, userID string) (*Wallet, error) {
	w, err := l.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Recharge credits the balance immediately; gateway settlement is out of
// scope, so the row is written as already successful.
func (l *Ledger) Recharge(ctx context.Context, userID string, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.InvalidState, "recharge amount must be positive")
	}
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	after, ok, err := l.store.AddBalance(ctx, w.ID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "recharge failed, please retry")
	}

	t := &Transaction{
		WalletID:      w.ID,
		UserID:        userID,
		Type:          TypeRecharge,
		Amount:        amount,
		BalanceBefore: after.Sub(amount),
		BalanceAfter:  after,
		Status:        TxSuccess,
		Remark:        "account recharge",
	}
	if err := l.Record(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("user %s recharged %s", userID, amount)
	return t, nil
}

// Withdraw deducts the balance up front and leaves the row in processing
// until an admin reviews it.
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, account string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.InvalidState, "withdraw amount must be positive")
	}
	w, err := l.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w.Balance.LessThan(amount) {
		return nil, apperr.New(apperr.InsufficientFunds, "insufficient balance")
	}

	after, ok, err := l.store.DeductBalance(ctx, w.ID, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.InsufficientFunds, "insufficient balance")
	}

	t := &Transaction{
		WalletID:      w.ID,
		UserID:        userID,
		Type:          TypeWithdraw,
		Amount:        amount,
		BalanceBefore: after.Add(amount),
		BalanceAfter:  after,
		Status:        TxProcessing,
		Remark:        "withdraw to " + maskAccount(account),
	}
	if err := l.Record(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("user %s requested withdrawal of %s", userID, amount)
	return t, nil
}

// ReviewWithdrawal settles a processing withdrawal. Approval marks it
// success; rejection marks it failed and returns the held amount to the
// balance in the same store write.
func (l *Ledger) ReviewWithdrawal(ctx context.Context, txID string, approve bool) (*Transaction, error) {
	t, err := l.store.GetTransaction(ctx, txID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "withdrawal not found")
	}
	if err != nil {
		return nil, err
	}
	if t.Type != TypeWithdraw || t.Status != TxProcessing {
		return nil, apperr.New(apperr.InvalidState, "withdrawal is not pending review")
	}

	to := TxSuccess
	if !approve {
		to = TxFailed
	}
	ok, err := l.store.SettleWithdraw(ctx, txID, to, !approve)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.Conflict, "withdrawal was already reviewed")
	}

	t.Status = to
	log.Printf("withdrawal %s reviewed: %s", t.TransactionNo, to)
	return t, nil
}

// Funds-moving primitives used by the escrow coordinator. Each is a single
// conditional write; a failed precondition leaves the wallet untouched.
// The returned decimal is the balance after the write.

func (l *Ledger) AddBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.AddBalance(ctx, walletID, amt)
	return after, translate(ok, err, apperr.NotFound, "wallet not found")
}

func (l *Ledger) DeductBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.DeductBalance(ctx, walletID, amt)
	return after, translate(ok, err, apperr.InsufficientFunds, "insufficient balance")
}

func (l *Ledger) Freeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.Freeze(ctx, walletID, amt)
	return after, translate(ok, err, apperr.InsufficientFunds, "insufficient balance, please recharge first")
}

func (l *Ledger) Unfreeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.Unfreeze(ctx, walletID, amt)
	return after, translate(ok, err, apperr.InsufficientFunds, "escrowed amount is short")
}

func (l *Ledger) ReleaseFrozenToExpense(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.ReleaseFrozenToExpense(ctx, walletID, amt)
	return after, translate(ok, err, apperr.InsufficientFunds, "escrowed amount is short")
}

func (l *Ledger) AddIncome(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, error) {
	after, ok, err := l.store.AddIncome(ctx, walletID, amt)
	return after, translate(ok, err, apperr.NotFound, "wallet not found")
}

func translate(ok bool, err error, kind apperr.Kind, reason string) error {
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(kind, "%s", reason)
	}
	return nil
}

// Record assigns identifiers and timestamps to a ledger entry and appends
// it to the history.
func (l *Ledger) Record(ctx context.Context, t *Transaction) error {
	t.ID = uuid.NewString()
	t.TransactionNo = GenerateTransactionNo()
	t.Touch(time.Now())
	if err := l.store.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

func (l *Ledger) Transactions(ctx context.Context, userID, typ string, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.store.ListTransactionsByUser(ctx, userID, typ, limit, offset)
}

func (l *Ledger) OrderTransactions(ctx context.Context, orderID string) ([]*Transaction, error) {
	return l.store.ListTransactionsByOrder(ctx, orderID)
}

func (l *Ledger) PendingWithdrawals(ctx context.Context) ([]*Transaction, error) {
	return l.store.ListProcessingWithdrawals(ctx)
}

func maskAccount(account string) string {
	if len(account) < 4 {
		return "****"
	}
	return account[:2] + "****" + account[len(account)-4:]
}
