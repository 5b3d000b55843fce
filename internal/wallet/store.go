package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("wallet: not found")

// Store persists wallets and their transaction history. Every balance
// mutator applies its precondition check and the update as one indivisible
// step against the current persisted value and reports false when the
// precondition does not hold, leaving the row untouched. Mutators return
// the post-update balance so audit rows record the value the update
// actually produced, not a stale snapshot.
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (*Wallet, error)
	GetByUserID(ctx context.Context, userID string) (*Wallet, error)
	GetByID(ctx context.Context, walletID string) (*Wallet, error)

	AddBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)
	DeductBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)
	Freeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)
	Unfreeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)
	ReleaseFrozenToExpense(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)
	AddIncome(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error)

	InsertTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	// SettleWithdraw flips a withdraw row from processing to the given
	// terminal status; when refund is true the held amount goes back to the
	// wallet balance in the same unit. False when the row is not a
	// processing withdraw.
	SettleWithdraw(ctx context.Context, id, to string, refund bool) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID, typ string, limit, offset int) ([]*Transaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID string) ([]*Transaction, error)
	ListProcessingWithdrawals(ctx context.Context) ([]*Transaction, error)
}
