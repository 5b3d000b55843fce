package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore backs the ledger with the shared pgx pool. All mutators are
// single conditional UPDATEs so the balance check and the write commit as
// one statement.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const walletColumns = `id, user_id, balance, frozen_amount, total_income, total_expense, status, created_at, updated_at`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.FrozenAmount, &w.TotalIncome,
		&w.TotalExpense, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, userID string) (*Wallet, error) {
	w, err := s.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	row := s.pool.QueryRow(ctx, `
        INSERT INTO wallets (id, user_id, balance, frozen_amount, total_income, total_expense, status, created_at, updated_at)
        VALUES ($1, $2, 0, 0, 0, 0, $3, $4, $4)
        ON CONFLICT (user_id) DO UPDATE SET updated_at = wallets.updated_at
        RETURNING `+walletColumns,
		uuid.NewString(), userID, StatusNormal, now)
	return scanWallet(row)
}

func (s *PostgresStore) GetByUserID(ctx context.Context, userID string) (*Wallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

func (s *PostgresStore) GetByID(ctx context.Context, walletID string) (*Wallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// conditional runs one guarded UPDATE and scans the balance the update
// produced; no row back means the precondition failed.
func (s *PostgresStore) conditional(ctx context.Context, sql string, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, sql, amt, walletID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("wallet update: %w", err)
	}
	return balance, true, nil
}

func (s *PostgresStore) AddBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET balance = balance + $1, updated_at = NOW()
        WHERE id = $2
        RETURNING balance`, walletID, amt)
}

func (s *PostgresStore) DeductBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET balance = balance - $1, updated_at = NOW()
        WHERE id = $2 AND balance >= $1
        RETURNING balance`, walletID, amt)
}

func (s *PostgresStore) Freeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET balance = balance - $1, frozen_amount = frozen_amount + $1, updated_at = NOW()
        WHERE id = $2 AND balance >= $1
        RETURNING balance`, walletID, amt)
}

func (s *PostgresStore) Unfreeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET frozen_amount = frozen_amount - $1, balance = balance + $1, updated_at = NOW()
        WHERE id = $2 AND frozen_amount >= $1
        RETURNING balance`, walletID, amt)
}

func (s *PostgresStore) ReleaseFrozenToExpense(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET frozen_amount = frozen_amount - $1, total_expense = total_expense + $1, updated_at = NOW()
        WHERE id = $2 AND frozen_amount >= $1
        RETURNING balance`, walletID, amt)
}

func (s *PostgresStore) AddIncome(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.conditional(ctx, `
        UPDATE wallets SET balance = balance + $1, total_income = total_income + $1, updated_at = NOW()
        WHERE id = $2
        RETURNING balance`, walletID, amt)
}

const txColumns = `id, transaction_no, wallet_id, user_id, type, amount, balance_before, balance_after,
    COALESCE(order_id::text, ''), COALESCE(milestone_id::text, ''), status, COALESCE(remark, ''), created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.TransactionNo, &t.WalletID, &t.UserID, &t.Type, &t.Amount,
		&t.BalanceBefore, &t.BalanceAfter, &t.OrderID, &t.MilestoneID, &t.Status, &t.Remark,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t *Transaction) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO transactions (id, transaction_no, wallet_id, user_id, type, amount,
            balance_before, balance_after, order_id, milestone_id, status, remark, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, NULLIF($10, '')::uuid, $11, $12, $13, $14)`,
		t.ID, t.TransactionNo, t.WalletID, t.UserID, t.Type, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.OrderID, t.MilestoneID, t.Status, t.Remark,
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// SettleWithdraw commits the status flip and the optional refund in one
// transaction so a crash between the two cannot strand the held amount.
func (s *PostgresStore) SettleWithdraw(ctx context.Context, id, to string, refund bool) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var walletID string
	var amount decimal.Decimal
	err = tx.QueryRow(ctx, `
        UPDATE transactions SET status = $1, updated_at = NOW()
        WHERE id = $2 AND type = $3 AND status = $4
        RETURNING wallet_id, amount`,
		to, id, TypeWithdraw, TxProcessing).Scan(&walletID, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if refund {
		if _, err := tx.Exec(ctx, `
            UPDATE wallets SET balance = balance + $1, updated_at = NOW()
            WHERE id = $2`, amount, walletID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (s *PostgresStore) ListTransactionsByUser(ctx context.Context, userID, typ string, limit, offset int) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+txColumns+` FROM transactions
        WHERE user_id = $1 AND ($2 = '' OR type = $2)
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`, userID, typ, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *PostgresStore) ListTransactionsByOrder(ctx context.Context, orderID string) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+txColumns+` FROM transactions
        WHERE order_id = $1
        ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (s *PostgresStore) ListProcessingWithdrawals(ctx context.Context) ([]*Transaction, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+txColumns+` FROM transactions
        WHERE type = $1 AND status = $2
        ORDER BY created_at ASC`, TypeWithdraw, TxProcessing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*Transaction, error) {
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
