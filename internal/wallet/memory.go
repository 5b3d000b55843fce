package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is the in-process Store used by tests. A single mutex
// serializes every check-and-update, which gives the same lost-update
// guarantee the conditional SQL statements give the Postgres store.
type MemoryStore struct {
	mu           sync.Mutex
	wallets      map[string]*Wallet // by wallet ID
	byUser       map[string]string  // user ID -> wallet ID
	transactions []*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]*Wallet),
		byUser:  make(map[string]string),
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byUser[userID]; ok {
		return copyWallet(s.wallets[id]), nil
	}
	w := &Wallet{
		ID:           uuid.NewString(),
		UserID:       userID,
		Balance:      decimal.Zero,
		FrozenAmount: decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Status:       StatusNormal,
	}
	w.Touch(time.Now())
	s.wallets[w.ID] = w
	s.byUser[userID] = w.ID
	return copyWallet(w), nil
}

func (s *MemoryStore) GetByUserID(ctx context.Context, userID string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWallet(s.wallets[id]), nil
}

func (s *MemoryStore) GetByID(ctx context.Context, walletID string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyWallet(w), nil
}

// mutate runs fn under the store lock; fn returns false to reject the
// update with no effect. The returned decimal is the balance after the
// update.
func (s *MemoryStore) mutate(walletID string, fn func(w *Wallet) bool) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !fn(w) {
		return decimal.Zero, false, nil
	}
	w.UpdatedAt = time.Now()
	return w.Balance, true, nil
}

func (s *MemoryStore) AddBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		w.Balance = w.Balance.Add(amt)
		return true
	})
}

func (s *MemoryStore) DeductBalance(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		if w.Balance.LessThan(amt) {
			return false
		}
		w.Balance = w.Balance.Sub(amt)
		return true
	})
}

func (s *MemoryStore) Freeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		if w.Balance.LessThan(amt) {
			return false
		}
		w.Balance = w.Balance.Sub(amt)
		w.FrozenAmount = w.FrozenAmount.Add(amt)
		return true
	})
}

func (s *MemoryStore) Unfreeze(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		if w.FrozenAmount.LessThan(amt) {
			return false
		}
		w.FrozenAmount = w.FrozenAmount.Sub(amt)
		w.Balance = w.Balance.Add(amt)
		return true
	})
}

func (s *MemoryStore) ReleaseFrozenToExpense(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		if w.FrozenAmount.LessThan(amt) {
			return false
		}
		w.FrozenAmount = w.FrozenAmount.Sub(amt)
		w.TotalExpense = w.TotalExpense.Add(amt)
		return true
	})
}

func (s *MemoryStore) AddIncome(ctx context.Context, walletID string, amt decimal.Decimal) (decimal.Decimal, bool, error) {
	return s.mutate(walletID, func(w *Wallet) bool {
		w.Balance = w.Balance.Add(amt)
		w.TotalIncome = w.TotalIncome.Add(amt)
		return true
	})
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.transactions = append(s.transactions, &cp)
	return nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SettleWithdraw(ctx context.Context, id, to string, refund bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id && t.Type == TypeWithdraw && t.Status == TxProcessing {
			t.Status = to
			t.UpdatedAt = time.Now()
			if refund {
				if w, ok := s.wallets[t.WalletID]; ok {
					w.Balance = w.Balance.Add(t.Amount)
					w.UpdatedAt = t.UpdatedAt
				}
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListTransactionsByUser(ctx context.Context, userID, typ string, limit, offset int) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Transaction
	for _, t := range s.transactions {
		if t.UserID == userID && (typ == "" || t.Type == typ) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListTransactionsByOrder(ctx context.Context, orderID string) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Transaction
	for _, t := range s.transactions {
		if t.OrderID == orderID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProcessingWithdrawals(ctx context.Context) ([]*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Transaction
	for _, t := range s.transactions {
		if t.Type == TypeWithdraw && t.Status == TxProcessing {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func copyWallet(w *Wallet) *Wallet {
	cp := *w
	return &cp
}
