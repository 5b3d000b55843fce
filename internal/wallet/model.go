package wallet

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/utils"
)

// Wallet statuses
const (
	StatusNormal = "normal"
	StatusFrozen = "frozen"
)

// Transaction types
const (
	TypeRecharge   = "recharge"
	TypeWithdraw   = "withdraw"
	TypePayment    = "payment"
	TypeIncome     = "income"
	TypeRefund     = "refund"
	TypeServiceFee = "service_fee"
)

// Transaction statuses
const (
	TxProcessing = "processing"
	TxSuccess    = "success"
	TxFailed     = "failed"
)

type Wallet struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Balance      decimal.Decimal `json:"balance"`
	FrozenAmount decimal.Decimal `json:"frozen_amount"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Status       string          `json:"status"`
	utils.AuditInfo
}

// Transaction is an append-only audit record of one funds-affecting
// operation. Rows are never updated after insert, except a withdraw row's
// status moving processing -> success/failed under manual review.
type Transaction struct {
	ID            string          `json:"id"`
	TransactionNo string          `json:"transaction_no"`
	WalletID      string          `json:"wallet_id"`
	UserID        string          `json:"user_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	OrderID       string          `json:"order_id,omitempty"`
	MilestoneID   string          `json:"milestone_id,omitempty"`
	Status        string          `json:"status"`
	Remark        string          `json:"remark,omitempty"`
	utils.AuditInfo
}

// GenerateTransactionNo builds the externally visible transaction reference.
// Stable once assigned, unique by construction.
func GenerateTransactionNo() string {
	return "TXN" + strconv.FormatInt(time.Now().UnixMilli(), 10) + strings.ToUpper(uuid.NewString()[:8])
}
