package wallet

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// Handler exposes the ledger over HTTP. The JWT middleware puts user_id and
// role into the echo context; the handler turns them into explicit actor
// arguments before touching the ledger.
type Handler struct {
	Ledger *Ledger
}

func NewHandler(l *Ledger) *Handler {
	return &Handler{Ledger: l}
}

type RechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Account string          `json:"account"`
}

// Balance returns the caller's wallet, creating it on first use
func (h *Handler) Balance(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	w, err := h.Ledger.Wallet(c.Request().Context(), uid)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, w)
}

// Recharge credits the caller's balance
func (h *Handler) Recharge(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req RechargeRequest
	if err := c.Bind(&req); err != nil || !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be greater than zero"})
	}

	t, err := h.Ledger.Recharge(c.Request().Context(), uid, req.Amount)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Withdraw deducts the balance and leaves the withdrawal pending review
func (h *Handler) Withdraw(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req WithdrawRequest
	if err := c.Bind(&req); err != nil || !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be greater than zero"})
	}

	t, err := h.Ledger.Withdraw(c.Request().Context(), uid, req.Amount, req.Account)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"transaction": t,
		"message":     "withdrawal submitted for review",
	})
}

// Transactions lists the caller's ledger history, newest first
func (h *Handler) Transactions(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	typ := c.QueryParam("type")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	list, err := h.Ledger.Transactions(c.Request().Context(), uid, typ, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": list})
}

// OrderTransactions lists the ledger entries recorded against one order
func (h *Handler) OrderTransactions(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	list, err := h.Ledger.OrderTransactions(c.Request().Context(), orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch transactions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"transactions": list})
}
