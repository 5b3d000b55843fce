package wallet

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gigbridge/internal/alerts"
	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

type ReviewWithdrawalRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// ListPendingWithdrawals returns all withdrawals awaiting manual review
func (h *Handler) ListPendingWithdrawals(c echo.Context) error {
	list, err := h.Ledger.PendingWithdrawals(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch withdrawals"})
	}
	return c.JSON(http.StatusOK, echo.Map{"pending_withdrawals": list})
}

// ReviewWithdrawal settles a processing withdrawal after manual review
func (h *Handler) ReviewWithdrawal(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid withdrawal id"})
	}

	var req ReviewWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	t, err := h.Ledger.ReviewWithdrawal(c.Request().Context(), id, req.Approve)
	if err != nil {
		return apperr.Respond(c, err)
	}

	_ = alerts.EnqueueWithdrawalReviewed(t.ID, t.UserID, req.Approve)

	return c.JSON(http.StatusOK, echo.Map{
		"withdrawal_id": t.ID,
		"status":        t.Status,
	})
}
