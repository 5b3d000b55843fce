package marketplace

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/alerts"
	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// Handler exposes the marketplace over HTTP.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func actorID(c echo.Context) (string, bool) {
	uid, ok := c.Get("user_id").(string)
	return uid, ok && uid != ""
}

type CreateProjectRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `json:"budget"`
	Deadline    *time.Time      `json:"deadline"`
}

func (h *Handler) CreateProject(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req CreateProjectRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	p, err := h.Svc.CreateProject(c.Request().Context(), uid, req.Title, req.Description, req.Budget, req.Deadline)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetProject(c echo.Context) error {
	p, err := h.Svc.Project(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type CreateBidRequest struct {
	ProposedPrice decimal.Decimal `json:"proposed_price"`
	ProposedDays  int             `json:"proposed_days"`
	Proposal      string          `json:"proposal"`
}

func (h *Handler) CreateBid(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req CreateBidRequest
	if err := c.Bind(&req); err != nil || !req.ProposedPrice.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	b, err := h.Svc.CreateBid(c.Request().Context(), uid, c.Param("id"), req.ProposedPrice, req.ProposedDays, req.Proposal)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) UpdateBid(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req CreateBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	b, err := h.Svc.UpdateBid(c.Request().Context(), uid, c.Param("id"), req.ProposedPrice, req.ProposedDays, req.Proposal)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) WithdrawBid(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Svc.WithdrawBid(c.Request().Context(), uid, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "bid withdrawn"})
}

func (h *Handler) AcceptBid(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	b, err := h.Svc.AcceptBid(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	// Order creation is a separate call; notify so the client follows up.
	_ = alerts.EnqueueBidAccepted(b.ID, b.ProjectID, b.DeveloperID)

	return c.JSON(http.StatusOK, b)
}

func (h *Handler) RejectBid(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Svc.RejectBid(c.Request().Context(), uid, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "bid rejected"})
}

func (h *Handler) ProjectBids(c echo.Context) error {
	list, err := h.Svc.ProjectBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": list})
}

func (h *Handler) CreateOrderFromBid(c echo.Context) error {
	o, err := h.Svc.CreateOrderFromBid(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) ConfirmPayment(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	o, err := h.Svc.ConfirmPayment(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}

	_ = alerts.EnqueuePaymentConfirmed(o.ID, o.OrderNo, o.DeveloperID)

	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Svc.CancelOrder(c.Request().Context(), uid, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}

	_ = alerts.EnqueueOrderCancelled(c.Param("id"))

	return c.JSON(http.StatusOK, echo.Map{"message": "order cancelled"})
}

type AddMilestoneRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     *time.Time      `json:"due_date"`
}

func (h *Handler) AddMilestone(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req AddMilestoneRequest
	if err := c.Bind(&req); err != nil || req.Title == "" || !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	m, err := h.Svc.AddMilestone(c.Request().Context(), uid, c.Param("id"), req.Title, req.Description, req.Amount, req.DueDate)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.Svc.OrderByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) GetOrderByNo(c echo.Context) error {
	o, err := h.Svc.OrderByNo(c.Request().Context(), c.Param("no"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) MyOrders(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Svc.MyOrders(c.Request().Context(), uid, c.QueryParam("role"), c.QueryParam("status"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch orders"})
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": list})
}

func (h *Handler) OrderMilestones(c echo.Context) error {
	list, err := h.Svc.OrderMilestones(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"milestones": list})
}

func (h *Handler) StartMilestone(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	m, err := h.Svc.StartMilestone(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

type SubmitMilestoneRequest struct {
	Note string `json:"note"`
}

func (h *Handler) SubmitMilestone(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req SubmitMilestoneRequest
	if err := c.Bind(&req); err != nil || req.Note == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a submit note is required"})
	}
	m, err := h.Svc.SubmitMilestone(c.Request().Context(), uid, c.Param("id"), req.Note)
	if err != nil {
		return apperr.Respond(c, err)
	}

	_ = alerts.EnqueueMilestoneSubmitted(m.ID, m.OrderID)

	return c.JSON(http.StatusOK, m)
}

type ReviewMilestoneRequest struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note"`
}

func (h *Handler) ReviewMilestone(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req ReviewMilestoneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	m, err := h.Svc.ReviewMilestone(c.Request().Context(), uid, c.Param("id"), req.Approved, req.Note)
	if err != nil {
		return apperr.Respond(c, err)
	}

	_ = alerts.EnqueueMilestoneReviewed(m.ID, m.OrderID, req.Approved)

	return c.JSON(http.StatusOK, m)
}

func (h *Handler) CompleteOrder(c echo.Context) error {
	uid, ok := actorID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	o, err := h.Svc.CompleteOrder(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, o)
}
