package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
	"github.com/agentrun/billing-engine/internal/core/service"
)

// BillingHandler handles HTTP requests for balance and ledger operations.
type BillingHandler struct {
	service ports.BillingService
}

func NewBillingHandler(service ports.BillingService) *BillingHandler {
	return &BillingHandler{service: service}
}

// GetBalance handles GET /v1/balance.
//
// @Summary      Get the caller's credit balance
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  balanceResponse
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /v1/balance [get]
func (h *BillingHandler) GetBalance(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	result, err := h.service.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, balanceResponse{
		Credits:              result.Credits,
		PercentageOfBaseline: result.PercentageOfBaseline,
	})
}

// CheckSufficient handles POST /v1/balance/check.
//
// @Summary      Check whether the balance covers an estimated run
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      checkSufficientRequest  true  "Estimated run length"
// @Success      200   {object}  checkSufficientResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /v1/balance/check [post]
func (h *BillingHandler) CheckSufficient(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req checkSufficientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	result, err := h.service.CheckSufficient(c.Request().Context(), userID, req.EstimatedMinutes)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, checkSufficientResponse{
		Sufficient:     result.Sufficient,
		CurrentBalance: result.CurrentBalance,
		Required:       result.Required,
	})
}

// History handles GET /v1/ledger.
//
// @Summary      List the caller's ledger entries, most recent first
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query     int  false  "Max entries per page (default 20, cap 100)"
// @Param        offset  query     int  false  "Entries to skip"
// @Success      200     {object}  historyResponse
// @Failure      401     {object}  map[string]string
// @Router       /v1/ledger [get]
func (h *BillingHandler) History(c echo.Context) error {
	userID, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = service.NormalizeHistoryPage(limit, offset)

	entries, total, err := h.service.History(c.Request().Context(), ports.HistoryInput{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return err
	}

	items := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, ledgerEntryResponse{
			ID:           e.ID,
			Delta:        e.Delta,
			Reason:       string(e.Reason),
			BalanceAfter: e.BalanceAfter,
			AgentID:      e.AgentID,
			SessionID:    e.SessionID,
			Metadata:     e.Metadata,
			Timestamp:    e.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, historyResponse{
		Entries: items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// AddCredits handles POST /v1/credits (admin only).
//
// @Summary      Add credits to a user's balance
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      addCreditsRequest  true  "Credit details"
// @Success      200   {object}  addCreditsResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /v1/credits [post]
func (h *BillingHandler) AddCredits(c echo.Context) error {
	if _, _, err := ctxIdentity(c); err != nil {
		return err
	}

	var req addCreditsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	result, err := h.service.AddCredits(c.Request().Context(), ports.AddCreditsInput{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Reason:   domain.Reason(req.Reason),
		Metadata: req.Metadata,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, addCreditsResponse{NewBalance: result.NewBalance})
}
