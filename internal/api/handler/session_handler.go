package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

// SessionHandler handles the billable stop-session operation.
type SessionHandler struct {
	service ports.SessionService
}

func NewSessionHandler(service ports.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Stop handles POST /v1/sessions/:session_id/stop.
//
// Safe to retry: once the session has left running, subsequent calls return
// already_stopped=true and never bill again.
//
// @Summary      Stop a running session and charge for its runtime
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        session_id  path      string  true  "Session identifier"
// @Success      200         {object}  stopSessionResponse
// @Failure      401         {object}  map[string]string
// @Failure      403         {object}  map[string]string
// @Failure      404         {object}  map[string]string
// @Failure      500         {object}  map[string]string
// @Router       /v1/sessions/{session_id}/stop [post]
func (h *SessionHandler) Stop(c echo.Context) error {
	userID, role, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing session id")
	}

	// Admins may stop any user's session; everyone else only their own.
	ownerScope := userID
	if role == domain.RoleAdmin {
		ownerScope = ""
	}

	outcome, err := h.service.StopSession(c.Request().Context(), ports.StopSessionInput{
		SessionID: sessionID,
		UserID:    ownerScope,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stopSessionResponse{
		AlreadyStopped:      outcome.AlreadyStopped,
		MinutesBilled:       outcome.MinutesBilled,
		CreditsCharged:      outcome.CreditsCharged,
		NewBalance:          outcome.NewBalance,
		InsufficientBalance: outcome.InsufficientBalance,
		Required:            outcome.Required,
		Available:           outcome.Available,
	})
}
