package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

type stubSessionService struct {
	outcome *ports.StopSessionOutcome
	err     error
	last    *ports.StopSessionInput
}

func (s *stubSessionService) StopSession(_ context.Context, input ports.StopSessionInput) (*ports.StopSessionOutcome, error) {
	s.last = &input
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func newStopContext(userID, role, sessionID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/stop", strings.NewReader(""))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)
	if userID != "" {
		c.Set("user_id", userID)
	}
	if role != "" {
		c.Set("role", role)
	}
	return c, rec
}

func TestStop_ScopesToOwner(t *testing.T) {
	svc := &stubSessionService{outcome: &ports.StopSessionOutcome{
		MinutesBilled:  2.1,
		CreditsCharged: 3,
		NewBalance:     97,
	}}
	h := NewSessionHandler(svc)

	c, rec := newStopContext("user_1", domain.RoleUser, "sess_1")
	if err := h.Stop(c); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if svc.last.SessionID != "sess_1" || svc.last.UserID != "user_1" {
		t.Fatalf("service input = %+v", svc.last)
	}
	var got stopSessionResponse
	decodeBody(t, rec, &got)
	if got.AlreadyStopped || got.CreditsCharged != 3 || got.NewBalance != 97 {
		t.Fatalf("body = %+v", got)
	}
}

func TestStop_AdminBypassesOwnerScope(t *testing.T) {
	svc := &stubSessionService{outcome: &ports.StopSessionOutcome{}}
	h := NewSessionHandler(svc)

	c, _ := newStopContext("admin_1", domain.RoleAdmin, "sess_1")
	if err := h.Stop(c); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if svc.last.UserID != "" {
		t.Fatalf("admin call scoped to %q, want unscoped", svc.last.UserID)
	}
}

func TestStop_AlreadyStoppedIsOK(t *testing.T) {
	svc := &stubSessionService{outcome: &ports.StopSessionOutcome{AlreadyStopped: true}}
	h := NewSessionHandler(svc)

	c, rec := newStopContext("user_1", domain.RoleUser, "sess_1")
	if err := h.Stop(c); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got stopSessionResponse
	decodeBody(t, rec, &got)
	if !got.AlreadyStopped {
		t.Fatalf("body = %+v", got)
	}
}

func TestStop_PropagatesServiceErrors(t *testing.T) {
	svc := &stubSessionService{err: domain.ErrSessionNotFound}
	h := NewSessionHandler(svc)

	c, _ := newStopContext("user_1", domain.RoleUser, "missing")
	err := h.Stop(c)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}
