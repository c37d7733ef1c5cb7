package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentrun/billing-engine/internal/core/domain"
	"github.com/agentrun/billing-engine/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubSessionRepo mirrors the real conditional update: match-and-mutate
// happen under one lock, so concurrent callers see exactly one winner.
type stubSessionRepo struct {
	mu       sync.Mutex
	session  *domain.Session
	transErr error
}

func (r *stubSessionRepo) CompleteTransition(_ context.Context, sessionID, userID string, to domain.SessionStatus, completedAt time.Time) (*domain.Session, error) {
	if r.transErr != nil {
		return nil, r.transErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.ID != sessionID {
		return nil, domain.ErrSessionNotFound
	}
	if userID != "" && r.session.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if r.session.Status != domain.SessionRunning {
		return nil, nil
	}
	snapshot := *r.session
	r.session.Status = to
	at := completedAt
	r.session.CompletedAt = &at
	return &snapshot, nil
}

func (r *stubSessionRepo) FindByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil || r.session.ID != sessionID {
		return nil, domain.ErrSessionNotFound
	}
	clone := *r.session
	return &clone, nil
}

// stubBilling records Deduct calls and returns a canned outcome.
type stubBilling struct {
	mu      sync.Mutex
	inputs  []ports.DeductInput
	outcome *ports.DeductionOutcome
	err     error
}

func (b *stubBilling) Deduct(_ context.Context, input ports.DeductInput) (*ports.DeductionOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inputs = append(b.inputs, input)
	if b.err != nil {
		return nil, b.err
	}
	if b.outcome != nil {
		return b.outcome, nil
	}
	return &ports.DeductionOutcome{Sufficient: true, CreditsCharged: 3, NewBalance: 97}, nil
}

func (b *stubBilling) calls() []ports.DeductInput {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.DeductInput(nil), b.inputs...)
}

func (b *stubBilling) GetBalance(context.Context, string) (*ports.BalanceResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBilling) CheckSufficient(context.Context, string, float64) (*ports.SufficiencyResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBilling) AddCredits(context.Context, ports.AddCreditsInput) (*ports.CreditResult, error) {
	return nil, errors.New("not implemented")
}

func (b *stubBilling) History(context.Context, ports.HistoryInput) ([]*domain.LedgerEntry, int64, error) {
	return nil, 0, errors.New("not implemented")
}

// ---------------------------------------------------------------------------

func runningSession(startedAgo time.Duration) *domain.Session {
	return &domain.Session{
		ID:        "sess_1",
		UserID:    "user_1",
		AgentID:   "agent_1",
		Status:    domain.SessionRunning,
		StartedAt: time.Now().UTC().Add(-startedAgo),
	}
}

func TestStopSession_BillsWinner(t *testing.T) {
	repo := &stubSessionRepo{session: runningSession(125 * time.Second)}
	billing := &stubBilling{}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	outcome, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "sess_1",
		UserID:    "user_1",
	})
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if outcome.AlreadyStopped {
		t.Fatalf("winner reported AlreadyStopped")
	}
	if outcome.CreditsCharged != 3 || outcome.NewBalance != 97 {
		t.Fatalf("outcome = %+v", outcome)
	}

	calls := billing.calls()
	if len(calls) != 1 {
		t.Fatalf("deduct calls = %d, want 1", len(calls))
	}
	in := calls[0]
	if in.Reason != domain.ReasonAgentRun || in.SessionID != "sess_1" || in.AgentID != "agent_1" {
		t.Fatalf("deduct input = %+v", in)
	}
	// Started 125s ago: metered minutes land near 2.083.
	if in.Minutes < 2.0 || in.Minutes > 2.2 {
		t.Fatalf("metered minutes = %v, want ~2.083", in.Minutes)
	}

	if repo.session.Status != domain.SessionStopped {
		t.Fatalf("session status = %s, want stopped", repo.session.Status)
	}
	if repo.session.CompletedAt == nil {
		t.Fatalf("completed_at not set")
	}
}

// Exactly-once billing: among N concurrent stop calls, one wins the
// transition and triggers a single deduction; the rest observe a no-op.
func TestStopSession_ExactlyOnceUnderConcurrency(t *testing.T) {
	repo := &stubSessionRepo{session: runningSession(5 * time.Minute)}
	billing := &stubBilling{}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	const n = 16
	outcomes := make([]*ports.StopSessionOutcome, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.StopSession(context.Background(), ports.StopSessionInput{
				SessionID: "sess_1",
				UserID:    "user_1",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d error: %v", i, errs[i])
		}
		if !outcomes[i].AlreadyStopped {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
	if got := len(billing.calls()); got != 1 {
		t.Fatalf("deduct calls = %d, want exactly 1", got)
	}
}

func TestStopSession_AlreadyStoppedSkipsBilling(t *testing.T) {
	sess := runningSession(time.Minute)
	sess.Status = domain.SessionStopped
	repo := &stubSessionRepo{session: sess}
	billing := &stubBilling{}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	outcome, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "sess_1",
		UserID:    "user_1",
	})
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if !outcome.AlreadyStopped {
		t.Fatalf("expected AlreadyStopped outcome")
	}
	if len(billing.calls()) != 0 {
		t.Fatalf("billing invoked for a lost transition")
	}
}

func TestStopSession_UnknownSession(t *testing.T) {
	repo := &stubSessionRepo{}
	svc := NewSessionService(repo, &stubBilling{}, zerolog.Nop())

	_, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "missing",
		UserID:    "user_1",
	})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestStopSession_ForeignSessionForbidden(t *testing.T) {
	repo := &stubSessionRepo{session: runningSession(time.Minute)}
	billing := &stubBilling{}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	_, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "sess_1",
		UserID:    "someone_else",
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(billing.calls()) != 0 {
		t.Fatalf("billing invoked for a forbidden stop")
	}
}

func TestStopSession_StoreFailurePropagates(t *testing.T) {
	repo := &stubSessionRepo{transErr: errors.New("store unavailable")}
	billing := &stubBilling{}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	_, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "sess_1",
		UserID:    "user_1",
	})
	if err == nil {
		t.Fatalf("expected store failure to propagate")
	}
	if len(billing.calls()) != 0 {
		t.Fatalf("billing invoked despite guard failure")
	}
}

func TestStopSession_InsufficientBalanceStillStops(t *testing.T) {
	repo := &stubSessionRepo{session: runningSession(13 * time.Minute)}
	billing := &stubBilling{outcome: &ports.DeductionOutcome{
		Sufficient: false,
		Required:   13,
		Available:  12,
	}}
	svc := NewSessionService(repo, billing, zerolog.Nop())

	outcome, err := svc.StopSession(context.Background(), ports.StopSessionInput{
		SessionID: "sess_1",
		UserID:    "user_1",
	})
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if !outcome.InsufficientBalance {
		t.Fatalf("expected insufficient outcome: %+v", outcome)
	}
	if outcome.Required != 13 || outcome.Available != 12 {
		t.Fatalf("required/available = %d/%d, want 13/12", outcome.Required, outcome.Available)
	}
	if repo.session.Status != domain.SessionStopped {
		t.Fatalf("session not stopped despite completed transition")
	}
}
