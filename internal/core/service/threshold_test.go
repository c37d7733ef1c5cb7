package service

import (
	"testing"

	"github.com/agentrun/billing-engine/internal/core/domain"
)

func TestEvaluateThreshold(t *testing.T) {
	tests := []struct {
		name       string
		balance    int64
		baseline   int64
		lowPercent float64
		wantType   domain.NotificationType
		wantNone   bool
	}{
		{"exhausted beats low", 0, 100, 10, domain.NotificationCreditsExhausted, false},
		{"below low threshold", 9, 100, 10, domain.NotificationCreditsLow, false},
		{"exactly at threshold", 10, 100, 10, domain.NotificationCreditsLow, false},
		{"just above threshold", 11, 100, 10, "", true},
		{"healthy balance", 97, 100, 10, "", true},
		{"zero baseline yields nothing", 0, 0, 10, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := EvaluateThreshold("user_1", tt.balance, tt.baseline, tt.lowPercent)
			if tt.wantNone {
				if req != nil {
					t.Fatalf("expected no request, got %+v", req)
				}
				return
			}
			if req == nil {
				t.Fatalf("expected a %s request, got nil", tt.wantType)
			}
			if req.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", req.Type, tt.wantType)
			}
			if req.Correlation != "user_1:"+string(tt.wantType) {
				t.Fatalf("correlation = %q, want stable user+type key", req.Correlation)
			}
			if req.Credits != tt.balance {
				t.Fatalf("credits = %d, want %d", req.Credits, tt.balance)
			}
		})
	}
}
