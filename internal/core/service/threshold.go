package service

import "github.com/agentrun/billing-engine/internal/core/domain"

// EvaluateThreshold decides whether a post-deduction balance warrants a
// user-facing alert. An exhausted balance outranks a low one; anything above
// lowPercent of the baseline returns nil. The correlation is stable per
// (user, type) so the notification collaborator can deduplicate repeats.
func EvaluateThreshold(userID string, newBalance, baseline int64, lowPercent float64) *domain.NotificationRequest {
	if baseline <= 0 {
		return nil
	}

	percentLeft := float64(newBalance) / float64(baseline) * 100

	var typ domain.NotificationType
	switch {
	case newBalance == 0:
		typ = domain.NotificationCreditsExhausted
	case percentLeft <= lowPercent:
		typ = domain.NotificationCreditsLow
	default:
		return nil
	}

	return &domain.NotificationRequest{
		UserID:      userID,
		Type:        typ,
		Correlation: userID + ":" + string(typ),
		Credits:     newBalance,
		PercentLeft: percentLeft,
	}
}
