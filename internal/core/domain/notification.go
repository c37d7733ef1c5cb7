package domain

// NotificationType identifies the threshold alert being requested.
type NotificationType string

const (
	NotificationCreditsLow       NotificationType = "credits_low"
	NotificationCreditsExhausted NotificationType = "credits_exhausted"
)

// NotificationRequest asks the external notification collaborator to alert
// a user. Correlation is stable per (user, type) so the collaborator can
// deduplicate repeated signals; billing never waits on delivery.
type NotificationRequest struct {
	UserID      string           `json:"user_id"`
	Type        NotificationType `json:"type"`
	Correlation string           `json:"correlation"`
	Credits     int64            `json:"credits"`
	PercentLeft float64          `json:"percent_left"`
}
