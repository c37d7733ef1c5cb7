package handler

type checkSufficientRequest struct {
	EstimatedMinutes float64 `json:"estimated_minutes" validate:"gte=0"`
}

type addCreditsRequest struct {
	UserID   string            `json:"user_id"  validate:"required"`
	Amount   int64             `json:"amount"   validate:"gte=0"`
	Reason   string            `json:"reason"   validate:"required,oneof=admin_adjustment refund purchase"`
	Metadata map[string]string `json:"metadata"`
}

type balanceResponse struct {
	Credits              int64   `json:"credits"`
	PercentageOfBaseline float64 `json:"percentage_of_baseline"`
}

type checkSufficientResponse struct {
	Sufficient     bool  `json:"sufficient"`
	CurrentBalance int64 `json:"current_balance"`
	Required       int64 `json:"required"`
}

type addCreditsResponse struct {
	NewBalance int64 `json:"new_balance"`
}

type ledgerEntryResponse struct {
	ID           string            `json:"id"`
	Delta        int64             `json:"delta"`
	Reason       string            `json:"reason"`
	BalanceAfter int64             `json:"balance_after"`
	AgentID      string            `json:"agent_id,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

type historyResponse struct {
	Entries []ledgerEntryResponse `json:"entries"`
	Total   int64                 `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

type stopSessionResponse struct {
	AlreadyStopped      bool    `json:"already_stopped"`
	MinutesBilled       float64 `json:"minutes_billed"`
	CreditsCharged      int64   `json:"credits_charged"`
	NewBalance          int64   `json:"new_balance"`
	InsufficientBalance bool    `json:"insufficient_balance"`
	Required            int64   `json:"required,omitempty"`
	Available           int64   `json:"available,omitempty"`
}
