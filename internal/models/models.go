package models

import (
	"time"

	"github.com/google/uuid"
)

// EarningsLedger tracks a user's uncollected network commission balance.
// AvailableCents never goes negative; debits happen only through the
// store's atomic compare-and-decrement.
type EarningsLedger struct {
	UserID         uuid.UUID `json:"user_id"`
	AvailableCents int64     `json:"available_cents"`
	Currency       string    `json:"currency"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Charge is a checkout-side payment record. The checkout flow owns the
// table; this subsystem reads it to attribute provider fraud events.
type Charge struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	ExternalRef string    `json:"external_ref"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// PayoutAccount is the single external payout destination a user may hold.
// At most one account exists per user; switching rails requires a disconnect.
type PayoutAccount struct {
	UserID            uuid.UUID `json:"user_id"`
	Rail              string    `json:"rail"`
	AccountIdentifier string    `json:"account_identifier"` // opaque, rail-specific encoding
	Status            string    `json:"status"`             // pending, active, restricted, disabled
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PayoutThresholdPreference stores a user's custom auto-payout threshold.
// Reads always clamp to max(platform minimum, stored value).
type PayoutThresholdPreference struct {
	UserID                  uuid.UUID `json:"user_id"`
	AutoPayoutThresholdCents int64    `json:"auto_payout_threshold_cents"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// PayoutTransaction records a disbursement accepted by a rail. It is created
// only after the rail confirms acceptance, never for a failed attempt.
type PayoutTransaction struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Rail             string    `json:"rail"`
	ExternalID       string    `json:"external_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"` // pending, completed, failed
	EstimatedArrival time.Time `json:"estimated_arrival"`
	CreatedAt        time.Time `json:"created_at"`
}

// RiskFactor is one weighted contribution to a risk score.
type RiskFactor struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// RiskAssessmentResult is the ephemeral output of a risk assessment.
// It is returned to the caller and never persisted.
type RiskAssessmentResult struct {
	RiskScore          float64      `json:"risk_score"` // [0, 1]
	RiskLevel          string       `json:"risk_level"`
	RiskFactors        []RiskFactor `json:"risk_factors"`
	RequiresStrongAuth bool         `json:"requires_strong_auth"`
	Recommendation     string       `json:"recommendation"`
}

// FraudStats carries the provider-side detail of an ingested fraud event.
type FraudStats struct {
	EventType       string            `json:"event_type"`
	ExternalEventID string            `json:"external_event_id"`
	Reason          string            `json:"reason"`
	Status          string            `json:"status"`
	IPAddress       string            `json:"ip_address,omitempty"`
	CountryCode     string            `json:"country_code,omitempty"`
	DeviceID        string            `json:"device_id,omitempty"`
	DetectedAt      time.Time         `json:"detected_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// FraudAlert is written by the fraud ingestor for every accepted event.
type FraudAlert struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	RiskScore   float64      `json:"risk_score"`
	RiskLevel   string       `json:"risk_level"`
	RiskFactors []RiskFactor `json:"risk_factors"`
	FraudStats  FraudStats   `json:"fraud_stats"`
	Status      string       `json:"status"` // pending, reviewed, dismissed
	CreatedAt   time.Time    `json:"created_at"`
}

// BlacklistEntry blocks a user from payouts and elevated account actions.
// BlockedBy is nil when the block was applied automatically.
type BlacklistEntry struct {
	UserID    uuid.UUID  `json:"user_id"`
	Reason    string     `json:"reason"`
	FraudType string     `json:"fraud_type"`
	BlockedBy *uuid.UUID `json:"blocked_by,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
