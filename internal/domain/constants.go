package domain

// Payout rails. A user connects at most one.
const (
	RailCardAcquirer  = "card_acquirer"
	RailDigitalWallet = "digital_wallet"
	RailBankTransfer  = "bank_transfer"
	RailGlobalPayout  = "global_payout"
)

// SupportedRails lists every rail the payout processor can dispatch to.
var SupportedRails = []string{
	RailCardAcquirer,
	RailDigitalWallet,
	RailBankTransfer,
	RailGlobalPayout,
}

// IsSupportedRail reports whether rail is one of the four dispatchable rails.
func IsSupportedRail(rail string) bool {
	switch rail {
	case RailCardAcquirer, RailDigitalWallet, RailBankTransfer, RailGlobalPayout:
		return true
	default:
		return false
	}
}

// Payout account statuses.
const (
	AccountStatusPending    = "pending"
	AccountStatusActive     = "active"
	AccountStatusRestricted = "restricted"
	AccountStatusDisabled   = "disabled"
)

// Payout transaction statuses.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusCompleted = "completed"
	PayoutStatusFailed    = "failed"
)

// Fraud alert statuses.
const (
	AlertStatusPending   = "pending"
	AlertStatusReviewed  = "reviewed"
	AlertStatusDismissed = "dismissed"
)

// Platform payment modes. Manual mode is the global auto-payout kill switch.
const (
	PaymentModeAuto   = "auto"
	PaymentModeManual = "manual"
)

// Risk levels shared by the risk engine and the fraud ingestor. The two
// components map scores to these levels with different boundary tables;
// the tables are intentionally kept separate at their call sites.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// Fraud event families ingested from the payment provider.
const (
	FraudEventDispute           = "dispute"
	FraudEventEarlyFraudWarning = "early_fraud_warning"
	FraudEventReview            = "review"
	FraudEventSuspiciousDecline = "suspicious_decline"
)

// Risk factor types produced by the risk engine.
const (
	FactorAmount       = "amount"
	FactorUserHistory  = "user_history"
	FactorGeography    = "geography"
	FactorVelocity     = "velocity"
	FactorAccountAge   = "account_age"
	FactorUnverifiable = "unverifiable"
)

// Provider decline codes that indicate likely fraud. A failed charge only
// produces a suspicious-decline alert when its code is in this set.
var FraudDeclineCodes = map[string]struct{}{
	"fraudulent":             {},
	"stolen_card":            {},
	"lost_card":              {},
	"pickup_card":            {},
	"security_violation":     {},
	"card_velocity_exceeded": {},
	"do_not_honor":           {},
}
