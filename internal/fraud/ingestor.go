// Package fraud ingests external fraud signals (disputes, early fraud
// warnings, manual reviews, suspicious declines), writes fraud alerts and
// conditionally auto-blacklists the owning user.
//
// Ingestion never fails the enclosing webhook delivery: unresolvable charges
// and store write failures are logged and swallowed.
package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/observability"
	"go.uber.org/zap"
)

// Score-to-level boundaries for ingested fraud events. This table differs
// from the risk engine's on purpose: unifying them would change which events
// auto-blacklist. A fraudulent dispute (0.9) is high, not critical; only a
// card-network early fraud warning (0.95) reaches critical.
const (
	levelCritical = 0.95
	levelHigh     = 0.7
	levelMedium   = 0.4
)

// Event-specific scores.
const (
	scoreDisputeFraudulent = 0.9
	scoreDisputeDisputable = 0.6
	scoreDisputeOther      = 0.4
	scoreEarlyFraudWarning = 0.95
	scoreReviewRule        = 0.8
	scoreReviewOther       = 0.5
	scoreSuspiciousDecline = 0.7
)

// Charge is the charge-lookup collaborator's view of a provider charge.
type Charge struct {
	UserID      uuid.UUID
	AmountCents int64
	Currency    string
}

// ChargeResolver resolves an opaque provider charge reference to the owning
// user. Webhook authenticity is verified before events reach this package.
type ChargeResolver interface {
	ResolveCharge(ctx context.Context, chargeRef string) (*Charge, error)
}

// AlertStore persists fraud alerts and blacklist entries.
type AlertStore interface {
	InsertFraudAlert(ctx context.Context, alert *models.FraudAlert) error
	InsertBlacklistEntry(ctx context.Context, entry *models.BlacklistEntry) error
}

// Ingestor consumes external fraud events.
type Ingestor struct {
	store    AlertStore
	resolver ChargeResolver
}

func NewIngestor(store AlertStore, resolver ChargeResolver) *Ingestor {
	return &Ingestor{store: store, resolver: resolver}
}

// DisputeEvent is a chargeback opened against a charge.
type DisputeEvent struct {
	EventID     string
	ChargeRef   string
	Reason      string
	Status      string
	IPAddress   string
	CountryCode string
	DeviceID    string
	OccurredAt  time.Time
	Metadata    map[string]string
}

// EarlyFraudWarningEvent is a card-network early fraud signal.
type EarlyFraudWarningEvent struct {
	EventID    string
	ChargeRef  string
	FraudType  string
	OccurredAt time.Time
	Metadata   map[string]string
}

// ReviewEvent is a provider-side manual review opened on a payment.
type ReviewEvent struct {
	EventID    string
	ChargeRef  string
	Reason     string
	Open       bool
	OccurredAt time.Time
	Metadata   map[string]string
}

// FailedChargeEvent is a declined charge; only fraud-indicating decline
// codes produce an alert.
type FailedChargeEvent struct {
	EventID     string
	ChargeRef   string
	DeclineCode string
	IPAddress   string
	CountryCode string
	OccurredAt  time.Time
	Metadata    map[string]string
}

// ProcessDispute ingests a dispute. Disputes auto-blacklist only at this
// package's critical threshold.
func (i *Ingestor) ProcessDispute(ctx context.Context, ev DisputeEvent) {
	charge, ok := i.resolve(ctx, domain.FraudEventDispute, ev.EventID, ev.ChargeRef)
	if !ok {
		return
	}

	score := disputeScore(ev.Reason)
	alert := i.buildAlert(charge.UserID, score, models.FraudStats{
		EventType:       domain.FraudEventDispute,
		ExternalEventID: ev.EventID,
		Reason:          ev.Reason,
		Status:          ev.Status,
		IPAddress:       ev.IPAddress,
		CountryCode:     ev.CountryCode,
		DeviceID:        ev.DeviceID,
		DetectedAt:      ev.OccurredAt,
		Metadata:        ev.Metadata,
	})
	i.writeAlert(ctx, alert)

	// Disputes auto-blacklist only when this table rates them critical.
	if levelFor(score) == domain.RiskLevelCritical {
		i.blacklist(ctx, charge.UserID, "dispute with fraud-indicating reason", ev.Reason)
	}
}

// ProcessEarlyFraudWarning ingests a card-network early fraud warning.
// These always auto-blacklist.
func (i *Ingestor) ProcessEarlyFraudWarning(ctx context.Context, ev EarlyFraudWarningEvent) {
	charge, ok := i.resolve(ctx, domain.FraudEventEarlyFraudWarning, ev.EventID, ev.ChargeRef)
	if !ok {
		return
	}

	alert := i.buildAlert(charge.UserID, scoreEarlyFraudWarning, models.FraudStats{
		EventType:       domain.FraudEventEarlyFraudWarning,
		ExternalEventID: ev.EventID,
		Reason:          ev.FraudType,
		DetectedAt:      ev.OccurredAt,
		Metadata:        ev.Metadata,
	})
	i.writeAlert(ctx, alert)
	i.blacklist(ctx, charge.UserID, "card network early fraud warning", ev.FraudType)
}

// ProcessReview ingests a provider review. Open reviews auto-blacklist when
// the high threshold is met.
func (i *Ingestor) ProcessReview(ctx context.Context, ev ReviewEvent) {
	charge, ok := i.resolve(ctx, domain.FraudEventReview, ev.EventID, ev.ChargeRef)
	if !ok {
		return
	}

	score := reviewScore(ev.Reason)
	status := "closed"
	if ev.Open {
		status = "open"
	}
	alert := i.buildAlert(charge.UserID, score, models.FraudStats{
		EventType:       domain.FraudEventReview,
		ExternalEventID: ev.EventID,
		Reason:          ev.Reason,
		Status:          status,
		DetectedAt:      ev.OccurredAt,
		Metadata:        ev.Metadata,
	})
	i.writeAlert(ctx, alert)

	if ev.Open {
		if lvl := levelFor(score); lvl == domain.RiskLevelHigh || lvl == domain.RiskLevelCritical {
			i.blacklist(ctx, charge.UserID, "open payment review", ev.Reason)
		}
	}
}

// ProcessFailedCharge ingests a declined charge. Only decline codes in the
// fraud-indicator allowlist produce an alert; suspicious declines never
// auto-blacklist.
func (i *Ingestor) ProcessFailedCharge(ctx context.Context, ev FailedChargeEvent) {
	if _, ok := domain.FraudDeclineCodes[ev.DeclineCode]; !ok {
		return
	}
	charge, ok := i.resolve(ctx, domain.FraudEventSuspiciousDecline, ev.EventID, ev.ChargeRef)
	if !ok {
		return
	}

	alert := i.buildAlert(charge.UserID, scoreSuspiciousDecline, models.FraudStats{
		EventType:       domain.FraudEventSuspiciousDecline,
		ExternalEventID: ev.EventID,
		Reason:          ev.DeclineCode,
		IPAddress:       ev.IPAddress,
		CountryCode:     ev.CountryCode,
		DetectedAt:      ev.OccurredAt,
		Metadata:        ev.Metadata,
	})
	i.writeAlert(ctx, alert)
}

func (i *Ingestor) resolve(ctx context.Context, eventType, eventID, chargeRef string) (*Charge, bool) {
	charge, err := i.resolver.ResolveCharge(ctx, chargeRef)
	if err != nil {
		zap.L().Warn("fraud: charge unresolved, event dropped",
			zap.String("event_type", eventType),
			zap.String("event_id", eventID),
			zap.String("charge_ref", chargeRef),
			zap.Error(err),
		)
		observability.IncrementFraudEvent(eventType, "unresolved")
		return nil, false
	}
	return charge, true
}

func (i *Ingestor) buildAlert(userID uuid.UUID, score float64, stats models.FraudStats) *models.FraudAlert {
	return &models.FraudAlert{
		ID:        uuid.New(),
		UserID:    userID,
		RiskScore: score,
		RiskLevel: levelFor(score),
		RiskFactors: []models.RiskFactor{{
			Type:        stats.EventType,
			Severity:    levelFor(score),
			Description: stats.Reason,
			Score:       score,
		}},
		FraudStats: stats,
		Status:     domain.AlertStatusPending,
	}
}

func (i *Ingestor) writeAlert(ctx context.Context, alert *models.FraudAlert) {
	if err := i.store.InsertFraudAlert(ctx, alert); err != nil {
		zap.L().Error("fraud: alert write failed",
			zap.Error(err),
			zap.String("user_id", alert.UserID.String()),
			zap.String("event_type", alert.FraudStats.EventType),
		)
		observability.IncrementFraudEvent(alert.FraudStats.EventType, "write_failed")
		return
	}
	observability.IncrementFraudEvent(alert.FraudStats.EventType, "alert_created")
}

func (i *Ingestor) blacklist(ctx context.Context, userID uuid.UUID, reason, fraudType string) {
	entry := &models.BlacklistEntry{
		UserID:    userID,
		Reason:    reason,
		FraudType: fraudType,
		BlockedBy: nil, // automatic
	}
	if err := i.store.InsertBlacklistEntry(ctx, entry); err != nil {
		zap.L().Error("fraud: auto-blacklist write failed",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("reason", reason),
		)
		return
	}
	observability.IncrementAutoBlacklist(fraudType)
	zap.L().Warn("fraud: user auto-blacklisted",
		zap.String("user_id", userID.String()),
		zap.String("reason", reason),
	)
}

func disputeScore(reason string) float64 {
	switch reason {
	case "fraudulent", "unauthorized":
		return scoreDisputeFraudulent
	case "product_not_received", "product_unacceptable", "duplicate", "subscription_canceled", "credit_not_processed":
		return scoreDisputeDisputable
	default:
		return scoreDisputeOther
	}
}

func reviewScore(reason string) float64 {
	switch reason {
	case "rule", "manual":
		return scoreReviewRule
	default:
		return scoreReviewOther
	}
}

func levelFor(score float64) string {
	switch {
	case score >= levelCritical:
		return domain.RiskLevelCritical
	case score >= levelHigh:
		return domain.RiskLevelHigh
	case score >= levelMedium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}
