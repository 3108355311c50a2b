// Package risk scores payment attempts before a charge is captured.
//
// The score is the sum of independent weighted factors (amount tier, user
// history, geography, velocity, account age) clipped to 1.0. A blacklisted
// user short-circuits to a critical 1.0 regardless of other inputs. Strong
// authentication is required for high/critical levels and for large amounts.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/models"
	"go.uber.org/zap"
)

// Score-to-level boundaries for this engine. The fraud ingestor uses its own
// table; the two are intentionally not unified.
const (
	levelCritical = 0.7
	levelHigh     = 0.4
	levelMedium   = 0.2
)

// unverifiableScore is the degraded contribution when a signal lookup fails.
const unverifiableScore = 0.1

// Amount tiers in cents.
const (
	amountTierHigh   = 100_000 // $1000
	amountTierMedium = 50_000  // $500
	amountTierLow    = 10_000  // $100
)

// Default country risk sets. Overridable per engine instance.
var (
	defaultHighRiskCountries   = map[string]struct{}{"NG": {}, "GH": {}, "KE": {}, "PK": {}, "BD": {}, "VN": {}}
	defaultMediumRiskCountries = map[string]struct{}{"ID": {}, "PH": {}, "IN": {}, "BR": {}, "UA": {}, "EG": {}}
)

// SignalSource provides the read-only user signals consulted when a userID
// is present. Implementations must not mutate anything.
type SignalSource interface {
	IsBlacklisted(ctx context.Context, userID uuid.UUID) (bool, error)
	CountPendingFraudAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountChargesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	AccountCreatedAt(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// AssessmentInput carries the transaction and user signals for one scoring.
type AssessmentInput struct {
	UserID            *uuid.UUID
	AmountCents       int64
	Currency          string
	IPAddress         string
	CountryCode       string
	DeviceFingerprint string
	PaymentMethod     string
}

// Engine is the risk assessment engine. Pure with respect to its inputs
// except for read-only signal lookups.
type Engine struct {
	signals             SignalSource
	highRiskCountries   map[string]struct{}
	mediumRiskCountries map[string]struct{}
	now                 func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCountrySets overrides the geography risk sets.
func WithCountrySets(high, medium map[string]struct{}) Option {
	return func(e *Engine) {
		e.highRiskCountries = high
		e.mediumRiskCountries = medium
	}
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(signals SignalSource, opts ...Option) *Engine {
	e := &Engine{
		signals:             signals,
		highRiskCountries:   defaultHighRiskCountries,
		mediumRiskCountries: defaultMediumRiskCountries,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess scores a payment attempt. It never fails: a signal lookup error
// degrades to a small "unable to verify" contribution instead.
func (e *Engine) Assess(ctx context.Context, in AssessmentInput) *models.RiskAssessmentResult {
	var factors []models.RiskFactor

	if f := e.amountFactor(in.AmountCents); f != nil {
		factors = append(factors, *f)
	}

	if in.UserID != nil {
		historyFactors, blacklisted := e.historyFactors(ctx, *in.UserID)
		factors = append(factors, historyFactors...)
		if blacklisted {
			return &models.RiskAssessmentResult{
				RiskScore:          1.0,
				RiskLevel:          domain.RiskLevelCritical,
				RiskFactors:        factors,
				RequiresStrongAuth: true,
				Recommendation:     "block: user is blacklisted",
			}
		}
	}

	if f := e.geographyFactor(in.CountryCode); f != nil {
		factors = append(factors, *f)
	}

	if in.UserID != nil {
		if f := e.velocityFactor(ctx, *in.UserID); f != nil {
			factors = append(factors, *f)
		}
		if f := e.accountAgeFactor(ctx, *in.UserID); f != nil {
			factors = append(factors, *f)
		}
	}

	score := 0.0
	for _, f := range factors {
		score += f.Score
	}
	if score > 1.0 {
		score = 1.0
	}

	level := levelFor(score)
	return &models.RiskAssessmentResult{
		RiskScore:          score,
		RiskLevel:          level,
		RiskFactors:        factors,
		RequiresStrongAuth: requiresStrongAuth(level, in.AmountCents),
		Recommendation:     recommendationFor(level),
	}
}

func (e *Engine) amountFactor(amountCents int64) *models.RiskFactor {
	switch {
	case amountCents >= amountTierHigh:
		return &models.RiskFactor{
			Type:        domain.FactorAmount,
			Severity:    domain.RiskLevelHigh,
			Description: fmt.Sprintf("large transaction amount: %s", domain.NewMoney(amountCents, "USD").ToDecimal().StringFixed(2)),
			Score:       0.4,
		}
	case amountCents >= amountTierMedium:
		return &models.RiskFactor{
			Type:        domain.FactorAmount,
			Severity:    domain.RiskLevelMedium,
			Description: "elevated transaction amount",
			Score:       0.2,
		}
	case amountCents >= amountTierLow:
		return &models.RiskFactor{
			Type:        domain.FactorAmount,
			Severity:    domain.RiskLevelLow,
			Description: "moderate transaction amount",
			Score:       0.1,
		}
	default:
		return nil
	}
}

// historyFactors returns the user-history contributions and whether the user
// is blacklisted. A blacklist hit dominates every other factor.
func (e *Engine) historyFactors(ctx context.Context, userID uuid.UUID) ([]models.RiskFactor, bool) {
	blacklisted, err := e.signals.IsBlacklisted(ctx, userID)
	if err != nil {
		zap.L().Warn("risk: blacklist lookup failed", zap.Error(err), zap.String("user_id", userID.String()))
		return []models.RiskFactor{unverifiableFactor("user blacklist status")}, false
	}
	if blacklisted {
		return []models.RiskFactor{{
			Type:        domain.FactorUserHistory,
			Severity:    domain.RiskLevelCritical,
			Description: "user is blacklisted",
			Score:       1.0,
		}}, true
	}

	since := e.now().Add(-30 * 24 * time.Hour)
	pending, err := e.signals.CountPendingFraudAlertsSince(ctx, userID, since)
	if err != nil {
		zap.L().Warn("risk: fraud alert lookup failed", zap.Error(err), zap.String("user_id", userID.String()))
		return []models.RiskFactor{unverifiableFactor("recent fraud alerts")}, false
	}
	if pending >= 1 {
		return []models.RiskFactor{{
			Type:        domain.FactorUserHistory,
			Severity:    domain.RiskLevelHigh,
			Description: fmt.Sprintf("%d pending fraud alert(s) in the last 30 days", pending),
			Score:       0.5,
		}}, false
	}
	return nil, false
}

func (e *Engine) geographyFactor(countryCode string) *models.RiskFactor {
	if countryCode == "" {
		return nil
	}
	if _, ok := e.highRiskCountries[countryCode]; ok {
		return &models.RiskFactor{
			Type:        domain.FactorGeography,
			Severity:    domain.RiskLevelHigh,
			Description: fmt.Sprintf("high-risk country: %s", countryCode),
			Score:       0.3,
		}
	}
	if _, ok := e.mediumRiskCountries[countryCode]; ok {
		return &models.RiskFactor{
			Type:        domain.FactorGeography,
			Severity:    domain.RiskLevelMedium,
			Description: fmt.Sprintf("medium-risk country: %s", countryCode),
			Score:       0.15,
		}
	}
	return nil
}

func (e *Engine) velocityFactor(ctx context.Context, userID uuid.UUID) *models.RiskFactor {
	since := e.now().Add(-time.Hour)
	count, err := e.signals.CountChargesSince(ctx, userID, since)
	if err != nil {
		zap.L().Warn("risk: velocity lookup failed", zap.Error(err), zap.String("user_id", userID.String()))
		f := unverifiableFactor("transaction velocity")
		return &f
	}
	switch {
	case count >= 10:
		return &models.RiskFactor{
			Type:        domain.FactorVelocity,
			Severity:    domain.RiskLevelCritical,
			Description: fmt.Sprintf("%d transactions in the last hour", count),
			Score:       0.6,
		}
	case count >= 5:
		return &models.RiskFactor{
			Type:        domain.FactorVelocity,
			Severity:    domain.RiskLevelHigh,
			Description: fmt.Sprintf("%d transactions in the last hour", count),
			Score:       0.3,
		}
	default:
		return nil
	}
}

func (e *Engine) accountAgeFactor(ctx context.Context, userID uuid.UUID) *models.RiskFactor {
	createdAt, err := e.signals.AccountCreatedAt(ctx, userID)
	if err != nil {
		zap.L().Warn("risk: account age lookup failed", zap.Error(err), zap.String("user_id", userID.String()))
		f := unverifiableFactor("account age")
		return &f
	}
	age := e.now().Sub(createdAt)
	switch {
	case age < 24*time.Hour:
		return &models.RiskFactor{
			Type:        domain.FactorAccountAge,
			Severity:    domain.RiskLevelHigh,
			Description: "account created less than 24 hours ago",
			Score:       0.3,
		}
	case age < 7*24*time.Hour:
		return &models.RiskFactor{
			Type:        domain.FactorAccountAge,
			Severity:    domain.RiskLevelMedium,
			Description: "account created less than 7 days ago",
			Score:       0.15,
		}
	default:
		return nil
	}
}

func unverifiableFactor(what string) models.RiskFactor {
	return models.RiskFactor{
		Type:        domain.FactorUnverifiable,
		Severity:    domain.RiskLevelLow,
		Description: fmt.Sprintf("unable to verify %s", what),
		Score:       unverifiableScore,
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

func requiresStrongAuth(level string, amountCents int64) bool {
	if level == domain.RiskLevelCritical || level == domain.RiskLevelHigh {
		return true
	}
	if amountCents >= amountTierMedium {
		return true
	}
	return level == domain.RiskLevelMedium && amountCents >= amountTierLow
}

func recommendationFor(level string) string {
	switch level {
	case domain.RiskLevelCritical:
		return "block: manual review required before capture"
	case domain.RiskLevelHigh:
		return "challenge: require strong authentication"
	case domain.RiskLevelMedium:
		return "monitor: proceed with additional verification"
	default:
		return "allow"
	}
}
