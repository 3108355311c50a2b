package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/stretchr/testify/require"
)

type stubSignals struct {
	blacklisted    bool
	blacklistErr   error
	pendingAlerts  int
	alertsErr      error
	chargeCount    int
	chargesErr     error
	accountCreated time.Time
	createdErr     error
}

func (s *stubSignals) IsBlacklisted(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.blacklisted, s.blacklistErr
}

func (s *stubSignals) CountPendingFraudAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return s.pendingAlerts, s.alertsErr
}

func (s *stubSignals) CountChargesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return s.chargeCount, s.chargesErr
}

func (s *stubSignals) AccountCreatedAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	return s.accountCreated, s.createdErr
}

func oldAccount() time.Time {
	return time.Now().Add(-90 * 24 * time.Hour)
}

func TestAssessAmountTiers(t *testing.T) {
	cases := []struct {
		name      string
		amount    int64
		wantScore float64
		wantLevel string
	}{
		{name: "trivial", amount: 5_00, wantScore: 0, wantLevel: domain.RiskLevelLow},
		{name: "low_tier", amount: 150_00, wantScore: 0.1, wantLevel: domain.RiskLevelLow},
		{name: "medium_tier", amount: 600_00, wantScore: 0.2, wantLevel: domain.RiskLevelMedium},
		{name: "high_tier", amount: 1_500_00, wantScore: 0.4, wantLevel: domain.RiskLevelHigh},
	}

	engine := NewEngine(&stubSignals{accountCreated: oldAccount()})
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Assess(context.Background(), AssessmentInput{AmountCents: tc.amount, Currency: "USD"})
			require.InDelta(t, tc.wantScore, result.RiskScore, 1e-9)
			require.Equal(t, tc.wantLevel, result.RiskLevel)
		})
	}
}

func TestAssessBlacklistDominates(t *testing.T) {
	userID := uuid.New()
	engine := NewEngine(&stubSignals{
		blacklisted:    true,
		chargeCount:    50,
		accountCreated: time.Now(),
	})

	result := engine.Assess(context.Background(), AssessmentInput{
		UserID:      &userID,
		AmountCents: 5_00,
		Currency:    "USD",
		CountryCode: "DE",
	})

	require.Equal(t, 1.0, result.RiskScore)
	require.Equal(t, domain.RiskLevelCritical, result.RiskLevel)
	require.True(t, result.RequiresStrongAuth)
}

func TestAssessPendingAlertRaisesHistory(t *testing.T) {
	userID := uuid.New()
	engine := NewEngine(&stubSignals{pendingAlerts: 2, accountCreated: oldAccount()})

	result := engine.Assess(context.Background(), AssessmentInput{
		UserID:      &userID,
		AmountCents: 5_00,
		Currency:    "USD",
	})

	require.InDelta(t, 0.5, result.RiskScore, 1e-9)
	require.Equal(t, domain.RiskLevelHigh, result.RiskLevel)
}

func TestAssessGeography(t *testing.T) {
	engine := NewEngine(&stubSignals{accountCreated: oldAccount()})

	high := engine.Assess(context.Background(), AssessmentInput{AmountCents: 5_00, CountryCode: "NG"})
	require.InDelta(t, 0.3, high.RiskScore, 1e-9)

	medium := engine.Assess(context.Background(), AssessmentInput{AmountCents: 5_00, CountryCode: "BR"})
	require.InDelta(t, 0.15, medium.RiskScore, 1e-9)

	clean := engine.Assess(context.Background(), AssessmentInput{AmountCents: 5_00, CountryCode: "DE"})
	require.Zero(t, clean.RiskScore)
}

func TestAssessVelocityAndAccountAge(t *testing.T) {
	userID := uuid.New()
	engine := NewEngine(&stubSignals{
		chargeCount:    12,
		accountCreated: time.Now().Add(-2 * time.Hour),
	})

	result := engine.Assess(context.Background(), AssessmentInput{
		UserID:      &userID,
		AmountCents: 5_00,
		Currency:    "USD",
	})

	// velocity 0.6 (critical) + account age 0.3 (under 24h)
	require.InDelta(t, 0.9, result.RiskScore, 1e-9)
	require.Equal(t, domain.RiskLevelCritical, result.RiskLevel)
	require.True(t, result.RequiresStrongAuth)
}

func TestAssessScoreClippedToOne(t *testing.T) {
	userID := uuid.New()
	engine := NewEngine(&stubSignals{
		pendingAlerts:  3,
		chargeCount:    20,
		accountCreated: time.Now(),
	})

	result := engine.Assess(context.Background(), AssessmentInput{
		UserID:      &userID,
		AmountCents: 2_000_00,
		CountryCode: "NG",
	})

	require.Equal(t, 1.0, result.RiskScore)
}

func TestAssessLookupFailureDegrades(t *testing.T) {
	userID := uuid.New()
	engine := NewEngine(&stubSignals{
		blacklistErr:   errors.New("store down"),
		chargesErr:     errors.New("store down"),
		createdErr:     errors.New("store down"),
		accountCreated: oldAccount(),
	})

	result := engine.Assess(context.Background(), AssessmentInput{
		UserID:      &userID,
		AmountCents: 5_00,
	})

	// Three degraded lookups, 0.1 each; never an error.
	require.InDelta(t, 0.3, result.RiskScore, 1e-9)
	for _, f := range result.RiskFactors {
		require.Equal(t, domain.FactorUnverifiable, f.Type)
	}
}

func TestRequiresStrongAuthByAmount(t *testing.T) {
	engine := NewEngine(&stubSignals{accountCreated: oldAccount()})

	// $500+ requires step-up even at low computed risk.
	result := engine.Assess(context.Background(), AssessmentInput{AmountCents: 500_00})
	require.True(t, result.RequiresStrongAuth)

	// Medium level plus $100+ requires step-up.
	medium := engine.Assess(context.Background(), AssessmentInput{AmountCents: 100_00, CountryCode: "BR"})
	require.Equal(t, domain.RiskLevelMedium, medium.RiskLevel)
	require.True(t, medium.RequiresStrongAuth)

	// Low level, small amount: no step-up.
	low := engine.Assess(context.Background(), AssessmentInput{AmountCents: 20_00})
	require.False(t, low.RequiresStrongAuth)
}
