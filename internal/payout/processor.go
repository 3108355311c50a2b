package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/locker"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/observability"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"go.uber.org/zap"
)

// Machine-readable reasons for a skipped auto-payout.
const (
	ReasonManualMode       = "manual_mode"
	ReasonBlacklisted      = "blacklisted"
	ReasonNoPayoutAccount  = "no_payout_account"
	ReasonUnsupportedRail  = "unsupported_rail"
	ReasonAccountNotActive = "account_not_active"
	ReasonBelowThreshold   = "below_threshold"
	ReasonInProgress       = "payout_in_progress"
)

// ProcessorStore is the storage surface the processor needs.
type ProcessorStore interface {
	GetLedger(ctx context.Context, userID uuid.UUID) (*models.EarningsLedger, error)
	DebitAvailable(ctx context.Context, userID uuid.UUID, amountCents int64) (bool, error)
	CreditLedger(ctx context.Context, userID uuid.UUID, amountCents int64, currency string) error
	CreditWallet(ctx context.Context, userID uuid.UUID, amountCents int64) error
	GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error)
	GetThresholdPreference(ctx context.Context, userID uuid.UUID) (*models.PayoutThresholdPreference, error)
	UpsertThresholdPreference(ctx context.Context, userID uuid.UUID, thresholdCents int64) error
	InsertPayoutTransaction(ctx context.Context, tx *models.PayoutTransaction) error
	IsBlacklisted(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Processor orchestrates threshold-gated automatic disbursement:
// eligibility, rail dispatch, external transfer, atomic ledger debit and
// transaction record, in that order, with no side effects before dispatch.
type Processor struct {
	store    ProcessorStore
	provider platform.Provider
	registry rail.Registry
	locks    locker.UserLocker
}

func NewProcessor(store ProcessorStore, provider platform.Provider, registry rail.Registry, locks locker.UserLocker) *Processor {
	return &Processor{store: store, provider: provider, registry: registry, locks: locks}
}

// AutoPayoutOutcome describes one ProcessAutoPayout invocation. When
// Processed is false, Reason carries the eligibility gate that stopped it.
type AutoPayoutOutcome struct {
	Processed      bool                      `json:"processed"`
	Reason         string                    `json:"reason,omitempty"`
	Message        string                    `json:"message,omitempty"`
	AvailableCents int64                     `json:"available_cents"`
	ThresholdCents int64                     `json:"threshold_cents"`
	Transaction    *models.PayoutTransaction `json:"transaction,omitempty"`
}

// AutoPayoutStatus is the read-only composite returned to callers.
type AutoPayoutStatus struct {
	Mode           string                `json:"mode"`
	Account        *models.PayoutAccount `json:"account,omitempty"`
	AvailableCents int64                 `json:"available_cents"`
	Currency       string                `json:"currency,omitempty"`
	ThresholdCents int64                 `json:"threshold_cents"`
	MinimumCents   int64                 `json:"minimum_cents"`
	MaximumCents   int64                 `json:"maximum_cents"`
	Eligible       bool                  `json:"eligible"`
	Blacklisted    bool                  `json:"blacklisted"`
}

// ProcessAutoPayout runs the full disbursement state machine for one user.
// Any returned error means no money moved; a non-processed outcome reports
// which gate stopped the attempt.
func (p *Processor) ProcessAutoPayout(ctx context.Context, userID uuid.UUID) (*AutoPayoutOutcome, error) {
	mode, err := p.provider.PaymentMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve payment mode: %w", err)
	}
	if mode == domain.PaymentModeManual {
		return p.skip(userID, "", ReasonManualMode, "platform payouts are in manual mode"), nil
	}

	blacklisted, err := p.store.IsBlacklisted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return p.skip(userID, "", ReasonBlacklisted, "user is blocked from payouts"), nil
	}

	account, err := p.store.GetPayoutAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return p.skip(userID, "", ReasonNoPayoutAccount, "no payout account connected"), nil
		}
		return nil, fmt.Errorf("load payout account: %w", err)
	}
	if !domain.IsSupportedRail(account.Rail) {
		return p.skip(userID, account.Rail, ReasonUnsupportedRail, fmt.Sprintf("rail %s is not supported", account.Rail)), nil
	}
	if account.Status != domain.AccountStatusActive {
		return p.skip(userID, account.Rail, ReasonAccountNotActive, fmt.Sprintf("payout account is %s", account.Status)), nil
	}

	// Attempts for the same user are mutually exclusive from here on.
	release, acquired, err := p.locks.Acquire(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("acquire payout lock: %w", err)
	}
	if !acquired {
		return p.skip(userID, account.Rail, ReasonInProgress, "another payout attempt is in flight"), nil
	}
	defer release()

	ledger, err := p.store.GetLedger(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ledger = &models.EarningsLedger{UserID: userID, Currency: "USD"}
		} else {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
	}

	threshold, _, _, err := p.resolveThreshold(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ledger.AvailableCents < threshold {
		outcome := p.skip(userID, account.Rail, ReasonBelowThreshold, fmt.Sprintf(
			"available balance %s is below the payout threshold %s",
			domain.NewMoney(ledger.AvailableCents, ledger.Currency),
			domain.NewMoney(threshold, ledger.Currency),
		))
		outcome.AvailableCents = ledger.AvailableCents
		outcome.ThresholdCents = threshold
		return outcome, nil
	}

	adapter, ok := p.registry.Lookup(account.Rail)
	if !ok {
		return p.skip(userID, account.Rail, ReasonUnsupportedRail, fmt.Sprintf("rail %s is not supported", account.Rail)), nil
	}

	amount := ledger.AvailableCents
	receipt, err := adapter.Transfer(ctx, rail.Transfer{
		UserID:      userID,
		Destination: account.AccountIdentifier,
		AmountCents: amount,
		Currency:    ledger.Currency,
	})
	if err != nil {
		observability.IncrementPayoutOutcome(account.Rail, "transfer_failed")
		zap.L().Error("payout transfer failed",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("rail", account.Rail),
			zap.Int64("amount_cents", amount),
		)
		var notConfigured *domain.NotConfiguredError
		if errors.As(err, &notConfigured) {
			return nil, notConfigured
		}
		return nil, &domain.ExternalTransferError{Rail: account.Rail, Err: err}
	}

	// The provider accepted the transfer; debit exactly once, atomically.
	debited, err := p.store.DebitAvailable(ctx, userID, amount)
	if err != nil || !debited {
		// Money has moved. Never retried within this invocation; flagged
		// for reconciliation instead.
		observability.IncrementPayoutOutcome(account.Rail, "debit_mismatch")
		zap.L().Error("ledger debit failed after accepted transfer; reconciliation required",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("external_id", receipt.ExternalID),
			zap.Int64("amount_cents", amount),
		)
	}

	tx := &models.PayoutTransaction{
		ID:               uuid.New(),
		UserID:           userID,
		Rail:             account.Rail,
		ExternalID:       receipt.ExternalID,
		AmountCents:      amount,
		Currency:         ledger.Currency,
		Status:           domain.PayoutStatusPending,
		EstimatedArrival: receipt.EstimatedArrival,
	}
	if err := p.store.InsertPayoutTransaction(ctx, tx); err != nil {
		// Best-effort telemetry: the transfer and debit stand.
		zap.L().Error("payout transaction record failed",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("external_id", receipt.ExternalID),
		)
	}

	observability.IncrementPayoutOutcome(account.Rail, "completed")
	observability.ObservePayoutAmount(account.Rail, amount)
	zap.L().Info("auto payout disbursed",
		zap.String("user_id", userID.String()),
		zap.String("rail", account.Rail),
		zap.Int64("amount_cents", amount),
		zap.String("external_id", receipt.ExternalID),
	)

	return &AutoPayoutOutcome{
		Processed:      true,
		AvailableCents: amount,
		ThresholdCents: threshold,
		Transaction:    tx,
	}, nil
}

// AutoPayoutStatus returns the read-only eligibility composite.
func (p *Processor) AutoPayoutStatus(ctx context.Context, userID uuid.UUID) (*AutoPayoutStatus, error) {
	mode, err := p.provider.PaymentMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve payment mode: %w", err)
	}

	status := &AutoPayoutStatus{Mode: mode}

	if account, err := p.store.GetPayoutAccount(ctx, userID); err == nil {
		status.Account = account
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load payout account: %w", err)
	}

	if ledger, err := p.store.GetLedger(ctx, userID); err == nil {
		status.AvailableCents = ledger.AvailableCents
		status.Currency = ledger.Currency
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	threshold, minCents, maxCents, err := p.resolveThreshold(ctx, userID)
	if err != nil {
		return nil, err
	}
	status.ThresholdCents = threshold
	status.MinimumCents = minCents
	status.MaximumCents = maxCents

	status.Blacklisted, err = p.store.IsBlacklisted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check blacklist: %w", err)
	}

	status.Eligible = mode != domain.PaymentModeManual &&
		!status.Blacklisted &&
		status.Account != nil &&
		status.Account.Status == domain.AccountStatusActive &&
		domain.IsSupportedRail(status.Account.Rail) &&
		status.AvailableCents >= threshold
	return status, nil
}

// UpdateAutoPayoutThreshold stores a custom threshold. Values outside the
// platform [minimum, maximum] band are rejected without any write.
func (p *Processor) UpdateAutoPayoutThreshold(ctx context.Context, userID uuid.UUID, thresholdCents int64) (*AutoPayoutStatus, error) {
	minCents, err := p.provider.MinThresholdCents(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve minimum threshold: %w", err)
	}
	maxCents, err := p.provider.MaxThresholdCents(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve maximum threshold: %w", err)
	}
	if thresholdCents < minCents {
		return nil, domain.NewValidationError("threshold_cents", fmt.Sprintf("must be at least %d", minCents))
	}
	if maxCents > 0 && thresholdCents > maxCents {
		return nil, domain.NewValidationError("threshold_cents", fmt.Sprintf("must be at most %d", maxCents))
	}

	if err := p.store.UpsertThresholdPreference(ctx, userID, thresholdCents); err != nil {
		return nil, fmt.Errorf("store threshold preference: %w", err)
	}
	return p.AutoPayoutStatus(ctx, userID)
}

// TransferToWallet moves ledger funds to the user's internal wallet. Unlike
// an external payout it is synchronous and requires available >= amount.
func (p *Processor) TransferToWallet(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	if amountCents <= 0 {
		return domain.NewValidationError("amount_cents", "must be greater than zero")
	}

	ledger, err := p.store.GetLedger(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("load ledger: %w", err)
	}

	debited, err := p.store.DebitAvailable(ctx, userID, amountCents)
	if err != nil {
		return fmt.Errorf("debit ledger: %w", err)
	}
	if !debited {
		return domain.ErrInsufficientFunds
	}

	if err := p.store.CreditWallet(ctx, userID, amountCents); err != nil {
		// Compensate the debit so funds are not stranded.
		if creditErr := p.store.CreditLedger(ctx, userID, amountCents, ledger.Currency); creditErr != nil {
			zap.L().Error("wallet transfer compensation failed",
				zap.Error(creditErr),
				zap.String("user_id", userID.String()),
				zap.Int64("amount_cents", amountCents),
			)
		}
		return fmt.Errorf("credit wallet: %w", err)
	}

	zap.L().Info("wallet transfer completed",
		zap.String("user_id", userID.String()),
		zap.Int64("amount_cents", amountCents),
	)
	return nil
}

// resolveThreshold returns max(platform minimum, stored preference), capped
// at the platform maximum, together with the platform band.
func (p *Processor) resolveThreshold(ctx context.Context, userID uuid.UUID) (threshold, minCents, maxCents int64, err error) {
	minCents, err = p.provider.MinThresholdCents(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("resolve minimum threshold: %w", err)
	}
	maxCents, err = p.provider.MaxThresholdCents(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("resolve maximum threshold: %w", err)
	}

	threshold = minCents
	pref, err := p.store.GetThresholdPreference(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, 0, 0, fmt.Errorf("load threshold preference: %w", err)
	}
	if pref != nil && pref.AutoPayoutThresholdCents > threshold {
		threshold = pref.AutoPayoutThresholdCents
	}
	if maxCents > 0 && threshold > maxCents {
		threshold = maxCents
	}
	return threshold, minCents, maxCents, nil
}

func (p *Processor) skip(userID uuid.UUID, railTag, reason, message string) *AutoPayoutOutcome {
	observability.IncrementPayoutOutcome(railTag, reason)
	zap.L().Debug("auto payout skipped",
		zap.String("user_id", userID.String()),
		zap.String("reason", reason),
	)
	return &AutoPayoutOutcome{Processed: false, Reason: reason, Message: message}
}
