package payout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/locker"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"github.com/stretchr/testify/require"
)

func testProvider() *platform.Static {
	return &platform.Static{
		Mode:     domain.PaymentModeAuto,
		MinCents: 5000,
		MaxCents: 100000,
		Rails:    domain.SupportedRails,
		Credentials: map[string]platform.Credentials{
			domain.RailCardAcquirer:  {APIKey: "sk_acq", AccountID: "acct_1"},
			domain.RailDigitalWallet: {APIKey: "sk_wal", AccountID: "acct_2"},
			domain.RailBankTransfer:  {APIKey: "sk_ach", AccountID: "acct_3"},
			domain.RailGlobalPayout:  {APIKey: "sk_glb", AccountID: "acct_4"},
		},
	}
}

func testProcessor(t *testing.T, store ProcessorStore, provider platform.Provider) (*Processor, *rail.MockTransport) {
	t.Helper()
	transport := rail.NewMockTransport()
	registry := rail.NewRegistry(
		rail.NewCardAcquirerAdapter(transport, provider),
		rail.NewDigitalWalletAdapter(transport, provider),
		rail.NewBankTransferAdapter(transport, provider),
		rail.NewGlobalPayoutAdapter(transport, provider),
	)
	return NewProcessor(store, provider, registry, locker.NewMemoryLocker()), transport
}

func seedWalletUser(store *repository.MemoryStore, balanceCents int64) uuid.UUID {
	userID := uuid.New()
	store.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: balanceCents, Currency: "USD"}
	store.Accounts[userID] = &models.PayoutAccount{
		UserID:            userID,
		Rail:              domain.RailDigitalWallet,
		AccountIdentifier: "creator@example.com",
		Status:            domain.AccountStatusActive,
	}
	return userID
}

func TestProcessAutoPayoutDisburses(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 15000)
	proc, transport := testProcessor(t, store, testProvider())

	outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, outcome.Processed)
	require.Equal(t, int64(15000), outcome.AvailableCents)
	require.NotNil(t, outcome.Transaction)
	require.Equal(t, domain.PayoutStatusPending, outcome.Transaction.Status)
	require.Equal(t, domain.RailDigitalWallet, outcome.Transaction.Rail)
	require.NotEmpty(t, outcome.Transaction.ExternalID)
	require.Equal(t, 1, transport.Submitted())

	// The full available balance was debited and the record persisted.
	ledger, err := store.GetLedger(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(0), ledger.AvailableCents)
	require.Len(t, store.Transactions, 1)
	require.Equal(t, int64(15000), store.Transactions[0].AmountCents)
}

func TestProcessAutoPayoutBelowThreshold(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 2500)
	proc, transport := testProcessor(t, store, testProvider())

	outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
	require.NoError(t, err)
	require.False(t, outcome.Processed)
	require.Equal(t, ReasonBelowThreshold, outcome.Reason)
	require.Contains(t, outcome.Message, "25.00 USD")
	require.Contains(t, outcome.Message, "50.00 USD")
	require.Equal(t, int64(2500), outcome.AvailableCents)
	require.Equal(t, int64(5000), outcome.ThresholdCents)
	require.Equal(t, 0, transport.Submitted())

	ledger, err := store.GetLedger(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(2500), ledger.AvailableCents)
}

func TestProcessAutoPayoutEligibilityGates(t *testing.T) {
	t.Run("manual mode", func(t *testing.T) {
		store := repository.NewMemoryStore()
		userID := seedWalletUser(store, 15000)
		provider := testProvider()
		provider.Mode = domain.PaymentModeManual
		proc, _ := testProcessor(t, store, provider)

		outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
		require.NoError(t, err)
		require.False(t, outcome.Processed)
		require.Equal(t, ReasonManualMode, outcome.Reason)
	})

	t.Run("blacklisted", func(t *testing.T) {
		store := repository.NewMemoryStore()
		userID := seedWalletUser(store, 15000)
		store.Blacklist[userID] = &models.BlacklistEntry{UserID: userID}
		proc, transport := testProcessor(t, store, testProvider())

		outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
		require.NoError(t, err)
		require.False(t, outcome.Processed)
		require.Equal(t, ReasonBlacklisted, outcome.Reason)
		require.Equal(t, 0, transport.Submitted())
	})

	t.Run("no account", func(t *testing.T) {
		store := repository.NewMemoryStore()
		userID := uuid.New()
		store.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: 15000, Currency: "USD"}
		proc, _ := testProcessor(t, store, testProvider())

		outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, ReasonNoPayoutAccount, outcome.Reason)
	})

	t.Run("account not active", func(t *testing.T) {
		store := repository.NewMemoryStore()
		userID := seedWalletUser(store, 15000)
		store.Accounts[userID].Status = domain.AccountStatusPending
		proc, _ := testProcessor(t, store, testProvider())

		outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, ReasonAccountNotActive, outcome.Reason)
	})

	t.Run("unsupported rail", func(t *testing.T) {
		store := repository.NewMemoryStore()
		userID := seedWalletUser(store, 15000)
		store.Accounts[userID].Rail = "carrier_pigeon"
		proc, _ := testProcessor(t, store, testProvider())

		outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, ReasonUnsupportedRail, outcome.Reason)
	})
}

type heldLocker struct{}

func (heldLocker) Acquire(ctx context.Context, userID uuid.UUID) (func(), bool, error) {
	return func() {}, false, nil
}

func TestProcessAutoPayoutLockHeld(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 15000)
	provider := testProvider()
	transport := rail.NewMockTransport()
	registry := rail.NewRegistry(rail.NewDigitalWalletAdapter(transport, provider))
	proc := NewProcessor(store, provider, registry, heldLocker{})

	outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
	require.NoError(t, err)
	require.False(t, outcome.Processed)
	require.Equal(t, ReasonInProgress, outcome.Reason)
	require.Equal(t, 0, transport.Submitted())
}

func TestProcessAutoPayoutSameDayDuplicateRejected(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 15000)
	proc, transport := testProcessor(t, store, testProvider())

	first, err := proc.ProcessAutoPayout(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, first.Processed)

	// Refill to the same amount: the idempotency key repeats within the
	// day and the provider rejects the duplicate before any debit.
	require.NoError(t, store.CreditLedger(context.Background(), userID, 15000, "USD"))

	_, err = proc.ProcessAutoPayout(context.Background(), userID)
	var transferErr *domain.ExternalTransferError
	require.ErrorAs(t, err, &transferErr)
	require.Equal(t, domain.RailDigitalWallet, transferErr.Rail)
	require.Equal(t, 1, transport.Submitted())

	ledger, err := store.GetLedger(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(15000), ledger.AvailableCents)
	require.Len(t, store.Transactions, 1)
}

func TestUpdateAutoPayoutThreshold(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 8000)
	proc, _ := testProcessor(t, store, testProvider())

	var validationErr *domain.ValidationError
	_, err := proc.UpdateAutoPayoutThreshold(context.Background(), userID, 1000)
	require.ErrorAs(t, err, &validationErr)
	_, err = proc.UpdateAutoPayoutThreshold(context.Background(), userID, 250000)
	require.ErrorAs(t, err, &validationErr)

	status, err := proc.UpdateAutoPayoutThreshold(context.Background(), userID, 10000)
	require.NoError(t, err)
	require.Equal(t, int64(10000), status.ThresholdCents)
	require.Equal(t, int64(5000), status.MinimumCents)
	require.Equal(t, int64(100000), status.MaximumCents)
	require.False(t, status.Eligible) // 80.00 < 100.00 threshold

	outcome, err := proc.ProcessAutoPayout(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, ReasonBelowThreshold, outcome.Reason)
}

func TestAutoPayoutStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := seedWalletUser(store, 15000)
	proc, _ := testProcessor(t, store, testProvider())

	status, err := proc.AutoPayoutStatus(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentModeAuto, status.Mode)
	require.NotNil(t, status.Account)
	require.Equal(t, int64(15000), status.AvailableCents)
	require.Equal(t, int64(5000), status.ThresholdCents)
	require.True(t, status.Eligible)
	require.False(t, status.Blacklisted)
}

func TestTransferToWallet(t *testing.T) {
	store := repository.NewMemoryStore()
	userID := uuid.New()
	store.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: 6000, Currency: "USD"}
	proc, _ := testProcessor(t, store, testProvider())

	require.NoError(t, proc.TransferToWallet(context.Background(), userID, 4000))
	require.Equal(t, int64(4000), store.Wallets[userID])
	ledger, err := store.GetLedger(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(2000), ledger.AvailableCents)

	err = proc.TransferToWallet(context.Background(), userID, 5000)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var validationErr *domain.ValidationError
	err = proc.TransferToWallet(context.Background(), userID, 0)
	require.ErrorAs(t, err, &validationErr)
}

type walletFailStore struct {
	*repository.MemoryStore
}

func (s walletFailStore) CreditWallet(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	return fmt.Errorf("wallet service unavailable")
}

func TestTransferToWalletCompensatesOnFailure(t *testing.T) {
	mem := repository.NewMemoryStore()
	userID := uuid.New()
	mem.Ledgers[userID] = &models.EarningsLedger{UserID: userID, AvailableCents: 6000, Currency: "USD"}
	proc, _ := testProcessor(t, walletFailStore{mem}, testProvider())

	err := proc.TransferToWallet(context.Background(), userID, 4000)
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrInsufficientFunds))

	// The debit was rolled back.
	ledger, err := mem.GetLedger(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(6000), ledger.AvailableCents)
	require.Equal(t, int64(0), mem.Wallets[userID])
}
