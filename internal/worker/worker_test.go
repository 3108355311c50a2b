package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/locker"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/payout"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"github.com/stretchr/testify/require"
)

func sweepFixture(t *testing.T) (*PayoutSweeper, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	provider := &platform.Static{
		Mode:     domain.PaymentModeAuto,
		MinCents: 5000,
		MaxCents: 100000,
		Rails:    domain.SupportedRails,
		Credentials: map[string]platform.Credentials{
			domain.RailDigitalWallet: {APIKey: "sk_wal", AccountID: "acct_1"},
		},
	}
	registry := rail.NewRegistry(rail.NewDigitalWalletAdapter(rail.NewMockTransport(), provider))
	processor := payout.NewProcessor(store, provider, registry, locker.NewMemoryLocker())
	return NewPayoutSweeper(processor, provider, store), store
}

func seedUser(store *repository.MemoryStore, balanceCents int64) uuid.UUID {
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

func TestSweepOnceDisbursesEligibleUsers(t *testing.T) {
	sweeper, store := sweepFixture(t)
	above := seedUser(store, 12000)
	below := seedUser(store, 2000)

	sweeper.SweepOnce(context.Background())

	require.Len(t, store.Transactions, 1)
	require.Equal(t, above, store.Transactions[0].UserID)
	require.Equal(t, int64(2000), store.Ledgers[below].AvailableCents)
	require.Equal(t, int64(0), store.Ledgers[above].AvailableCents)
}

func TestSettlementWorkerPromotesArrivedPayouts(t *testing.T) {
	store := repository.NewMemoryStore()
	now := time.Now().UTC()
	store.Transactions = []models.PayoutTransaction{
		{ID: uuid.New(), Status: domain.PayoutStatusPending, EstimatedArrival: now.Add(-time.Hour)},
		{ID: uuid.New(), Status: domain.PayoutStatusPending, EstimatedArrival: now.Add(48 * time.Hour)},
	}

	w := NewSettlementWorker(store)
	w.runOnce(context.Background())

	require.Equal(t, domain.PayoutStatusCompleted, store.Transactions[0].Status)
	require.Equal(t, domain.PayoutStatusPending, store.Transactions[1].Status)
}
