package payout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"github.com/stretchr/testify/require"
)

func testAccountManager(t *testing.T, store *repository.MemoryStore, provider platform.Provider) *AccountManager {
	t.Helper()
	transport := rail.NewMockTransport()
	registry := rail.NewRegistry(
		rail.NewCardAcquirerAdapter(transport, provider),
		rail.NewDigitalWalletAdapter(transport, provider),
		rail.NewBankTransferAdapter(transport, provider),
		rail.NewGlobalPayoutAdapter(transport, provider),
	)
	return NewAccountManager(store, provider, registry)
}

func TestConnectCardAcquirer(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	res, err := mgr.ConnectCardAcquirer(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, domain.RailCardAcquirer, res.Account.Rail)
	require.Equal(t, domain.AccountStatusActive, res.Account.Status)
	require.True(t, strings.HasPrefix(res.Account.AccountIdentifier, "acq_"))

	// Reconnect is a no-op that keeps the original server-generated reference.
	again, err := mgr.ConnectCardAcquirer(context.Background(), userID)
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, res.Account.AccountIdentifier, again.Account.AccountIdentifier)
}

func TestConnectDigitalWallet(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	var validationErr *domain.ValidationError
	_, err := mgr.ConnectDigitalWallet(context.Background(), userID, "not-an-email")
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "email", validationErr.Field)

	res, err := mgr.ConnectDigitalWallet(context.Background(), userID, "  Creator@Example.com ")
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "creator@example.com", res.Account.AccountIdentifier)
	require.Equal(t, domain.AccountStatusActive, res.Account.Status)
}

func TestConnectBankTransfer(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	var validationErr *domain.ValidationError
	_, err := mgr.ConnectBankTransfer(context.Background(), userID, BankTransferPayload{
		RoutingNumber: "12345", AccountNumber: "123456789", HolderName: "Ada Lovelace",
	})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "routing_number", validationErr.Field)

	_, err = mgr.ConnectBankTransfer(context.Background(), userID, BankTransferPayload{
		RoutingNumber: "021000021", AccountNumber: "12", HolderName: "Ada Lovelace",
	})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "account_number", validationErr.Field)

	payload := BankTransferPayload{
		RoutingNumber: "021000021", AccountNumber: "123456789", HolderName: "Ada Lovelace",
	}
	res, err := mgr.ConnectBankTransfer(context.Background(), userID, payload)
	require.NoError(t, err)
	require.True(t, res.Created)
	// Bank accounts wait for deposit verification before going active.
	require.Equal(t, domain.AccountStatusPending, res.Account.Status)

	// Resubmitting the same form is idempotent.
	again, err := mgr.ConnectBankTransfer(context.Background(), userID, payload)
	require.NoError(t, err)
	require.False(t, again.Created)

	// A different destination on the same rail is still a conflict.
	payload.AccountNumber = "987654321"
	_, err = mgr.ConnectBankTransfer(context.Background(), userID, payload)
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestConnectRailConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	_, err := mgr.ConnectDigitalWallet(context.Background(), userID, "creator@example.com")
	require.NoError(t, err)

	_, err = mgr.ConnectGlobalPayout(context.Background(), userID, "payee_123")
	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, domain.RailGlobalPayout, conflictErr.Rail)
	require.Equal(t, domain.RailDigitalWallet, conflictErr.Existing)
}

func TestConnectRailDisabled(t *testing.T) {
	store := repository.NewMemoryStore()
	provider := testProvider()
	provider.Rails = []string{domain.RailDigitalWallet}
	mgr := testAccountManager(t, store, provider)

	_, err := mgr.ConnectGlobalPayout(context.Background(), uuid.New(), "payee_123")
	var disabledErr *domain.RailDisabledError
	require.ErrorAs(t, err, &disabledErr)
	require.Equal(t, domain.RailGlobalPayout, disabledErr.Rail)
}

func TestSetAccountStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	err := mgr.SetAccountStatus(context.Background(), userID, "frozen")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)

	err = mgr.SetAccountStatus(context.Background(), userID, domain.AccountStatusActive)
	require.ErrorIs(t, err, domain.ErrNoPayoutAccount)

	_, err = mgr.ConnectBankTransfer(context.Background(), userID, BankTransferPayload{
		RoutingNumber: "021000021", AccountNumber: "123456789", HolderName: "Ada Lovelace",
	})
	require.NoError(t, err)

	require.NoError(t, mgr.SetAccountStatus(context.Background(), userID, domain.AccountStatusActive))
	account, err := store.GetPayoutAccount(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusActive, account.Status)
}

func TestDisconnect(t *testing.T) {
	store := repository.NewMemoryStore()
	mgr := testAccountManager(t, store, testProvider())
	userID := uuid.New()

	// Disconnecting with nothing connected succeeds without a removal.
	res, err := mgr.Disconnect(context.Background(), userID)
	require.NoError(t, err)
	require.False(t, res.Removed)
	require.Nil(t, res.Previous)

	_, err = mgr.ConnectDigitalWallet(context.Background(), userID, "creator@example.com")
	require.NoError(t, err)

	res, err = mgr.Disconnect(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, res.Removed)
	require.Equal(t, domain.RailDigitalWallet, res.Previous.Rail)

	_, err = store.GetPayoutAccount(context.Background(), userID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
