// Package payout owns the payout destination aggregate and the auto-payout
// orchestration over it.
package payout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/models"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/marketloop/earnings/internal/rail"
	"github.com/marketloop/earnings/internal/repository"
	"go.uber.org/zap"
)

// AccountStore is the storage surface the account manager needs.
type AccountStore interface {
	GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error)
	InsertPayoutAccount(ctx context.Context, account *models.PayoutAccount) error
	UpdatePayoutAccountStatus(ctx context.Context, userID uuid.UUID, status string) (bool, error)
	DeletePayoutAccount(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AccountManager owns the per-user payout destination: at most one account
// per user, switching rails requires disconnecting first.
type AccountManager struct {
	store    AccountStore
	provider platform.Provider
	registry rail.Registry
}

func NewAccountManager(store AccountStore, provider platform.Provider, registry rail.Registry) *AccountManager {
	return &AccountManager{store: store, provider: provider, registry: registry}
}

// ConnectResult reports the outcome of a connect call. Created is false when
// the identical destination was already connected.
type ConnectResult struct {
	Account *models.PayoutAccount `json:"account"`
	Created bool                  `json:"created"`
}

// DisconnectResult reports the outcome of a disconnect call.
type DisconnectResult struct {
	Removed  bool                  `json:"removed"`
	Previous *models.PayoutAccount `json:"previous,omitempty"`
}

// BankTransferPayload is the user-supplied bank destination.
type BankTransferPayload struct {
	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
	HolderName    string `json:"holder_name"`
}

var (
	routingNumberRe = regexp.MustCompile(`^[0-9]{9}$`)
	accountNumberRe = regexp.MustCompile(`^[0-9]{4,17}$`)
	emailRe         = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ConnectCardAcquirer connects the card-acquirer rail. The destination is a
// server-generated acquirer reference; the caller supplies no payload.
func (m *AccountManager) ConnectCardAcquirer(ctx context.Context, userID uuid.UUID) (*ConnectResult, error) {
	identifier := "acq_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	return m.connect(ctx, userID, domain.RailCardAcquirer, identifier, true)
}

// ConnectDigitalWallet connects the digital-wallet rail to an email address.
func (m *AccountManager) ConnectDigitalWallet(ctx context.Context, userID uuid.UUID, email string) (*ConnectResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRe.MatchString(email) {
		return nil, domain.NewValidationError("email", "must be a valid email address")
	}
	return m.connect(ctx, userID, domain.RailDigitalWallet, email, true)
}

// ConnectBankTransfer connects the bank-transfer rail. The account starts in
// pending until the external deposit verification flow activates it.
func (m *AccountManager) ConnectBankTransfer(ctx context.Context, userID uuid.UUID, payload BankTransferPayload) (*ConnectResult, error) {
	payload.RoutingNumber = strings.TrimSpace(payload.RoutingNumber)
	payload.AccountNumber = strings.TrimSpace(payload.AccountNumber)
	payload.HolderName = strings.TrimSpace(payload.HolderName)

	if !routingNumberRe.MatchString(payload.RoutingNumber) {
		return nil, domain.NewValidationError("routing_number", "must be 9 digits")
	}
	if !accountNumberRe.MatchString(payload.AccountNumber) {
		return nil, domain.NewValidationError("account_number", "must be 4-17 digits")
	}
	if payload.HolderName == "" || len(payload.HolderName) > 100 {
		return nil, domain.NewValidationError("holder_name", "must be 1-100 characters")
	}

	identifier := fmt.Sprintf("%s|%s|%s", payload.RoutingNumber, payload.AccountNumber, payload.HolderName)
	return m.connect(ctx, userID, domain.RailBankTransfer, identifier, false)
}

// ConnectGlobalPayout connects the cross-border payout network using an
// opaque payee identifier issued by the network.
func (m *AccountManager) ConnectGlobalPayout(ctx context.Context, userID uuid.UUID, payeeID string) (*ConnectResult, error) {
	payeeID = strings.TrimSpace(payeeID)
	if payeeID == "" {
		return nil, domain.NewValidationError("payee_id", "payee identifier is required")
	}
	return m.connect(ctx, userID, domain.RailGlobalPayout, payeeID, true)
}

func (m *AccountManager) connect(ctx context.Context, userID uuid.UUID, railTag, identifier string, selfValidating bool) (*ConnectResult, error) {
	enabled, err := platform.RailEnabled(ctx, m.provider, railTag)
	if err != nil {
		return nil, fmt.Errorf("check enabled rails: %w", err)
	}
	if !enabled {
		return nil, &domain.RailDisabledError{Rail: railTag}
	}

	adapter, ok := m.registry.Lookup(railTag)
	if !ok {
		return nil, &domain.RailDisabledError{Rail: railTag}
	}
	if err := adapter.ValidateDestination(identifier); err != nil {
		return nil, err
	}

	existing, err := m.store.GetPayoutAccount(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load payout account: %w", err)
	}
	if existing != nil {
		if existing.Rail != railTag {
			return nil, &domain.ConflictError{Rail: railTag, Existing: existing.Rail}
		}
		// Same rail, identical destination: no-op, no duplicate record.
		// The card-acquirer identifier is server-generated, so any
		// reconnect of that rail is identical by definition.
		if railTag == domain.RailCardAcquirer || existing.AccountIdentifier == identifier {
			return &ConnectResult{Account: existing, Created: false}, nil
		}
		return nil, &domain.ConflictError{Rail: railTag, Existing: existing.Rail}
	}

	status := domain.AccountStatusPending
	if selfValidating {
		status = domain.AccountStatusActive
	}
	account := &models.PayoutAccount{
		UserID:            userID,
		Rail:              railTag,
		AccountIdentifier: identifier,
		Status:            status,
	}
	if err := m.store.InsertPayoutAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("insert payout account: %w", err)
	}

	zap.L().Info("payout account connected",
		zap.String("user_id", userID.String()),
		zap.String("rail", railTag),
		zap.String("status", status),
	)
	return &ConnectResult{Account: account, Created: true}, nil
}

// SetAccountStatus flips the destination status. Invoked by the external
// verification flow (pending -> active after bank deposit verification) and
// by risk operations (active -> restricted/disabled).
func (m *AccountManager) SetAccountStatus(ctx context.Context, userID uuid.UUID, status string) error {
	switch status {
	case domain.AccountStatusPending, domain.AccountStatusActive, domain.AccountStatusRestricted, domain.AccountStatusDisabled:
	default:
		return domain.NewValidationError("status", "unknown account status")
	}
	updated, err := m.store.UpdatePayoutAccountStatus(ctx, userID, status)
	if err != nil {
		return fmt.Errorf("update payout account status: %w", err)
	}
	if !updated {
		return domain.ErrNoPayoutAccount
	}
	return nil
}

// Disconnect removes the user's payout destination. Removing a non-existent
// account is not an error.
func (m *AccountManager) Disconnect(ctx context.Context, userID uuid.UUID) (*DisconnectResult, error) {
	existing, err := m.store.GetPayoutAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &DisconnectResult{Removed: false}, nil
		}
		return nil, fmt.Errorf("load payout account: %w", err)
	}

	removed, err := m.store.DeletePayoutAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete payout account: %w", err)
	}
	if removed {
		zap.L().Info("payout account disconnected",
			zap.String("user_id", userID.String()),
			zap.String("rail", existing.Rail),
		)
	}
	return &DisconnectResult{Removed: removed, Previous: existing}, nil
}
