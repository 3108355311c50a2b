package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/earnings/internal/models"
)

// MemoryStore is an in-memory implementation of the same store surface as
// Repository. It backs unit tests and local development without Postgres.
type MemoryStore struct {
	mu sync.Mutex

	Ledgers      map[uuid.UUID]*models.EarningsLedger
	Wallets      map[uuid.UUID]int64
	Accounts     map[uuid.UUID]*models.PayoutAccount
	Preferences  map[uuid.UUID]*models.PayoutThresholdPreference
	Transactions []models.PayoutTransaction
	Alerts       []models.FraudAlert
	Blacklist    map[uuid.UUID]*models.BlacklistEntry
	Charges      map[string]*models.Charge
	ChargeTimes  map[uuid.UUID][]time.Time
	UserCreated  map[uuid.UUID]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Ledgers:     make(map[uuid.UUID]*models.EarningsLedger),
		Wallets:     make(map[uuid.UUID]int64),
		Accounts:    make(map[uuid.UUID]*models.PayoutAccount),
		Preferences: make(map[uuid.UUID]*models.PayoutThresholdPreference),
		Blacklist:   make(map[uuid.UUID]*models.BlacklistEntry),
		Charges:     make(map[string]*models.Charge),
		ChargeTimes: make(map[uuid.UUID][]time.Time),
		UserCreated: make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStore) GetLedger(ctx context.Context, userID uuid.UUID) (*models.EarningsLedger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.Ledgers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *ledger
	return &clone, nil
}

func (m *MemoryStore) DebitAvailable(ctx context.Context, userID uuid.UUID, amountCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.Ledgers[userID]
	if !ok || ledger.AvailableCents < amountCents {
		return false, nil
	}
	ledger.AvailableCents -= amountCents
	ledger.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) CreditLedger(ctx context.Context, userID uuid.UUID, amountCents int64, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.Ledgers[userID]
	if !ok {
		m.Ledgers[userID] = &models.EarningsLedger{
			UserID:         userID,
			AvailableCents: amountCents,
			Currency:       currency,
			UpdatedAt:      time.Now(),
		}
		return nil
	}
	ledger.AvailableCents += amountCents
	ledger.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CreditWallet(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Wallets[userID] += amountCents
	return nil
}

func (m *MemoryStore) GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.Accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (m *MemoryStore) InsertPayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	clone := *account
	m.Accounts[account.UserID] = &clone
	return nil
}

func (m *MemoryStore) UpdatePayoutAccountStatus(ctx context.Context, userID uuid.UUID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.Accounts[userID]
	if !ok {
		return false, nil
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) DeletePayoutAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Accounts[userID]; !ok {
		return false, nil
	}
	delete(m.Accounts, userID)
	return true, nil
}

func (m *MemoryStore) GetThresholdPreference(ctx context.Context, userID uuid.UUID) (*models.PayoutThresholdPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref, ok := m.Preferences[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *pref
	return &clone, nil
}

func (m *MemoryStore) UpsertThresholdPreference(ctx context.Context, userID uuid.UUID, thresholdCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Preferences[userID] = &models.PayoutThresholdPreference{
		UserID:                   userID,
		AutoPayoutThresholdCents: thresholdCents,
		UpdatedAt:                time.Now(),
	}
	return nil
}

func (m *MemoryStore) InsertPayoutTransaction(ctx context.Context, tx *models.PayoutTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.CreatedAt = time.Now()
	m.Transactions = append(m.Transactions, *tx)
	return nil
}

func (m *MemoryStore) ListPayoutTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PayoutTransaction
	for i := len(m.Transactions) - 1; i >= 0; i-- {
		if m.Transactions[i].UserID == userID {
			out = append(out, m.Transactions[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListSweepCandidates(ctx context.Context, minAvailableCents int64, limit int32) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for userID, ledger := range m.Ledgers {
		if ledger.AvailableCents >= minAvailableCents {
			out = append(out, userID)
		}
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) SettleArrivedPayouts(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var settled int64
	for i := range m.Transactions {
		tx := &m.Transactions[i]
		if tx.Status == "pending" && !tx.EstimatedArrival.After(asOf) {
			tx.Status = "completed"
			settled++
		}
	}
	return settled, nil
}

func (m *MemoryStore) GetChargeByRef(ctx context.Context, externalRef string) (*models.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	charge, ok := m.Charges[externalRef]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *charge
	return &clone, nil
}

func (m *MemoryStore) InsertFraudAlert(ctx context.Context, alert *models.FraudAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.CreatedAt = time.Now()
	m.Alerts = append(m.Alerts, *alert)
	return nil
}

func (m *MemoryStore) CountPendingFraudAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, alert := range m.Alerts {
		if alert.UserID == userID && alert.Status == "pending" && !alert.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) InsertBlacklistEntry(ctx context.Context, entry *models.BlacklistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Blacklist[entry.UserID]; ok {
		return nil
	}
	entry.CreatedAt = time.Now()
	clone := *entry
	m.Blacklist[entry.UserID] = &clone
	return nil
}

func (m *MemoryStore) IsBlacklisted(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Blacklist[userID]
	return ok, nil
}

func (m *MemoryStore) CountChargesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, ts := range m.ChargeTimes[userID] {
		if !ts.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) AccountCreatedAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	createdAt, ok := m.UserCreated[userID]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return createdAt, nil
}
