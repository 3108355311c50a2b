package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marketloop/earnings/internal/models"
)

// Repository is the Postgres-backed store for the payout and fraud core.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetLedger loads a user's earnings ledger.
func (r *Repository) GetLedger(ctx context.Context, userID uuid.UUID) (*models.EarningsLedger, error) {
	ledger := &models.EarningsLedger{}
	query := `SELECT user_id, available_cents, currency, updated_at FROM earnings_ledgers WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&ledger.UserID, &ledger.AvailableCents, &ledger.Currency, &ledger.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return ledger, nil
}

// DebitAvailable performs the atomic compare-and-decrement on the ledger.
// It returns false when the balance is below amount; the row is untouched.
func (r *Repository) DebitAvailable(ctx context.Context, userID uuid.UUID, amountCents int64) (bool, error) {
	query := `
		UPDATE earnings_ledgers
		SET available_cents = available_cents - $1, updated_at = NOW()
		WHERE user_id = $2 AND available_cents >= $1
	`
	tag, err := r.db.Exec(ctx, query, amountCents, userID)
	if err != nil {
		return false, fmt.Errorf("failed to debit ledger: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreditLedger adds funds to the ledger, creating the row on first credit.
func (r *Repository) CreditLedger(ctx context.Context, userID uuid.UUID, amountCents int64, currency string) error {
	query := `
		INSERT INTO earnings_ledgers (user_id, available_cents, currency, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET available_cents = earnings_ledgers.available_cents + $2, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID, amountCents, currency); err != nil {
		return fmt.Errorf("failed to credit ledger: %w", err)
	}
	return nil
}

// CreditWallet adds funds to the user's internal wallet.
func (r *Repository) CreditWallet(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	query := `
		INSERT INTO wallet_accounts (user_id, balance_cents, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET balance_cents = wallet_accounts.balance_cents + $2, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID, amountCents); err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	return nil
}

// GetPayoutAccount loads the user's payout destination, if any.
func (r *Repository) GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*models.PayoutAccount, error) {
	account := &models.PayoutAccount{}
	query := `SELECT user_id, rail, account_identifier, status, created_at, updated_at FROM payout_accounts WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&account.UserID, &account.Rail, &account.AccountIdentifier, &account.Status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payout account: %w", err)
	}
	return account, nil
}

// InsertPayoutAccount creates the user's payout destination. The primary key
// on user_id enforces the single-destination invariant at the storage level.
func (r *Repository) InsertPayoutAccount(ctx context.Context, account *models.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (user_id, rail, account_identifier, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, account.UserID, account.Rail, account.AccountIdentifier, account.Status).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payout account: %w", err)
	}
	return nil
}

// UpdatePayoutAccountStatus flips the account status, e.g. pending to
// active after deposit verification. Returns false when no account exists.
func (r *Repository) UpdatePayoutAccountStatus(ctx context.Context, userID uuid.UUID, status string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE payout_accounts SET status = $1, updated_at = NOW() WHERE user_id = $2`, status, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update payout account status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeletePayoutAccount removes the user's payout destination.
// Returns false when no account existed.
func (r *Repository) DeletePayoutAccount(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM payout_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete payout account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetThresholdPreference loads the user's stored auto-payout threshold.
func (r *Repository) GetThresholdPreference(ctx context.Context, userID uuid.UUID) (*models.PayoutThresholdPreference, error) {
	pref := &models.PayoutThresholdPreference{}
	query := `SELECT user_id, auto_payout_threshold_cents, updated_at FROM payout_threshold_preferences WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&pref.UserID, &pref.AutoPayoutThresholdCents, &pref.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get threshold preference: %w", err)
	}
	return pref, nil
}

// UpsertThresholdPreference writes the user's auto-payout threshold,
// creating the row lazily on first write.
func (r *Repository) UpsertThresholdPreference(ctx context.Context, userID uuid.UUID, thresholdCents int64) error {
	query := `
		INSERT INTO payout_threshold_preferences (user_id, auto_payout_threshold_cents, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET auto_payout_threshold_cents = $2, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, userID, thresholdCents); err != nil {
		return fmt.Errorf("failed to upsert threshold preference: %w", err)
	}
	return nil
}

// InsertPayoutTransaction records a rail-accepted disbursement.
func (r *Repository) InsertPayoutTransaction(ctx context.Context, tx *models.PayoutTransaction) error {
	query := `
		INSERT INTO payout_transactions (id, user_id, rail, external_id, amount_cents, currency, status, estimated_arrival, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, tx.ID, tx.UserID, tx.Rail, tx.ExternalID, tx.AmountCents, tx.Currency, tx.Status, tx.EstimatedArrival).
		Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payout transaction: %w", err)
	}
	return nil
}

// ListPayoutTransactions returns the user's disbursement history, newest first.
func (r *Repository) ListPayoutTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.PayoutTransaction, error) {
	query := `
		SELECT id, user_id, rail, external_id, amount_cents, currency, status, estimated_arrival, created_at
		FROM payout_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payout transactions: %w", err)
	}
	defer rows.Close()

	var out []models.PayoutTransaction
	for rows.Next() {
		var tx models.PayoutTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Rail, &tx.ExternalID, &tx.AmountCents, &tx.Currency, &tx.Status, &tx.EstimatedArrival, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// ListSweepCandidates returns users whose available balance can clear the
// platform minimum. The payout sweep narrows the set further per user.
func (r *Repository) ListSweepCandidates(ctx context.Context, minAvailableCents int64, limit int32) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM earnings_ledgers
		WHERE available_cents >= $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, minAvailableCents, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep candidates: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan sweep candidate: %w", err)
		}
		out = append(out, userID)
	}
	return out, nil
}

// SettleArrivedPayouts marks pending disbursements as completed once their
// estimated arrival has passed. Returns how many rows were settled.
func (r *Repository) SettleArrivedPayouts(ctx context.Context, asOf time.Time) (int64, error) {
	query := `UPDATE payout_transactions SET status = 'completed' WHERE status = 'pending' AND estimated_arrival <= $1`
	tag, err := r.db.Exec(ctx, query, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to settle arrived payouts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetChargeByRef resolves a provider charge reference to the checkout charge.
func (r *Repository) GetChargeByRef(ctx context.Context, externalRef string) (*models.Charge, error) {
	charge := &models.Charge{}
	query := `SELECT id, user_id, external_ref, amount_cents, currency, created_at FROM charges WHERE external_ref = $1`
	err := r.db.QueryRow(ctx, query, externalRef).
		Scan(&charge.ID, &charge.UserID, &charge.ExternalRef, &charge.AmountCents, &charge.Currency, &charge.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return charge, nil
}

// InsertFraudAlert writes an alert produced by the fraud ingestor.
func (r *Repository) InsertFraudAlert(ctx context.Context, alert *models.FraudAlert) error {
	factors, err := json.Marshal(alert.RiskFactors)
	if err != nil {
		return fmt.Errorf("failed to encode risk factors: %w", err)
	}
	stats, err := json.Marshal(alert.FraudStats)
	if err != nil {
		return fmt.Errorf("failed to encode fraud stats: %w", err)
	}
	query := `
		INSERT INTO fraud_alerts (id, user_id, risk_score, risk_level, risk_factors, fraud_stats, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err = r.db.QueryRow(ctx, query, alert.ID, alert.UserID, alert.RiskScore, alert.RiskLevel, factors, stats, alert.Status).
		Scan(&alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert fraud alert: %w", err)
	}
	return nil
}

// CountPendingFraudAlertsSince counts the user's pending alerts newer than since.
func (r *Repository) CountPendingFraudAlertsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM fraud_alerts WHERE user_id = $1 AND status = 'pending' AND created_at >= $2`
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count fraud alerts: %w", err)
	}
	return count, nil
}

// InsertBlacklistEntry blocks a user. The insert is idempotent: blocking an
// already-blocked user is treated as success.
func (r *Repository) InsertBlacklistEntry(ctx context.Context, entry *models.BlacklistEntry) error {
	query := `
		INSERT INTO blacklist_entries (user_id, reason, fraud_type, blocked_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, entry.UserID, entry.Reason, entry.FraudType, entry.BlockedBy, entry.Notes); err != nil {
		return fmt.Errorf("failed to insert blacklist entry: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the user is currently blocked.
func (r *Repository) IsBlacklisted(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM blacklist_entries WHERE user_id = $1)`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists, nil
}

// CountChargesSince counts the user's checkout charges newer than since.
// Used by the risk engine's velocity factor; the charges table is owned by
// the checkout flow and read here only.
func (r *Repository) CountChargesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM charges WHERE user_id = $1 AND created_at >= $2`
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count charges: %w", err)
	}
	return count, nil
}

// AccountCreatedAt returns the user's registration time.
func (r *Repository) AccountCreatedAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	var createdAt time.Time
	query := `SELECT created_at FROM users WHERE id = $1`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get account age: %w", err)
	}
	return createdAt, nil
}
