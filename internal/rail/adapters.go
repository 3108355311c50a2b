package rail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marketloop/earnings/internal/domain"
	"github.com/marketloop/earnings/internal/platform"
	"github.com/shopspring/decimal"
)

// DefaultTransferTimeout bounds every external transfer call.
const DefaultTransferTimeout = 15 * time.Second

// base carries the pieces shared by every adapter: the transport, the
// credential source and the call timeout. Credentials are fetched per call
// through the platform provider, never cached.
type base struct {
	railTag     string
	transport   Transport
	provider    platform.Provider
	timeout     time.Duration
	arrivalDays int
	now         func() time.Time
}

func (b *base) Rail() string {
	return b.railTag
}

func (b *base) submit(ctx context.Context, t Transfer, metadata map[string]string) (*Receipt, error) {
	creds, err := b.provider.RailCredentials(ctx, b.railTag)
	if err != nil || creds.Empty() {
		return nil, &domain.NotConfiguredError{Rail: b.railTag}
	}

	req := Request{
		Rail:           b.railTag,
		Destination:    t.Destination,
		AmountCents:    t.AmountCents,
		Currency:       t.Currency,
		IdempotencyKey: IdempotencyKey(t.UserID, t.AmountCents, b.now()),
		APIKey:         creds.APIKey,
		Metadata:       metadata,
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	receipt, err := b.transport.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s transfer: %w", b.railTag, err)
	}
	if receipt == nil || receipt.ExternalID == "" {
		return nil, fmt.Errorf("%s transfer: malformed provider response", b.railTag)
	}
	receipt.EstimatedArrival = addBusinessDays(b.now(), b.arrivalDays)
	return receipt, nil
}

// Option customizes an adapter.
type Option func(*base)

// WithTimeout overrides the transfer call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *base) { b.timeout = d }
}

// WithClock overrides the adapter clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

func newBase(railTag string, transport Transport, provider platform.Provider, arrivalDays int, opts []Option) base {
	b := base{
		railTag:     railTag,
		transport:   transport,
		provider:    provider,
		timeout:     DefaultTransferTimeout,
		arrivalDays: arrivalDays,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// CardAcquirerAdapter pushes funds back through the card acquirer. The
// destination is a server-generated acquirer reference; funds arrive in
// about two business days.
type CardAcquirerAdapter struct {
	base
}

func NewCardAcquirerAdapter(transport Transport, provider platform.Provider, opts ...Option) *CardAcquirerAdapter {
	return &CardAcquirerAdapter{base: newBase(domain.RailCardAcquirer, transport, provider, 2, opts)}
}

func (a *CardAcquirerAdapter) ValidateDestination(accountIdentifier string) error {
	if !strings.HasPrefix(accountIdentifier, "acq_") {
		return domain.NewValidationError("account_identifier", "must be an acquirer reference")
	}
	return nil
}

func (a *CardAcquirerAdapter) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	return a.submit(ctx, t, map[string]string{
		"method": "acquirer_push",
		"amount": decimal.NewFromInt(t.AmountCents).Div(decimal.NewFromInt(100)).StringFixed(2),
	})
}

// DigitalWalletAdapter pays out to a wallet identified by email.
type DigitalWalletAdapter struct {
	base
}

func NewDigitalWalletAdapter(transport Transport, provider platform.Provider, opts ...Option) *DigitalWalletAdapter {
	return &DigitalWalletAdapter{base: newBase(domain.RailDigitalWallet, transport, provider, 3, opts)}
}

func (a *DigitalWalletAdapter) ValidateDestination(accountIdentifier string) error {
	if !strings.Contains(accountIdentifier, "@") {
		return domain.NewValidationError("account_identifier", "must be an email address")
	}
	return nil
}

func (a *DigitalWalletAdapter) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	return a.submit(ctx, t, map[string]string{
		"method":          "wallet_payout",
		"recipient_email": t.Destination,
	})
}

// BankTransferAdapter sends an ACH credit. Slowest rail: about five
// business days.
type BankTransferAdapter struct {
	base
}

func NewBankTransferAdapter(transport Transport, provider platform.Provider, opts ...Option) *BankTransferAdapter {
	return &BankTransferAdapter{base: newBase(domain.RailBankTransfer, transport, provider, 5, opts)}
}

func (a *BankTransferAdapter) ValidateDestination(accountIdentifier string) error {
	if len(strings.SplitN(accountIdentifier, "|", 3)) != 3 {
		return domain.NewValidationError("account_identifier", "must encode routing, account and holder")
	}
	return nil
}

func (a *BankTransferAdapter) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	return a.submit(ctx, t, map[string]string{
		"method": "ach_credit",
	})
}

// GlobalPayoutAdapter pays out through the cross-border payout network using
// an opaque payee identifier.
type GlobalPayoutAdapter struct {
	base
}

func NewGlobalPayoutAdapter(transport Transport, provider platform.Provider, opts ...Option) *GlobalPayoutAdapter {
	return &GlobalPayoutAdapter{base: newBase(domain.RailGlobalPayout, transport, provider, 3, opts)}
}

func (a *GlobalPayoutAdapter) ValidateDestination(accountIdentifier string) error {
	if strings.TrimSpace(accountIdentifier) == "" {
		return domain.NewValidationError("account_identifier", "payee identifier is required")
	}
	return nil
}

func (a *GlobalPayoutAdapter) Transfer(ctx context.Context, t Transfer) (*Receipt, error) {
	return a.submit(ctx, t, map[string]string{
		"method":   "global_payout",
		"payee_id": t.Destination,
	})
}
