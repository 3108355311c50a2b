// Package rail models the external payout mechanisms as variants of one
// adapter contract selected through a dispatch registry. No other package
// branches on rail identity.
package rail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transport submits a prepared transfer request to the external provider.
// The production implementation is an HTTP client per provider; tests and
// local development use MockTransport.
type Transport interface {
	Submit(ctx context.Context, req Request) (*Receipt, error)
}

// Request is the rail-specific transfer request handed to a Transport.
type Request struct {
	Rail           string
	Destination    string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	APIKey         string
	Metadata       map[string]string
}

// Receipt is the provider's acceptance of a transfer.
type Receipt struct {
	ExternalID       string
	EstimatedArrival time.Time
}

// Transfer is the adapter-level input built by the payout processor.
type Transfer struct {
	UserID      uuid.UUID
	Destination string
	AmountCents int64
	Currency    string
}

// Adapter is the shared transfer contract implemented once per rail.
type Adapter interface {
	// Rail returns the rail tag this adapter serves.
	Rail() string
	// ValidateDestination checks a stored account identifier against the
	// rail's expected encoding.
	ValidateDestination(accountIdentifier string) error
	// Transfer issues the external call under a bounded timeout. A nil
	// error means the provider accepted the transfer.
	Transfer(ctx context.Context, t Transfer) (*Receipt, error)
}

// Registry is the dispatch table keyed by rail tag.
type Registry map[string]Adapter

// NewRegistry builds a dispatch table from adapters.
func NewRegistry(adapters ...Adapter) Registry {
	reg := make(Registry, len(adapters))
	for _, a := range adapters {
		reg[a.Rail()] = a
	}
	return reg
}

// Lookup returns the adapter for a rail tag.
func (r Registry) Lookup(railTag string) (Adapter, bool) {
	adapter, ok := r[railTag]
	return adapter, ok
}

// IdempotencyKey derives the deterministic transfer token from the user, the
// amount and the UTC calendar day. A duplicate attempt within the same day
// carries the same key and is rejected by the provider.
func IdempotencyKey(userID uuid.UUID, amountCents int64, at time.Time) string {
	return fmt.Sprintf("payout:%s:%d:%s", userID, amountCents, at.UTC().Format("20060102"))
}

// addBusinessDays advances t by n week days, skipping weekends.
func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			n--
		}
	}
	return t
}
