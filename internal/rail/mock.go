package rail

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockTransport simulates the external payout providers. It enforces
// idempotency the way a real provider does: a second submit with an
// already-seen key is rejected.
type MockTransport struct {
	// FailureRate is the probability of a simulated rejection (0.0 to 1.0).
	FailureRate float64
	// Latency delays each call to simulate the network. Zero in tests.
	Latency time.Duration

	mu   sync.Mutex
	seen map[string]string // idempotency key -> external id
}

// NewMockTransport creates a MockTransport with no simulated failures.
func NewMockTransport() *MockTransport {
	return &MockTransport{seen: make(map[string]string)}
}

func (m *MockTransport) Submit(ctx context.Context, req Request) (*Receipt, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, fmt.Errorf("provider call canceled: %w", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("provider call canceled: %w", err)
	}

	if m.FailureRate > 0 && rand.Float64() < m.FailureRate {
		return nil, fmt.Errorf("provider temporarily unavailable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[req.IdempotencyKey]; dup {
		return nil, fmt.Errorf("duplicate idempotency key: %s", req.IdempotencyKey)
	}

	ref := fmt.Sprintf("%s-%s-%05d", req.Rail, time.Now().UTC().Format("20060102150405"), rand.Intn(100000))
	m.seen[req.IdempotencyKey] = ref
	return &Receipt{ExternalID: ref}, nil
}

// Submitted returns how many transfers the mock accepted.
func (m *MockTransport) Submitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
