package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketloop/earnings/internal/domain"
)

type disputeJSON struct {
	EventID     string    `json:"event_id"`
	ChargeRef   string    `json:"charge_ref"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	IPAddress   string    `json:"ip_address"`
	CountryCode string    `json:"country_code"`
	DeviceID    string    `json:"device_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type earlyFraudWarningJSON struct {
	EventID    string            `json:"event_id"`
	ChargeRef  string            `json:"charge_ref"`
	FraudType  string            `json:"fraud_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata"`
}

type reviewJSON struct {
	EventID    string            `json:"event_id"`
	ChargeRef  string            `json:"charge_ref"`
	Reason     string            `json:"reason"`
	Open       bool              `json:"open"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata"`
}

type failedChargeJSON struct {
	EventID     string            `json:"event_id"`
	ChargeRef   string            `json:"charge_ref"`
	DeclineCode string            `json:"decline_code"`
	IPAddress   string            `json:"ip_address"`
	CountryCode string            `json:"country_code"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Metadata    map[string]string `json:"metadata"`
}

// ProcessRaw decodes a JSON-encoded provider event by type and routes it to
// the matching Process method. Both ingress paths (signed webhook, broker
// queue) share this decoding.
func (i *Ingestor) ProcessRaw(ctx context.Context, eventType string, data []byte) error {
	switch eventType {
	case domain.FraudEventDispute:
		var p disputeJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode dispute: %w", err)
		}
		i.ProcessDispute(ctx, DisputeEvent{
			EventID:     p.EventID,
			ChargeRef:   p.ChargeRef,
			Reason:      p.Reason,
			Status:      p.Status,
			IPAddress:   p.IPAddress,
			CountryCode: p.CountryCode,
			DeviceID:    p.DeviceID,
			OccurredAt:  p.OccurredAt,
		})
	case domain.FraudEventEarlyFraudWarning:
		var p earlyFraudWarningJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode early fraud warning: %w", err)
		}
		i.ProcessEarlyFraudWarning(ctx, EarlyFraudWarningEvent{
			EventID:    p.EventID,
			ChargeRef:  p.ChargeRef,
			FraudType:  p.FraudType,
			OccurredAt: p.OccurredAt,
			Metadata:   p.Metadata,
		})
	case domain.FraudEventReview:
		var p reviewJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode review: %w", err)
		}
		i.ProcessReview(ctx, ReviewEvent{
			EventID:    p.EventID,
			ChargeRef:  p.ChargeRef,
			Reason:     p.Reason,
			Open:       p.Open,
			OccurredAt: p.OccurredAt,
			Metadata:   p.Metadata,
		})
	case domain.FraudEventSuspiciousDecline:
		var p failedChargeJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode failed charge: %w", err)
		}
		i.ProcessFailedCharge(ctx, FailedChargeEvent{
			EventID:     p.EventID,
			ChargeRef:   p.ChargeRef,
			DeclineCode: p.DeclineCode,
			IPAddress:   p.IPAddress,
			CountryCode: p.CountryCode,
			OccurredAt:  p.OccurredAt,
			Metadata:    p.Metadata,
		})
	default:
		return fmt.Errorf("unknown event type %q", eventType)
	}
	return nil
}
