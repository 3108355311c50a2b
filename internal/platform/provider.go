// Package platform exposes the platform-level payout configuration consumed
// by the core: payment mode, threshold bounds, enabled rails and per-rail
// credentials. Lookups go through one injected Provider; callers never read
// the environment directly and nothing is cached at module level.
package platform

import (
	"context"
	"errors"
)

// ErrUnknownSetting is returned when a provider cannot answer a lookup.
var ErrUnknownSetting = errors.New("unknown platform setting")

// Credentials holds the provider-issued secrets for one rail.
type Credentials struct {
	APIKey    string
	AccountID string
}

// Empty reports whether no usable credentials are present.
func (c Credentials) Empty() bool {
	return c.APIKey == ""
}

// Provider answers platform payout configuration lookups.
type Provider interface {
	PaymentMode(ctx context.Context) (string, error)
	MinThresholdCents(ctx context.Context) (int64, error)
	MaxThresholdCents(ctx context.Context) (int64, error)
	EnabledRails(ctx context.Context) ([]string, error)
	RailCredentials(ctx context.Context, rail string) (Credentials, error)
}

// Static is a fixed-value Provider. The environment-backed configuration
// loads into one of these at bootstrap; tests construct them directly.
type Static struct {
	Mode        string
	MinCents    int64
	MaxCents    int64
	Rails       []string
	Credentials map[string]Credentials
}

func (s *Static) PaymentMode(ctx context.Context) (string, error) {
	return s.Mode, nil
}

func (s *Static) MinThresholdCents(ctx context.Context) (int64, error) {
	return s.MinCents, nil
}

func (s *Static) MaxThresholdCents(ctx context.Context) (int64, error) {
	return s.MaxCents, nil
}

func (s *Static) EnabledRails(ctx context.Context) ([]string, error) {
	rails := make([]string, len(s.Rails))
	copy(rails, s.Rails)
	return rails, nil
}

func (s *Static) RailCredentials(ctx context.Context, rail string) (Credentials, error) {
	creds, ok := s.Credentials[rail]
	if !ok {
		return Credentials{}, ErrUnknownSetting
	}
	return creds, nil
}

// RailEnabled is a convenience check against Provider.EnabledRails.
func RailEnabled(ctx context.Context, p Provider, rail string) (bool, error) {
	rails, err := p.EnabledRails(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range rails {
		if r == rail {
			return true, nil
		}
	}
	return false, nil
}

// Chain tries each provider in order, falling through on ErrUnknownSetting.
// It replaces scattered "read from store, else read from environment" logic
// with a single injected abstraction.
type Chain []Provider

func (c Chain) PaymentMode(ctx context.Context) (string, error) {
	for _, p := range c {
		mode, err := p.PaymentMode(ctx)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		return mode, err
	}
	return "", ErrUnknownSetting
}

func (c Chain) MinThresholdCents(ctx context.Context) (int64, error) {
	for _, p := range c {
		v, err := p.MinThresholdCents(ctx)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		return v, err
	}
	return 0, ErrUnknownSetting
}

func (c Chain) MaxThresholdCents(ctx context.Context) (int64, error) {
	for _, p := range c {
		v, err := p.MaxThresholdCents(ctx)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		return v, err
	}
	return 0, ErrUnknownSetting
}

func (c Chain) EnabledRails(ctx context.Context) ([]string, error) {
	for _, p := range c {
		rails, err := p.EnabledRails(ctx)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		return rails, err
	}
	return nil, ErrUnknownSetting
}

func (c Chain) RailCredentials(ctx context.Context, rail string) (Credentials, error) {
	for _, p := range c {
		creds, err := p.RailCredentials(ctx, rail)
		if errors.Is(err, ErrUnknownSetting) {
			continue
		}
		return creds, err
	}
	return Credentials{}, ErrUnknownSetting
}
