package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

// DefaultPollInterval is how often WaitForAvailability re-probes
const DefaultPollInterval = 100 * time.Millisecond

// Probe looks for a wallet provider. It returns nil when none is present.
type Probe func() ports.WalletProvider

// Bridge implements ports.WalletBridge on top of a provider slot that can
// be filled at any time, either by Inject or by a Probe
type Bridge struct {
	directory    ports.AccountDirectory
	probe        Probe
	pollInterval time.Duration
	verify       bool
	logger       *slog.Logger

	mu       sync.RWMutex
	provider ports.WalletProvider
	probed   bool // provider came from probe and is ejected when it vanishes
}

// BridgeOption configures a Bridge
type BridgeOption func(*Bridge)

// WithProbe lets the bridge discover a provider on its own
func WithProbe(probe Probe) BridgeOption {
	return func(b *Bridge) { b.probe = probe }
}

// WithPollInterval overrides DefaultPollInterval
func WithPollInterval(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// WithSignatureCheck makes Sign recover the signer of every personal_sign
// signature and reject it unless it matches the connected account
func WithSignatureCheck() BridgeOption {
	return func(b *Bridge) { b.verify = true }
}

// WithBridgeLogger sets the logger
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge that resolves accounts through directory
func NewBridge(directory ports.AccountDirectory, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		directory:    directory,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Inject plugs a provider into the bridge. The probe never ejects it.
func (b *Bridge) Inject(provider ports.WalletProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.provider = provider
	b.probed = false
}

// Eject removes the current provider, as when the wallet is disabled
func (b *Bridge) Eject() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.provider = nil
	b.probed = false
}

// Refresh re-runs the probe, injecting a provider that appeared and
// ejecting a probed one that is gone. It reports whether a provider is set.
func (b *Bridge) Refresh() bool {
	if b.probe == nil {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.provider != nil
	}

	found := b.probe()

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case found != nil && (b.provider == nil || b.probed):
		if b.provider == nil {
			b.logger.Info("wallet provider detected")
		}
		b.provider = found
		b.probed = true
	case found == nil && b.probed:
		b.logger.Info("wallet provider disconnected")
		b.provider = nil
		b.probed = false
	}

	return b.provider != nil
}

// IsAvailable reports whether a provider is plugged in, probing first
func (b *Bridge) IsAvailable() bool {
	return b.current() != nil
}

// WaitForAvailability polls until a provider appears, the timeout elapses
// or ctx ends
func (b *Bridge) WaitForAvailability(ctx context.Context, timeout time.Duration) bool {
	if b.IsAvailable() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return b.IsAvailable()
		case <-ticker.C:
			if b.IsAvailable() {
				return true
			}
		}
	}
}

// GetWallet returns the connected account, or nil when there is none
func (b *Bridge) GetWallet(ctx context.Context) (*core.WalletHandle, error) {
	provider := b.current()
	if provider == nil {
		return nil, nil
	}

	handle, err := provider.Handle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet: %w", err)
	}
	return handle, nil
}

// GetUserAccounts lists the accounts registered for address
func (b *Bridge) GetUserAccounts(ctx context.Context, address string) ([]core.Account, error) {
	accounts, err := b.directory.Accounts(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get user accounts: %w", err)
	}
	return accounts, nil
}

// Sign asks the provider to sign the challenge value as a message
func (b *Bridge) Sign(ctx context.Context, challenge core.Challenge) (core.Signature, error) {
	provider := b.current()
	if provider == nil {
		return "", core.ErrWalletUnavailable
	}

	sig, err := provider.SignMessage(ctx, []byte(challenge.Value))
	if err != nil {
		if errors.Is(err, core.ErrWalletUnavailable) {
			return "", core.ErrWalletUnavailable
		}
		b.logger.Debug("wallet declined to sign", "error", err)
		return "", core.ErrSignatureRejected
	}
	if sig == "" {
		return "", core.ErrSignatureRejected
	}

	if b.verify {
		handle, err := provider.Handle(ctx)
		if err != nil || handle == nil {
			return "", core.ErrWalletUnavailable
		}
		if !VerifySignature([]byte(challenge.Value), sig, handle.AccountAddress) {
			return "", core.ErrSignatureRejected
		}
	}

	return sig, nil
}

func (b *Bridge) current() ports.WalletProvider {
	if b.probe != nil {
		b.Refresh()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.provider
}
