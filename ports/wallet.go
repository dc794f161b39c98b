package ports

import (
	"context"
	"time"

	"github.com/layer-3/portal/core"
)

// WalletBridge is the handshake's view of the wallet capability
type WalletBridge interface {
	// IsAvailable probes for the wallet without blocking
	IsAvailable() bool

	// WaitForAvailability polls until the wallet appears or the timeout elapses.
	// It returns false on timeout and never fails.
	WaitForAvailability(ctx context.Context, timeout time.Duration) bool

	// GetWallet returns the active handle, or nil when no account is connected
	GetWallet(ctx context.Context) (*core.WalletHandle, error)

	// GetUserAccounts lists accounts registered for the wallet address
	GetUserAccounts(ctx context.Context, address string) ([]core.Account, error)

	// Sign asks the wallet to sign the challenge. It fails with
	// core.ErrSignatureRejected or core.ErrWalletUnavailable.
	Sign(ctx context.Context, challenge core.Challenge) (core.Signature, error)
}

// WalletProvider is a concrete wallet plugged into a bridge
type WalletProvider interface {
	Handle(ctx context.Context) (*core.WalletHandle, error)
	SignMessage(ctx context.Context, message []byte) (core.Signature, error)
}

// AccountDirectory resolves the accounts attached to a wallet address
type AccountDirectory interface {
	Accounts(ctx context.Context, address string) ([]core.Account, error)
}
