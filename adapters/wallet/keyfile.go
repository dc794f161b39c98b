package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

// Approver decides whether a signing request may proceed
type Approver func(ctx context.Context, message []byte) bool

// KeyProvider is a software wallet holding one secp256k1 key
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	approve Approver
}

// NewKeyProvider creates a provider for key. A nil approver signs everything.
func NewKeyProvider(key *ecdsa.PrivateKey, approve Approver) *KeyProvider {
	return &KeyProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		approve: approve,
	}
}

// LoadKeyFile reads a hex encoded private key from path
func LoadKeyFile(path string, approve Approver) (*KeyProvider, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet key: %w", err)
	}
	return NewKeyProvider(key, approve), nil
}

// KeyFileProbe returns a Probe that succeeds once a readable key exists at path
func KeyFileProbe(path string, approve Approver, logger *slog.Logger) Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return func() ports.WalletProvider {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		provider, err := LoadKeyFile(path, approve)
		if err != nil {
			logger.Warn("wallet key file present but unreadable", "path", path, "error", err)
			return nil
		}
		return provider
	}
}

// Address returns the account address
func (p *KeyProvider) Address() common.Address {
	return p.address
}

// Handle returns the checksummed address and the uncompressed public key
func (p *KeyProvider) Handle(ctx context.Context) (*core.WalletHandle, error) {
	return &core.WalletHandle{
		AccountAddress: p.address.Hex(),
		PublicKey:      hexutil.Encode(crypto.FromECDSAPub(&p.key.PublicKey)),
	}, nil
}

// SignMessage produces an EIP-191 personal_sign signature (R || S || V, V in {27, 28})
func (p *KeyProvider) SignMessage(ctx context.Context, message []byte) (core.Signature, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.approve != nil && !p.approve(ctx, message) {
		return "", core.ErrSignatureRejected
	}

	sig, err := crypto.Sign(accounts.TextHash(message), p.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return core.Signature(hexutil.Encode(sig)), nil
}

var errSignatureLength = errors.New("signature must be 65 bytes")

// RecoverAddress returns the address that produced a personal_sign signature
func RecoverAddress(message []byte, signature core.Signature) (common.Address, error) {
	sig, err := hexutil.Decode(string(signature))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errSignatureLength
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over message was made by address
func VerifySignature(message []byte, signature core.Signature, address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false
	}
	return recovered == common.HexToAddress(address)
}
