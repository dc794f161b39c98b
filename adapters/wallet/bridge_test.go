package wallet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/portal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	accounts []core.Account
	err      error
	address  string
}

func (d *stubDirectory) Accounts(ctx context.Context, address string) ([]core.Account, error) {
	d.address = address
	return d.accounts, d.err
}

type stubProvider struct {
	handle *core.WalletHandle
	sig    core.Signature
	err    error
}

func (p *stubProvider) Handle(ctx context.Context) (*core.WalletHandle, error) {
	return p.handle, nil
}

func (p *stubProvider) SignMessage(ctx context.Context, message []byte) (core.Signature, error) {
	return p.sig, p.err
}

func TestBridge_Availability(t *testing.T) {
	t.Run("unavailable without provider", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})

		assert.False(t, b.IsAvailable())
		handle, err := b.GetWallet(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, handle)
	})

	t.Run("inject and eject", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})

		b.Inject(&stubProvider{})
		assert.True(t, b.IsAvailable())

		b.Eject()
		assert.False(t, b.IsAvailable())
	})

	t.Run("wait times out", func(t *testing.T) {
		b := NewBridge(&stubDirectory{}, WithPollInterval(5*time.Millisecond))

		start := time.Now()
		ok := b.WaitForAvailability(context.Background(), 30*time.Millisecond)

		assert.False(t, ok)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("wait stops with context", func(t *testing.T) {
		b := NewBridge(&stubDirectory{}, WithPollInterval(5*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.False(t, b.WaitForAvailability(ctx, time.Minute))
	})

	t.Run("provider injected while waiting", func(t *testing.T) {
		b := NewBridge(&stubDirectory{}, WithPollInterval(5*time.Millisecond))
		go func() {
			time.Sleep(20 * time.Millisecond)
			b.Inject(&stubProvider{})
		}()

		assert.True(t, b.WaitForAvailability(context.Background(), time.Second))
	})

	t.Run("key file appears while waiting", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "wallet.key")
		b := NewBridge(&stubDirectory{},
			WithPollInterval(5*time.Millisecond),
			WithProbe(KeyFileProbe(path, nil, nil)),
		)
		assert.False(t, b.IsAvailable())

		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = crypto.SaveECDSA(path, key)
		}()

		require.True(t, b.WaitForAvailability(context.Background(), time.Second))
		handle, err := b.GetWallet(context.Background())
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), handle.AccountAddress)
	})

	t.Run("garbage key file is not a wallet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "wallet.key")
		require.NoError(t, os.WriteFile(path, []byte("nope"), 0o600))
		b := NewBridge(&stubDirectory{}, WithProbe(KeyFileProbe(path, nil, nil)))

		assert.False(t, b.IsAvailable())
	})
}

func TestBridge_GetUserAccounts(t *testing.T) {
	dir := &stubDirectory{accounts: []core.Account{{ID: "1", Name: "Alice", Email: "a@x.com"}}}
	b := NewBridge(dir)

	accounts, err := b.GetUserAccounts(context.Background(), "0xabc")

	require.NoError(t, err)
	assert.Equal(t, dir.accounts, accounts)
	assert.Equal(t, "0xabc", dir.address)

	dir.err = errors.New("boom")
	_, err = b.GetUserAccounts(context.Background(), "0xabc")
	assert.Error(t, err)
}

func TestBridge_Sign(t *testing.T) {
	challenge := core.Challenge{Value: "challenge-secret"}

	t.Run("no provider", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})

		_, err := b.Sign(context.Background(), challenge)

		assert.ErrorIs(t, err, core.ErrWalletUnavailable)
	})

	t.Run("provider declines", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})
		b.Inject(&stubProvider{err: errors.New("user denied challenge-secret")})

		_, err := b.Sign(context.Background(), challenge)

		assert.ErrorIs(t, err, core.ErrSignatureRejected)
		assert.NotContains(t, err.Error(), "challenge-secret")
	})

	t.Run("provider vanished", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})
		b.Inject(&stubProvider{err: core.ErrWalletUnavailable})

		_, err := b.Sign(context.Background(), challenge)

		assert.ErrorIs(t, err, core.ErrWalletUnavailable)
	})

	t.Run("empty signature", func(t *testing.T) {
		b := NewBridge(&stubDirectory{})
		b.Inject(&stubProvider{})

		_, err := b.Sign(context.Background(), challenge)

		assert.ErrorIs(t, err, core.ErrSignatureRejected)
	})

	t.Run("signature check against connected account", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		b := NewBridge(&stubDirectory{}, WithSignatureCheck())
		b.Inject(NewKeyProvider(key, nil))

		sig, err := b.Sign(context.Background(), challenge)

		require.NoError(t, err)
		assert.True(t, VerifySignature([]byte(challenge.Value), sig, crypto.PubkeyToAddress(key.PublicKey).Hex()))
	})

	t.Run("signature from another account", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		sig, err := NewKeyProvider(other, nil).SignMessage(context.Background(), []byte(challenge.Value))
		require.NoError(t, err)

		b := NewBridge(&stubDirectory{}, WithSignatureCheck())
		b.Inject(&stubProvider{
			handle: &core.WalletHandle{AccountAddress: crypto.PubkeyToAddress(key.PublicKey).Hex()},
			sig:    sig,
		})

		_, err = b.Sign(context.Background(), challenge)

		assert.ErrorIs(t, err, core.ErrSignatureRejected)
	})
}
