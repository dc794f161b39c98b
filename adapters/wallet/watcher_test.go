package wallet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/portal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connected(b *Bridge) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.provider != nil
}

func TestBridge_KeyFileRemoved(t *testing.T) {
	// given
	path, provider := writeKeyFile(t)
	b := NewBridge(&stubDirectory{}, WithProbe(KeyFileProbe(path, nil, nil)))

	handle, err := b.GetWallet(context.Background())
	require.NoError(t, err)
	require.NotNil(t, handle)

	// when
	require.NoError(t, os.Remove(path))
	_, err = b.Sign(context.Background(), core.Challenge{Value: "challenge-1"})

	// then
	assert.ErrorIs(t, err, core.ErrWalletUnavailable)
	assert.False(t, b.IsAvailable())
	handle, err = b.GetWallet(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, handle)

	require.NoError(t, crypto.SaveECDSA(path, provider.key))
	assert.True(t, b.IsAvailable())
}

func TestBridge_KeyFileReplaced(t *testing.T) {
	path, first := writeKeyFile(t)
	b := NewBridge(&stubDirectory{}, WithProbe(KeyFileProbe(path, nil, nil)))
	require.True(t, b.IsAvailable())

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, crypto.SaveECDSA(path, key))

	handle, err := b.GetWallet(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Address().Hex(), handle.AccountAddress)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), handle.AccountAddress)
}

func TestBridge_MissingKeyFileKeepsInjectedProvider(t *testing.T) {
	b := NewBridge(&stubDirectory{}, WithProbe(KeyFileProbe(filepath.Join(t.TempDir(), "absent.key"), nil, nil)))

	b.Inject(&stubProvider{})

	assert.True(t, b.Refresh())
	assert.True(t, b.IsAvailable())
}

func TestWatcher_Run(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "wallet.key")
	b := NewBridge(&stubDirectory{}, WithProbe(KeyFileProbe(path, nil, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWatcher(b, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	// when the key file appears
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, crypto.SaveECDSA(path, key))

	// then
	require.Eventually(t, func() bool { return connected(b) }, time.Second, 5*time.Millisecond)

	// when it is removed
	require.NoError(t, os.Remove(path))

	// then
	require.Eventually(t, func() bool { return !connected(b) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
