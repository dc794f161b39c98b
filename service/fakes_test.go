package service

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

type fakeBridge struct {
	mu sync.Mutex

	available     bool
	appears       bool
	wallet        *core.WalletHandle
	walletErr     error
	accounts      []core.Account
	accountsErr   error
	signature     core.Signature
	signErr       error
	accountsGate  chan struct{}
	waitGate      chan struct{}
	probeCalls    int
	waitCalls     int
	walletCalls   int
	accountsCalls int
	signCalls     int
	signed        []core.Challenge
}

func (b *fakeBridge) IsAvailable() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeCalls++
	return b.available
}

func (b *fakeBridge) WaitForAvailability(ctx context.Context, timeout time.Duration) bool {
	b.mu.Lock()
	b.waitCalls++
	gate := b.waitGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appears
}

func (b *fakeBridge) GetWallet(ctx context.Context) (*core.WalletHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.walletCalls++
	return b.wallet, b.walletErr
}

func (b *fakeBridge) GetUserAccounts(ctx context.Context, address string) ([]core.Account, error) {
	b.mu.Lock()
	b.accountsCalls++
	gate := b.accountsGate
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return b.accounts, b.accountsErr
}

func (b *fakeBridge) Sign(ctx context.Context, challenge core.Challenge) (core.Signature, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signCalls++
	b.signed = append(b.signed, challenge)
	return b.signature, b.signErr
}

func (b *fakeBridge) calls() (probe, wait, wallet, accounts, sign int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probeCalls, b.waitCalls, b.walletCalls, b.accountsCalls, b.signCalls
}

type fakeChallenges struct {
	challenge core.Challenge
	err       error
	calls     int
	params    []core.AuthRequestParams
}

func (f *fakeChallenges) RequestChallenge(ctx context.Context, params core.AuthRequestParams) (core.Challenge, error) {
	f.calls++
	f.params = append(f.params, params)
	return f.challenge, f.err
}

type fakeVerifier struct {
	code  core.AuthorizationCode
	err   error
	calls int
	last  core.VerificationRequest
}

func (f *fakeVerifier) Verify(ctx context.Context, req core.VerificationRequest) (core.AuthorizationCode, error) {
	f.calls++
	f.last = req
	return f.code, f.err
}

type fakeNavigator struct {
	mu      sync.Mutex
	targets []string
	err     error
}

func (n *fakeNavigator) Navigate(ctx context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return n.err
}

type fakeLedger struct {
	used map[string]time.Duration
}

func (l *fakeLedger) MarkUsed(ctx context.Context, challenge core.Challenge, ttl time.Duration) error {
	if l.used == nil {
		l.used = make(map[string]time.Duration)
	}
	l.used[challenge.Value] = ttl
	return nil
}

func (l *fakeLedger) IsUsed(ctx context.Context, challenge core.Challenge) (bool, error) {
	_, ok := l.used[challenge.Value]
	return ok, nil
}

type recordingEvents struct {
	mu          sync.Mutex
	transitions []core.Transition
}

func (r *recordingEvents) PublishTransition(ctx context.Context, tr core.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
	return nil
}

type recordingReporter struct {
	reports []ports.ErrorReport
}

func (r *recordingReporter) Report(ctx context.Context, report ports.ErrorReport) {
	r.reports = append(r.reports, report)
}

func happyBridge() *fakeBridge {
	return &fakeBridge{
		available: true,
		wallet:    &core.WalletHandle{AccountAddress: "0xabc", PublicKey: "0x04pub"},
		accounts:  []core.Account{{ID: "1", Name: "Alice", Email: "a@x.com"}},
		signature: "0xsig",
	}
}
