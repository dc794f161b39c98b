package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/portal/core"
	"github.com/layer-3/portal/ports"
)

const (
	// DefaultDetectTimeout bounds how long the coordinator waits for a wallet to appear
	DefaultDetectTimeout = 5 * time.Second

	// DefaultChallengeTTL is how long a challenge stays in the ledger when its expiry is unknown
	DefaultChallengeTTL = 5 * time.Minute
)

const (
	statusLoading    = "Loading your accounts..."
	statusSelect     = "Please select an account to continue."
	statusChallenge  = "Requesting challenge..."
	statusSignature  = "Waiting for wallet signature..."
	statusVerifying  = "Verifying..."
	statusRedirect   = "Redirecting..."
	statusAccountErr = "Could not retrieve accounts for this wallet. Please try again."
)

// ErrSuperseded is returned by a step whose handshake was reset by a retry
// while the step was in flight
var ErrSuperseded = errors.New("handshake superseded by retry")

// EventType names a user-driven handshake event
type EventType string

const (
	EventStart   EventType = "start"
	EventSelect  EventType = "select"
	EventConfirm EventType = "confirm"
	EventRetry   EventType = "retry"
)

// Event is a user action delivered to the coordinator
type Event struct {
	Type      EventType
	AccountID string // Only for EventSelect
}

// Snapshot is a read-only view of a handshake
type Snapshot struct {
	HandshakeID string
	State       core.State
	Status      string
	Failure     *core.Failure
	Wallet      *core.WalletHandle
	Accounts    []core.Account
	Selected    *core.Account
	RedirectTo  string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithDetectTimeout overrides DefaultDetectTimeout
func WithDetectTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.detectTimeout = d
		}
	}
}

// WithChallengeLedger enables single-use bookkeeping of challenges
func WithChallengeLedger(ledger ports.ChallengeLedger) Option {
	return func(c *Coordinator) { c.ledger = ledger }
}

// WithEventPublisher publishes every state transition
func WithEventPublisher(events ports.EventPublisher) Option {
	return func(c *Coordinator) { c.events = events }
}

// WithErrorReporter reports every failure
func WithErrorReporter(reporter ports.ErrorReporter) Option {
	return func(c *Coordinator) { c.reporter = reporter }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHandshakeID sets the handshake identifier instead of a random one
func WithHandshakeID(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.id = id
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator drives one wallet login handshake. It is the only writer of
// the handshake state; wallet and server calls run outside the lock and
// their results are dropped if a retry happened meanwhile.
type Coordinator struct {
	id         string
	params     core.AuthRequestParams
	bridge     ports.WalletBridge
	challenges ports.ChallengeClient
	verifier   ports.VerificationClient
	finalizer  *RedirectFinalizer
	ledger     ports.ChallengeLedger
	events     ports.EventPublisher
	reporter   ports.ErrorReporter
	logger     *slog.Logger

	detectTimeout time.Duration
	challengeTTL  time.Duration
	now           func() time.Time

	mu         sync.Mutex
	state      core.State
	status     string
	failure    *core.Failure
	latched    bool
	generation uint64
	wallet     *core.WalletHandle
	accounts   []core.Account
	selected   *core.Account
	redirectTo string
}

// NewCoordinator creates a coordinator in the Idle state
func NewCoordinator(
	params core.AuthRequestParams,
	bridge ports.WalletBridge,
	challenges ports.ChallengeClient,
	verifier ports.VerificationClient,
	finalizer *RedirectFinalizer,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		id:            uuid.New().String(),
		params:        params,
		bridge:        bridge,
		challenges:    challenges,
		verifier:      verifier,
		finalizer:     finalizer,
		logger:        slog.Default(),
		detectTimeout: DefaultDetectTimeout,
		challengeTTL:  DefaultChallengeTTL,
		now:           time.Now,
		state:         core.StateIdle,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("handshake_id", c.id)

	return c
}

// ID returns the handshake identifier
func (c *Coordinator) ID() string {
	return c.id
}

// Params returns the parameters the handshake is bound to
func (c *Coordinator) Params() core.AuthRequestParams {
	return c.params
}

// Handle dispatches a user event
func (c *Coordinator) Handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventStart:
		return c.Start(ctx)
	case EventSelect:
		return c.Select(ev.AccountID)
	case EventConfirm:
		return c.Confirm(ctx)
	case EventRetry:
		return c.Retry(ctx)
	default:
		return core.ErrInvalidTransition
	}
}

// Start runs wallet detection and account discovery. It acts at most once
// until Retry; later calls return nil without touching the wallet.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.latched || c.state != core.StateIdle {
		c.mu.Unlock()
		c.logger.Debug("wallet detection already started, skipping")
		return nil
	}
	c.latched = true
	gen := c.generation
	tr := c.setStateLocked(core.StateDetectingWallet, statusLoading)
	c.mu.Unlock()
	c.publish(ctx, tr)

	return c.discover(ctx, gen)
}

func (c *Coordinator) discover(ctx context.Context, gen uint64) error {
	if !c.bridge.IsAvailable() {
		c.logger.Info("wallet provider not detected, waiting", "timeout", c.detectTimeout)
		if !c.bridge.WaitForAvailability(ctx, c.detectTimeout) {
			return c.fail(ctx, gen, core.NewFailure(core.ReasonWalletNotDetected), nil)
		}
	}

	wallet, err := c.bridge.GetWallet(ctx)
	if err != nil || wallet == nil || wallet.AccountAddress == "" {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonWalletUnreadable), err)
	}

	handle := *wallet
	if !c.advance(ctx, gen, core.StateEnumeratingAccounts, statusLoading, func() {
		c.wallet = &handle
	}) {
		return ErrSuperseded
	}
	c.logger.Info("wallet found", "address", handle.AccountAddress)

	accounts, err := c.bridge.GetUserAccounts(ctx, handle.AccountAddress)
	if err != nil {
		return c.fail(ctx, gen, &core.Failure{Reason: core.ReasonNoAccounts, Message: statusAccountErr}, err)
	}
	if len(accounts) == 0 {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonNoAccounts), nil)
	}

	list := append([]core.Account(nil), accounts...)
	if !c.advance(ctx, gen, core.StateAwaitingSelection, "", func() {
		c.accounts = list
	}) {
		return ErrSuperseded
	}
	c.logger.Info("accounts loaded", "count", len(list))

	return nil
}

// Select marks one of the enumerated accounts as the login identity
func (c *Coordinator) Select(accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != core.StateAwaitingSelection {
		return core.ErrInvalidTransition
	}

	for _, account := range c.accounts {
		if account.ID == accountID {
			selected := account
			c.selected = &selected
			c.status = ""
			return nil
		}
	}

	return core.ErrUnknownAccount
}

// Confirm runs challenge, signature, verification and redirect for the
// selected account. Without a selection it only sets a prompt.
func (c *Coordinator) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.state != core.StateAwaitingSelection {
		c.mu.Unlock()
		return core.ErrInvalidTransition
	}
	if c.selected == nil {
		c.status = statusSelect
		c.mu.Unlock()
		return core.ErrSelectionRequired
	}
	gen := c.generation
	wallet := *c.wallet
	account := *c.selected
	tr := c.setStateLocked(core.StateRequestingChallenge, statusChallenge)
	c.mu.Unlock()
	c.publish(ctx, tr)

	if err := c.params.Validate(); err != nil {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonChallengeRequestFailed), err)
	}

	challenge, err := c.challenges.RequestChallenge(ctx, c.params)
	if err == nil && challenge.Value == "" {
		err = core.ErrChallengeRequestFailed
	}
	if err == nil {
		err = c.checkChallenge(ctx, challenge)
	}
	if err != nil {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonChallengeRequestFailed), err)
	}

	if !c.advance(ctx, gen, core.StateAwaitingSignature, statusSignature, nil) {
		return ErrSuperseded
	}

	signature, err := c.bridge.Sign(ctx, challenge)
	c.markUsed(ctx, challenge)
	if err != nil || signature == "" {
		if errors.Is(err, core.ErrWalletUnavailable) {
			c.mu.Lock()
			if c.generation == gen {
				c.wallet = nil
			}
			c.mu.Unlock()
		}
		return c.fail(ctx, gen, core.NewFailure(core.ReasonSignatureRejected), err)
	}

	if !c.advance(ctx, gen, core.StateVerifying, statusVerifying, nil) {
		return ErrSuperseded
	}

	code, err := c.verifier.Verify(ctx, core.VerificationRequest{
		WalletAddress: wallet.AccountAddress,
		PublicKey:     wallet.PublicKey,
		Signature:     signature,
		ClientID:      c.params.ClientID,
		RedirectURI:   c.params.RedirectURI,
		State:         c.params.State,
		Email:         account.Email,
	})
	if err == nil && code == "" {
		err = core.ErrVerificationFailed
	}
	if err != nil {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonVerificationFailed), err)
	}

	if !c.advance(ctx, gen, core.StateRedirecting, statusRedirect, nil) {
		return ErrSuperseded
	}

	target, err := c.finalizer.Finalize(ctx, c.params.RedirectURI, code, c.params.State)
	if err != nil {
		return c.fail(ctx, gen, core.NewFailure(core.ReasonVerificationFailed), err)
	}

	if !c.advance(ctx, gen, core.StateCompleted, statusRedirect, func() {
		c.redirectTo = target
	}) {
		return ErrSuperseded
	}
	c.logger.Info("handshake completed", "account_id", account.ID)

	return nil
}

// Retry resets the handshake and runs wallet detection once more. It is
// refused with core.ErrInvalidTransition unless the state is Retryable.
func (c *Coordinator) Retry(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.Retryable() {
		c.mu.Unlock()
		return core.ErrInvalidTransition
	}
	c.generation++
	c.failure = nil
	c.wallet = nil
	c.accounts = nil
	c.selected = nil
	c.redirectTo = ""
	reset := c.setStateLocked(core.StateIdle, "")
	c.latched = true
	gen := c.generation
	tr := c.setStateLocked(core.StateDetectingWallet, statusLoading)
	c.mu.Unlock()

	c.publish(ctx, reset)
	c.publish(ctx, tr)
	c.logger.Info("handshake reset by user")

	return c.discover(ctx, gen)
}

// Snapshot returns a copy of the current handshake state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		HandshakeID: c.id,
		State:       c.state,
		Status:      c.status,
		Accounts:    append([]core.Account(nil), c.accounts...),
		RedirectTo:  c.redirectTo,
	}
	if c.failure != nil {
		failure := *c.failure
		snap.Failure = &failure
	}
	if c.wallet != nil {
		wallet := *c.wallet
		snap.Wallet = &wallet
	}
	if c.selected != nil {
		selected := *c.selected
		snap.Selected = &selected
	}

	return snap
}

// setStateLocked changes state; the caller holds c.mu
func (c *Coordinator) setStateLocked(to core.State, status string) core.Transition {
	tr := core.Transition{HandshakeID: c.id, From: c.state, To: to}
	c.state = to
	c.status = status
	return tr
}

// advance moves to the next state if the handshake was not reset since gen
func (c *Coordinator) advance(ctx context.Context, gen uint64, to core.State, status string, apply func()) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	if apply != nil {
		apply()
	}
	tr := c.setStateLocked(to, status)
	c.mu.Unlock()

	c.publish(ctx, tr)
	return true
}

func (c *Coordinator) fail(ctx context.Context, gen uint64, failure *core.Failure, cause error) error {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.failure = failure
	tr := c.setStateLocked(core.StateFailed, failure.Message)
	tr.Reason = failure.Reason
	c.mu.Unlock()

	c.logger.Warn("handshake failed", "reason", failure.Reason, "from", tr.From, "error", cause)
	c.publish(ctx, tr)
	c.report(ctx, tr, failure)

	return failure
}

func (c *Coordinator) checkChallenge(ctx context.Context, challenge core.Challenge) error {
	if challenge.Expired(c.now()) {
		return core.ErrChallengeExpired
	}
	if c.ledger == nil {
		return nil
	}

	used, err := c.ledger.IsUsed(ctx, challenge)
	if err != nil {
		return err
	}
	if used {
		return core.ErrChallengeReused
	}

	return nil
}

func (c *Coordinator) markUsed(ctx context.Context, challenge core.Challenge) {
	if c.ledger == nil {
		return
	}

	ttl := c.challengeTTL
	if !challenge.ExpiresAt.IsZero() {
		if remaining := challenge.ExpiresAt.Sub(c.now()); remaining > 0 {
			ttl = remaining
		}
	}

	if err := c.ledger.MarkUsed(ctx, challenge, ttl); err != nil {
		c.logger.Warn("failed to record used challenge", "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, tr core.Transition) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishTransition(ctx, tr); err != nil {
		c.logger.Warn("failed to publish handshake transition", "to", tr.To, "error", err)
	}
}

func (c *Coordinator) report(ctx context.Context, tr core.Transition, failure *core.Failure) {
	if c.reporter == nil {
		return
	}
	c.reporter.Report(ctx, ports.ErrorReport{
		Endpoint: "/login",
		Message:  failure.Message,
		Error:    string(failure.Reason),
		Level:    "error",
		Metadata: map[string]any{
			"handshake_id": c.id,
			"client_id":    c.params.ClientID,
			"state":        string(tr.From),
		},
	})
}
