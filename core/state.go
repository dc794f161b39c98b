package core

// State is a step of the login handshake
type State string

const (
	StateIdle                State = "idle"
	StateDetectingWallet     State = "detecting_wallet"
	StateEnumeratingAccounts State = "enumerating_accounts"
	StateAwaitingSelection   State = "awaiting_selection"
	StateRequestingChallenge State = "requesting_challenge"
	StateAwaitingSignature   State = "awaiting_signature"
	StateVerifying           State = "verifying"
	StateRedirecting         State = "redirecting"
	StateCompleted           State = "completed"
	StateFailed              State = "failed"
)

// Terminal reports whether no further transition may leave the state
// without an explicit retry
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Busy reports whether the handshake is waiting on a wallet or server call
func (s State) Busy() bool {
	switch s {
	case StateDetectingWallet, StateEnumeratingAccounts, StateRequestingChallenge,
		StateAwaitingSignature, StateVerifying, StateRedirecting:
		return true
	}
	return false
}

// Retryable reports whether a retry may start from the state. Retrying
// while a step is in flight would run it twice.
func (s State) Retryable() bool {
	return s == StateFailed || s == StateAwaitingSelection
}

// Transition describes a single state change of a handshake
type Transition struct {
	HandshakeID string
	From        State
	To          State
	Reason      Reason // Set only when To is StateFailed
}
