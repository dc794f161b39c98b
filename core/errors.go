package core

import "errors"

var (
	ErrWalletNotDetected      = errors.New("wallet not detected")
	ErrWalletUnreadable       = errors.New("wallet unreadable")
	ErrNoAccounts             = errors.New("no accounts for wallet")
	ErrChallengeRequestFailed = errors.New("challenge request failed")
	ErrSignatureRejected      = errors.New("signature rejected")
	ErrVerificationFailed     = errors.New("verification failed")

	ErrWalletUnavailable  = errors.New("wallet unavailable")
	ErrMissingClientID    = errors.New("client_id is required")
	ErrMissingRedirectURI = errors.New("redirect_uri is required")
	ErrInvalidRedirectURI = errors.New("redirect_uri must be an absolute URL")
	ErrChallengeReused    = errors.New("challenge already used")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrSelectionRequired  = errors.New("account selection required")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrInvalidTransition  = errors.New("event not allowed in current state")
)

// Reason identifies why a handshake failed
type Reason string

const (
	ReasonWalletNotDetected      Reason = "WalletNotDetected"
	ReasonWalletUnreadable       Reason = "WalletUnreadable"
	ReasonNoAccounts             Reason = "NoAccounts"
	ReasonChallengeRequestFailed Reason = "ChallengeRequestFailed"
	ReasonSignatureRejected      Reason = "SignatureRejected"
	ReasonVerificationFailed     Reason = "VerificationFailed"
)

var reasonMessages = map[Reason]string{
	ReasonWalletNotDetected:      "Wallet extension not detected. Please install or enable the wallet extension.",
	ReasonWalletUnreadable:       "Could not connect to wallet. Please ensure the wallet extension is enabled and an account is selected.",
	ReasonNoAccounts:             "No active accounts found for this wallet address. Please register an account first.",
	ReasonChallengeRequestFailed: "Could not start authentication. Please try again.",
	ReasonSignatureRejected:      "Signature rejected or wallet unavailable.",
	ReasonVerificationFailed:     "Authentication failed. Please try again.",
}

var reasonErrors = map[Reason]error{
	ReasonWalletNotDetected:      ErrWalletNotDetected,
	ReasonWalletUnreadable:       ErrWalletUnreadable,
	ReasonNoAccounts:             ErrNoAccounts,
	ReasonChallengeRequestFailed: ErrChallengeRequestFailed,
	ReasonSignatureRejected:      ErrSignatureRejected,
	ReasonVerificationFailed:     ErrVerificationFailed,
}

// Message returns the user-readable text for the reason
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return "Authentication failed. Please try again."
}

// Err returns the sentinel error for the reason
func (r Reason) Err() error {
	if err, ok := reasonErrors[r]; ok {
		return err
	}
	return ErrVerificationFailed
}

// Failure is the terminal outcome of a failed handshake. Its text is safe to
// show to users and never contains challenge or signature material.
type Failure struct {
	Reason  Reason
	Message string
}

// NewFailure creates a failure carrying the reason's standard message
func NewFailure(reason Reason) *Failure {
	return &Failure{Reason: reason, Message: reason.Message()}
}

func (f *Failure) Error() string {
	return string(f.Reason) + ": " + f.Message
}

// Unwrap allows errors.Is against the taxonomy sentinels
func (f *Failure) Unwrap() error {
	return f.Reason.Err()
}
