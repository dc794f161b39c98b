package core

import (
	"net/url"
	"strings"
	"time"
)

// DefaultCodeChallengeMethod is used when the inbound request carries no code_challenge_method
const DefaultCodeChallengeMethod = "S256"

// Inbound query parameter names
const (
	ParamClientID            = "client_id"
	ParamRedirectURI         = "redirect_uri"
	ParamState               = "state"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
)

// AuthRequestParams are the OAuth-style parameters a handshake is bound to.
// They are parsed once from the inbound request and never modified.
type AuthRequestParams struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ParseAuthRequest reads the handshake parameters from an inbound query
func ParseAuthRequest(values url.Values) AuthRequestParams {
	method := values.Get(ParamCodeChallengeMethod)
	if method == "" {
		method = DefaultCodeChallengeMethod
	}

	return AuthRequestParams{
		ClientID:            values.Get(ParamClientID),
		RedirectURI:         values.Get(ParamRedirectURI),
		State:               values.Get(ParamState),
		CodeChallenge:       values.Get(ParamCodeChallenge),
		CodeChallengeMethod: method,
	}
}

// Validate checks that a challenge may be requested for these parameters
func (p AuthRequestParams) Validate() error {
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrMissingClientID
	}
	if strings.TrimSpace(p.RedirectURI) == "" {
		return ErrMissingRedirectURI
	}

	u, err := url.Parse(p.RedirectURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidRedirectURI
	}

	return nil
}

// WalletHandle represents the active wallet connection
type WalletHandle struct {
	AccountAddress string // Address of the account selected in the wallet
	PublicKey      string // Hex encoded public key of that account
}

// Account is one identity controlled by a wallet address
type Account struct {
	ID    string
	Name  string
	Email string
}

// Challenge is a single-use, server-issued value bound to AuthRequestParams
type Challenge struct {
	Value     string    // Opaque challenge as returned by the server
	ExpiresAt time.Time // Zero when the server did not disclose an expiry
}

// Expired reports whether the challenge is past its known expiry
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Signature is the wallet's signature over a Challenge
type Signature string

// AuthorizationCode is the short-lived code handed to the relying party
type AuthorizationCode string

// VerificationRequest carries everything the authorization server needs to
// exchange a signed challenge for an authorization code
type VerificationRequest struct {
	WalletAddress string
	PublicKey     string
	Signature     Signature
	ClientID      string
	RedirectURI   string
	State         string
	Email         string
}
