package tokenizer

import "github.com/golang-jwt/jwt/v5"

// ChallengeClaims are the claims an authorization server puts in a JWT challenge
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Nonce       string `json:"nonce,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

// APIClaims are the claims of the telemetry API token
type APIClaims struct {
	jwt.RegisteredClaims
}
