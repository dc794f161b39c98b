package ports

import (
	"context"

	"github.com/layer-3/portal/core"
)

// ChallengeClient requests single-use challenges from the authorization server
type ChallengeClient interface {
	RequestChallenge(ctx context.Context, params core.AuthRequestParams) (core.Challenge, error)
}

// VerificationClient exchanges a signed challenge for an authorization code
type VerificationClient interface {
	Verify(ctx context.Context, req core.VerificationRequest) (core.AuthorizationCode, error)
}

// Navigator performs the final redirect to the relying party
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}
