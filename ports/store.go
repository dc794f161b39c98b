package ports

import (
	"context"
	"time"

	"github.com/layer-3/portal/core"
)

// ChallengeLedger records challenges that have already been sent to a wallet
// so that no challenge is signed twice
type ChallengeLedger interface {
	MarkUsed(ctx context.Context, challenge core.Challenge, ttl time.Duration) error
	IsUsed(ctx context.Context, challenge core.Challenge) (bool, error)
}
