package tokenizer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ChallengeExpiry reads the exp claim of a JWT-shaped challenge without
// verifying it. The portal cannot verify server signatures; it only needs to
// avoid handing a stale challenge to the wallet. Opaque challenges report false.
func ChallengeExpiry(challenge string) (time.Time, bool) {
	claims := &ChallengeClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(challenge, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
