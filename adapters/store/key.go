package store

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/portal/core"
)

// challengeKey is the Keccak-256 of the challenge so raw values are never stored
func challengeKey(challenge core.Challenge) string {
	return crypto.Keccak256Hash([]byte(challenge.Value)).Hex()
}
