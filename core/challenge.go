package core

import (
	"fmt"

	"github.com/tolelom/monchain/crypto"
)

// ChallengeHash is the order-independent key for the pair (a, b).
// The identities are sorted before hashing so both players derive the same key.
func ChallengeHash(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return crypto.Hash([]byte(a + ":" + b))
}

// BattleKey is the engagement marker for a direct battle proposed as (monA, monB).
func BattleKey(monA, monB uint64) string {
	return fmt.Sprintf("battle:%d:%d", monA, monB)
}

// ChallengeKey is the engagement marker for creatures committed to a challenge.
func ChallengeKey(hash string) string {
	return "chal:" + hash
}
