package profile

import (
	"fmt"
	"math/rand/v2"
)

const maxReferralAttempts = 10

// ReferralCode derives the first candidate from the external id when there is
// one. Later attempts, and users without an external id, get a random code.
func ReferralCode(externalID *int64, attempt int, randInt func() int) string {
	if attempt == 0 && externalID != nil {
		return fmt.Sprintf("VIP%06d", *externalID)
	}
	return fmt.Sprintf("VIP%06d", randInt())
}

func randomSuffix() int {
	return 100000 + rand.IntN(900000)
}
