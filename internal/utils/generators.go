package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateSessionID creates a payment-session identifier used when the
// provider runs in sandbox mode.
func GenerateSessionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("sess_%d_%06d", timestamp, randomNum.Int64())
}
