package orders

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// NewOrderNumber formats ORD-YYYYMMDD-XXXXXX with six random hex digits.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(randomHex(3))
}

// NewReceipt builds the gateway receipt reference.
func NewReceipt() string {
	return "rcpt_" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
