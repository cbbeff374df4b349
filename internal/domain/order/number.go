package order

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// numberPrefix prefixes every generated order number.
const numberPrefix = "ORD"

// GenerateNumber builds an order number from the millisecond timestamp plus a
// 3-digit random suffix, e.g. ORD1756712345678042. Uniqueness is
// probabilistic; the orders table enforces it with a unique constraint and
// callers retry on ErrDuplicateNumber.
func GenerateNumber(now time.Time) string {
	return fmt.Sprintf("%s%d%03d", numberPrefix, now.UnixMilli(), rand.IntN(1000))
}
