package worker

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// ExponentialBackoff returns the delay before retry attempt+1: base*2^attempt
// capped at backoffCap, plus up to 250ms of jitter so retries spread out.
func ExponentialBackoff(attempt int) time.Duration {
	delay := backoffCap

	// 2s, 4s, 8s, ... the shift overflows past ~60 attempts, hence the bound
	if attempt < 30 {
		if d := backoffBase << uint(attempt); d < backoffCap {
			delay = d
		}
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}
