package collector

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultRateWindow           = 30 * time.Second
	defaultMaxRequestsPerWindow = 6
)

// RateLimiter counts requests per client in fixed time windows.
type RateLimiter struct {
	window            time.Duration
	maxPerWindow      int
	countersMutex     sync.Mutex
	countersByBucket  map[string]int
	currentBucketTime int64
}

// NewRateLimiter allows maxPerWindow requests per client and window. A non-positive
// maxPerWindow disables limiting.
func NewRateLimiter(window time.Duration, maxPerWindow int) *RateLimiter {
	if window < time.Second {
		window = defaultRateWindow
	}
	return &RateLimiter{
		window:           window,
		maxPerWindow:     maxPerWindow,
		countersByBucket: make(map[string]int),
	}
}

// Limited records one request from client at now and reports whether it exceeds the limit.
func (limiter *RateLimiter) Limited(client string, now time.Time) bool {
	if limiter.maxPerWindow <= 0 {
		return false
	}
	bucket := now.Unix() / int64(limiter.window.Seconds())
	key := fmt.Sprintf("%s:%d", client, bucket)

	limiter.countersMutex.Lock()
	defer limiter.countersMutex.Unlock()

	// counters of past windows are never read again
	if bucket != limiter.currentBucketTime {
		limiter.countersByBucket = make(map[string]int)
		limiter.currentBucketTime = bucket
	}
	limiter.countersByBucket[key]++
	return limiter.countersByBucket[key] > limiter.maxPerWindow
}
