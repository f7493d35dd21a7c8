// package repositories provides persistence layer implementations for session records.
//
// Each store implements session.Store for a specific backend.
package repositories

import "time"

// toUnix converts t to unix seconds, mapping the zero time to 0.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// fromUnix is the inverse of [toUnix].
func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
