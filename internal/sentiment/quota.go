package sentiment

import (
	"errors"
	"sync/atomic"
)

// ErrQuotaExhausted is logged when the per-refresh request budget is spent.
var ErrQuotaExhausted = errors.New("sentiment request quota exhausted")

// Quota is the request budget of a single refresh. A fresh Quota is created
// for every refresh; it is never reset in place.
type Quota struct {
	max  int64
	used atomic.Int64
}

// NewQuota creates a budget of max successful classifications. max <= 0
// means no request is allowed.
func NewQuota(max int) *Quota {
	return &Quota{max: int64(max)}
}

// Allow reports whether another request may be issued.
func (q *Quota) Allow() bool {
	return q.used.Load() < q.max
}

// Record counts one successful classification.
func (q *Quota) Record() {
	q.used.Add(1)
}

// Used returns the number of successful classifications recorded.
func (q *Quota) Used() int {
	return int(q.used.Load())
}

// Remaining returns the unspent budget.
func (q *Quota) Remaining() int {
	r := q.max - q.used.Load()
	if r < 0 {
		return 0
	}
	return int(r)
}
