package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Bucket throttles each key with its own token bucket of burst tokens that
// refills one token per interval. Keys unseen for idle are dropped.
type Bucket struct {
	burst int
	limit rate.Limit
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	keys      map[string]*keyBucket
	lastSweep time.Time
}

type keyBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewBucket(burst int, interval, idle time.Duration) (*Bucket, error) {
	if burst < 1 || interval <= 0 {
		return nil, ErrBadLimit
	}

	b := Bucket{
		burst: burst,
		limit: rate.Every(interval),
		idle:  idle,
		now:   time.Now,
		keys:  make(map[string]*keyBucket),
	}
	return &b, nil
}

// Take spends a token for key. When none is left it reports how long until
// the next one, and nothing is spent.
func (b *Bucket) Take(key string) (ok bool, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.sweep(now)

	kb, found := b.keys[key]
	if !found {
		kb = &keyBucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.keys[key] = kb
	}
	kb.lastSeen = now

	res := kb.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep runs at most once per idle period.
func (b *Bucket) sweep(now time.Time) {
	if b.idle <= 0 || now.Sub(b.lastSweep) < b.idle {
		return
	}
	b.lastSweep = now

	for k, kb := range b.keys {
		if now.Sub(kb.lastSeen) > b.idle {
			delete(b.keys, k)
		}
	}
}
