// Package governor implements the concurrency/rate-limit gate every
// outbound LLM or integration call passes through: a per-pool semaphore, a
// sliding-window rate limiter, and an exponential-backoff retry loop
// classified by a caller-supplied transient-error predicate.
//
// Grounded directly on original_source/concurrency_manager.py's
// ConcurrencyManager: the same two pools ("llm" here, "openai" there;
// "integration" here, "zapier" there) with the same numeric defaults, the
// same check-rate-limits-before-acquiring-semaphore ordering, and the same
// prune-then-compare sliding window.
package governor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/livia-chatops/livia/internal/config"
)

// Stats mirrors concurrency_manager.py's ConcurrencyStats for observability.
type Stats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RetriedRequests    int64
	ConcurrentRequests int64
}

type pool struct {
	cfg       config.GovernorPoolConfig
	sem       chan struct{}
	mu        sync.Mutex
	minuteLog []time.Time
	hourLog   []time.Time
	stats     Stats
}

// Governor holds one pool per name ("llm", "integration").
type Governor struct {
	pools map[string]*pool
}

func New(cfg map[string]config.GovernorPoolConfig) *Governor {
	g := &Governor{pools: make(map[string]*pool, len(cfg))}
	for name, pc := range cfg {
		g.pools[name] = &pool{
			cfg: pc,
			sem: make(chan struct{}, pc.MaxConcurrent),
		}
	}
	return g
}

func (g *Governor) Stats(poolName string) (Stats, bool) {
	p, ok := g.pools[poolName]
	if !ok {
		return Stats{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats, true
}

// IsTransient classifies whether err should trigger a retry. Supplied by the
// caller since it is provider-specific (HTTP timeouts, rate-limit responses,
// connection resets).
type IsTransient func(error) bool

// Execute runs op under poolName's concurrency and rate-limit gate, retrying
// up to the pool's configured attempt count with exponential backoff between
// min/max wait seconds, exactly as concurrency_manager.py's
// execute_with_concurrency_control does.
func (g *Governor) Execute(ctx context.Context, poolName string, isTransient IsTransient, op func(context.Context) error) error {
	p, ok := g.pools[poolName]
	if !ok {
		return fmt.Errorf("governor: unknown pool %q", poolName)
	}

	if err := p.waitForRateBudget(ctx); err != nil {
		return err
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	p.stats.ConcurrentRequests++
	p.mu.Unlock()
	defer func() {
		<-p.sem
		p.mu.Lock()
		p.stats.ConcurrentRequests--
		p.mu.Unlock()
	}()

	var lastErr error
	attempts := p.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := backoffDuration(p.cfg.MinWaitSeconds, p.cfg.MaxWaitSeconds, attempt)
			p.mu.Lock()
			p.stats.RetriedRequests++
			p.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op(ctx)
		p.mu.Lock()
		p.stats.TotalRequests++
		p.mu.Unlock()

		if err == nil {
			p.mu.Lock()
			p.stats.SuccessfulRequests++
			p.mu.Unlock()
			p.trackRequest()
			return nil
		}

		lastErr = err
		if isTransient == nil || !isTransient(err) {
			break
		}
	}

	p.mu.Lock()
	p.stats.FailedRequests++
	p.mu.Unlock()
	return lastErr
}

// backoffDuration mirrors tenacity's wait_exponential(multiplier=1, min, max):
// 2^(attempt-1) seconds, clamped to [min, max].
func backoffDuration(minSeconds, maxSeconds float64, attempt int) time.Duration {
	secs := math.Pow(2, float64(attempt-1))
	if secs < minSeconds {
		secs = minSeconds
	}
	if secs > maxSeconds {
		secs = maxSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// waitForRateBudget prunes stale entries and sleeps out any minute/hour
// overage, exactly as _check_rate_limits does.
func (p *pool) waitForRateBudget(ctx context.Context) error {
	for {
		p.mu.Lock()
		now := time.Now()
		p.minuteLog = pruneBefore(p.minuteLog, now.Add(-time.Minute))
		p.hourLog = pruneBefore(p.hourLog, now.Add(-time.Hour))

		var wait time.Duration
		if len(p.minuteLog) >= p.cfg.RequestsPerMinute && p.cfg.RequestsPerMinute > 0 {
			wait = time.Minute - now.Sub(p.minuteLog[0])
		} else if len(p.hourLog) >= p.cfg.RequestsPerHour && p.cfg.RequestsPerHour > 0 {
			wait = time.Hour - now.Sub(p.hourLog[0])
		}
		p.mu.Unlock()

		if wait <= 0 {
			return nil
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *pool) trackRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.minuteLog = append(p.minuteLog, now)
	p.hourLog = append(p.hourLog, now)
}

func pruneBefore(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && log[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	return append([]time.Time(nil), log[i:]...)
}
