package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/pitabwire/vesselwizard/internal/config"
)

// ErrBreakerOpen is returned without contacting the registry while the
// breaker is open.
var ErrBreakerOpen = errors.New("registry: circuit breaker is open")

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cool-down elapses.
	BreakerOpen
	// BreakerHalfOpen lets probe calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// minRateSamples is the number of calls a window needs before its error rate
// may trip the breaker.
const minRateSamples = 10

// Breaker guards the registry against hammering while it is down. It trips
// on consecutive failures or on the error rate of a tumbling window. It is
// safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	state    BreakerState
	failures int
	probes   int
	openedAt time.Time
	now      func() time.Time

	failureThreshold int
	successThreshold int
	coolDown         time.Duration

	rateThreshold float64
	rateWindow    time.Duration
	windowStart   time.Time
	windowCalls   int
	windowErrors  int

	onChange func(BreakerState)
}

// NewBreaker creates a Breaker from cfg, filling unset thresholds with
// defaults.
func NewBreaker(cfg config.CircuitBreakerConfig) *Breaker {
	b := &Breaker{
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		coolDown:         cfg.Timeout,
		rateThreshold:    cfg.ErrorRateThreshold,
		rateWindow:       cfg.ErrorRateWindow,
		now:              time.Now,
	}
	if b.failureThreshold < 1 {
		b.failureThreshold = 5
	}
	if b.successThreshold < 1 {
		b.successThreshold = 2
	}
	if b.coolDown <= 0 {
		b.coolDown = 30 * time.Second
	}
	b.windowStart = b.now()
	return b
}

// OnStateChange registers fn to be called, with the lock held, on every
// transition.
func (b *Breaker) OnStateChange(fn func(BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Allow returns ErrBreakerOpen if the call must not be attempted.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cooledDown()
	if b.state == BreakerOpen {
		return ErrBreakerOpen
	}
	return nil
}

// Record feeds the outcome of an allowed call back into the breaker.
func (b *Breaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.count(failed)
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failureThreshold || b.rateExceeded() {
			b.trip()
		}
	case BreakerHalfOpen:
		if failed {
			b.trip()
			return
		}
		b.probes++
		if b.probes >= b.successThreshold {
			b.failures = 0
			b.probes = 0
			b.resetWindow()
			b.transition(BreakerClosed)
		}
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cooledDown()
	return b.state
}

func (b *Breaker) cooledDown() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) > b.coolDown {
		b.probes = 0
		b.transition(BreakerHalfOpen)
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.probes = 0
	b.resetWindow()
	b.transition(BreakerOpen)
}

func (b *Breaker) transition(s BreakerState) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}

func (b *Breaker) count(failed bool) {
	if b.rateWindow <= 0 {
		return
	}
	if b.now().Sub(b.windowStart) > b.rateWindow {
		b.resetWindow()
	}
	b.windowCalls++
	if failed {
		b.windowErrors++
	}
}

func (b *Breaker) resetWindow() {
	b.windowStart = b.now()
	b.windowCalls = 0
	b.windowErrors = 0
}

func (b *Breaker) rateExceeded() bool {
	if b.rateThreshold <= 0 || b.rateWindow <= 0 || b.windowCalls < minRateSamples {
		return false
	}
	return float64(b.windowErrors)/float64(b.windowCalls) >= b.rateThreshold
}
