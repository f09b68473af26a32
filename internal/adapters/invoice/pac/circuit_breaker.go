package pac

import (
	"sync"
	"time"

	"facturalo/ms_cfdi_core/internal/core/fault"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// ErrBreakerOpen is returned without touching the provider while the breaker
// is open. It is transient so callers may retry after the cooldown.
var ErrBreakerOpen = fault.NewExternal("pac", "el proveedor de timbrado está temporalmente deshabilitado", true, nil)

// CircuitBreaker short-circuits calls to the stamping provider after a run of
// consecutive transient failures so a degraded PAC does not hold every
// issuance request until its timeout.
type CircuitBreaker struct {
	maxFailures int
	cooldown    time.Duration

	mu              sync.Mutex
	state           breakerState
	failureCount    int
	lastStateChange time.Time
}

// NewCircuitBreaker builds a breaker that opens after maxFailures consecutive
// failures and probes again after the cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{maxFailures: maxFailures, cooldown: cooldown}
}

// Execute runs fn under breaker protection. Only failures fn reports as
// transient count against the breaker; a provider business rejection is a
// healthy provider.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case breakerOpen:
		if time.Since(cb.lastStateChange) < cb.cooldown {
			cb.mu.Unlock()
			return ErrBreakerOpen
		}
		cb.state = breakerHalfOpen
		cb.lastStateChange = time.Now()
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && fault.IsTransient(err) {
		cb.failureCount++
		if cb.state == breakerHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = breakerOpen
			cb.lastStateChange = time.Now()
		}
		return err
	}

	cb.failureCount = 0
	if cb.state != breakerClosed {
		cb.state = breakerClosed
		cb.lastStateChange = time.Now()
	}
	return err
}
