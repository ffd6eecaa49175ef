package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means the circuit is closed (normal operation, calls allowed)
	StateClosed CircuitState = iota

	// StateOpen means the circuit is open (too many failures, calls blocked)
	StateOpen

	// StateHalfOpen means the circuit is testing if the operation has recovered
	StateHalfOpen
)

// String returns a human-readable representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	// the circuit.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in Half-Open
	// state required to close the circuit again.
	SuccessThreshold int

	// RecoveryTimeout is the duration to wait before transitioning from Open
	// to Half-Open. During this time, all calls for the operation are blocked.
	RecoveryTimeout time.Duration

	// HalfOpenMaxProbes is the number of calls allowed in Half-Open state to
	// test recovery.
	HalfOpenMaxProbes int

	// MinRequests and FailureRateThreshold enable windowed rate tracking:
	// once at least MinRequests calls were observed in the current window,
	// a failure rate at or above the threshold opens the circuit even
	// without FailureThreshold consecutive failures. A zero threshold
	// disables windowed tracking.
	MinRequests          int
	FailureRateThreshold float64
	WindowDuration       time.Duration
}

// DefaultBreakerConfig returns a configuration with sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:     5,
		SuccessThreshold:     2,
		RecoveryTimeout:      30 * time.Second,
		HalfOpenMaxProbes:    1,
		MinRequests:          10,
		FailureRateThreshold: 0,
		WindowDuration:       1 * time.Minute,
	}
}

// operationCircuit tracks the circuit breaker state for a single operation.
type operationCircuit struct {
	// operation is the key this circuit protects, e.g. "engine.event_generation"
	operation string

	// state is the current circuit state
	state CircuitState

	// failures counts consecutive failures in Closed state
	failures int

	// openedAt records when the circuit was opened
	openedAt time.Time

	// halfOpenProbes counts calls admitted in Half-Open state
	halfOpenProbes int

	// halfOpenSuccesses counts consecutive successes in Half-Open state
	halfOpenSuccesses int

	// lastFailure records the most recent failure time
	lastFailure time.Time

	// windowStart, windowRequests, and windowFailures track the rolling
	// failure-rate window in Closed state
	windowStart    time.Time
	windowRequests int
	windowFailures int
}

// CircuitBreaker manages circuit breakers for multiple operations.
//
// Each operation key has its own circuit with three states:
//
//   - Closed: Normal operation, calls allowed, failures counted
//   - Open: Too many failures, all calls blocked, waiting for timeout
//   - Half-Open: Testing recovery, limited probe calls allowed
//
// State transitions:
//   - Closed -> Open: After N consecutive failures (FailureThreshold), or a
//     windowed failure rate at or above FailureRateThreshold
//   - Open -> Half-Open: After timeout (RecoveryTimeout)
//   - Half-Open -> Closed: After SuccessThreshold consecutive probe successes
//   - Half-Open -> Open: If any probe fails
//
// Thread-safe: All methods can be called concurrently.
type CircuitBreaker struct {
	config   BreakerConfig
	mu       sync.RWMutex
	circuits map[string]*operationCircuit
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config:   config,
		circuits: make(map[string]*operationCircuit),
	}
}

// Allow checks if a call for the operation is allowed.
//
// Returns nil if the call should proceed, or a CircuitOpenError if the
// circuit is open. This method should be called before running the operation.
func (cb *CircuitBreaker) Allow(operation string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	circuit := cb.getOrCreateCircuit(operation)

	switch circuit.state {
	case StateClosed:
		// Normal operation - allow call
		return nil

	case StateOpen:
		// Check if we should transition to Half-Open
		if time.Since(circuit.openedAt) >= cb.config.RecoveryTimeout {
			circuit.state = StateHalfOpen
			circuit.halfOpenProbes = 0
			circuit.halfOpenSuccesses = 0
			circuit.halfOpenProbes++
			return nil
		}
		// Still in timeout period - reject call
		return &CircuitOpenError{
			Operation:  operation,
			OpenedAt:   circuit.openedAt,
			RetryAfter: circuit.openedAt.Add(cb.config.RecoveryTimeout),
		}

	case StateHalfOpen:
		// Allow limited probe calls in Half-Open state
		if circuit.halfOpenProbes < cb.config.HalfOpenMaxProbes {
			circuit.halfOpenProbes++
			return nil
		}
		// Already at max half-open probes - reject
		return &CircuitOpenError{
			Operation:  operation,
			OpenedAt:   circuit.openedAt,
			RetryAfter: circuit.openedAt.Add(cb.config.RecoveryTimeout),
		}

	default:
		// Unknown state - allow call (fail-safe)
		return nil
	}
}

// RecordSuccess records a successful call for the operation.
//
// This resets the failure counter in Closed state. In Half-Open state the
// circuit closes once SuccessThreshold consecutive probes have succeeded.
func (cb *CircuitBreaker) RecordSuccess(operation string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	circuit := cb.getOrCreateCircuit(operation)

	switch circuit.state {
	case StateClosed:
		circuit.failures = 0
		cb.recordWindow(circuit, false)

	case StateHalfOpen:
		circuit.halfOpenSuccesses++
		if circuit.halfOpenSuccesses >= cb.config.SuccessThreshold {
			cb.close(circuit)
		} else {
			// Admit the next probe
			circuit.halfOpenProbes = 0
		}

	case StateOpen:
		// Success in Open state shouldn't happen (calls are blocked)
		// But if it does, treat it like recovery
		cb.close(circuit)
	}
}

// RecordFailure records a failed call for the operation.
//
// This increments the failure counter and may open the circuit if the
// consecutive threshold or the windowed failure rate is reached.
func (cb *CircuitBreaker) RecordFailure(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	circuit := cb.getOrCreateCircuit(operation)
	circuit.lastFailure = time.Now()

	switch circuit.state {
	case StateClosed:
		circuit.failures++
		cb.recordWindow(circuit, true)
		if circuit.failures >= cb.config.FailureThreshold || cb.windowTripped(circuit) {
			circuit.state = StateOpen
			circuit.openedAt = time.Now()
		}

	case StateHalfOpen:
		// Failure in Half-Open - reopen the circuit
		circuit.state = StateOpen
		circuit.openedAt = time.Now()
		circuit.failures = cb.config.FailureThreshold // Already at threshold
		circuit.halfOpenProbes = 0
		circuit.halfOpenSuccesses = 0

	case StateOpen:
		// Already open - record failure but don't increment counter
	}
}

// Do runs fn for the operation under circuit breaker protection. A blocked
// call returns a CIRCUIT_OPEN error without running fn; otherwise the
// outcome of fn is recorded and returned unchanged.
func (cb *CircuitBreaker) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	if err := cb.Allow(operation); err != nil {
		var coe *CircuitOpenError
		if errors.As(err, &coe) {
			return types.NewError(types.CIRCUIT_OPEN,
				fmt.Sprintf("operation %s blocked until %s", operation, coe.RetryAfter.Format(time.RFC3339))).
				WithContext("operation", operation).
				WithContext("opened_at", coe.OpenedAt.Format(time.RFC3339)).
				WithContext("retry_after", coe.RetryAfter.Format(time.RFC3339))
		}
		return err
	}

	if err := fn(ctx); err != nil {
		cb.RecordFailure(operation, err)
		return err
	}

	cb.RecordSuccess(operation)
	return nil
}

// GetState returns the current state of the circuit for the given operation.
func (cb *CircuitBreaker) GetState(operation string) CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	circuit, exists := cb.circuits[operation]
	if !exists {
		return StateClosed // No circuit = closed (healthy)
	}

	// Report Open circuits past their timeout as Half-Open; the actual
	// transition happens in Allow()
	if circuit.state == StateOpen && time.Since(circuit.openedAt) >= cb.config.RecoveryTimeout {
		return StateHalfOpen
	}

	return circuit.state
}

// Reset resets the circuit for the given operation to Closed state.
func (cb *CircuitBreaker) Reset(operation string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if circuit, exists := cb.circuits[operation]; exists {
		cb.close(circuit)
	}
}

// ResetAll resets all circuits to Closed state.
func (cb *CircuitBreaker) ResetAll() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	for _, circuit := range cb.circuits {
		cb.close(circuit)
	}
}

// Stats returns statistics about all circuits.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stats := BreakerStats{
		Total:      len(cb.circuits),
		Operations: make(map[string]OperationStats),
	}

	for operation, circuit := range cb.circuits {
		state := circuit.state
		if state == StateOpen && time.Since(circuit.openedAt) >= cb.config.RecoveryTimeout {
			state = StateHalfOpen
		}

		switch state {
		case StateClosed:
			stats.ClosedCount++
		case StateOpen:
			stats.OpenCount++
		case StateHalfOpen:
			stats.HalfOpenCount++
		}

		stats.Operations[operation] = OperationStats{
			State:       state,
			Failures:    circuit.failures,
			OpenedAt:    circuit.openedAt,
			LastFailure: circuit.lastFailure,
		}
	}

	return stats
}

// close resets a circuit to healthy Closed state.
// Must be called with mu locked.
func (cb *CircuitBreaker) close(circuit *operationCircuit) {
	circuit.state = StateClosed
	circuit.failures = 0
	circuit.halfOpenProbes = 0
	circuit.halfOpenSuccesses = 0
	circuit.windowStart = time.Time{}
	circuit.windowRequests = 0
	circuit.windowFailures = 0
}

// recordWindow rolls the failure-rate window forward and records one call.
// Must be called with mu locked.
func (cb *CircuitBreaker) recordWindow(circuit *operationCircuit, failed bool) {
	if cb.config.FailureRateThreshold <= 0 {
		return
	}

	now := time.Now()
	if circuit.windowStart.IsZero() || now.Sub(circuit.windowStart) >= cb.config.WindowDuration {
		circuit.windowStart = now
		circuit.windowRequests = 0
		circuit.windowFailures = 0
	}

	circuit.windowRequests++
	if failed {
		circuit.windowFailures++
	}
}

// windowTripped reports whether the windowed failure rate has crossed the
// threshold. Must be called with mu locked.
func (cb *CircuitBreaker) windowTripped(circuit *operationCircuit) bool {
	if cb.config.FailureRateThreshold <= 0 {
		return false
	}
	if circuit.windowRequests < cb.config.MinRequests {
		return false
	}
	rate := float64(circuit.windowFailures) / float64(circuit.windowRequests)
	return rate >= cb.config.FailureRateThreshold
}

// getOrCreateCircuit returns the circuit for the operation, creating it if needed.
// Must be called with mu locked.
func (cb *CircuitBreaker) getOrCreateCircuit(operation string) *operationCircuit {
	circuit, exists := cb.circuits[operation]
	if !exists {
		circuit = &operationCircuit{
			operation: operation,
			state:     StateClosed,
			failures:  0,
		}
		cb.circuits[operation] = circuit
	}
	return circuit
}

// BreakerStats provides aggregate statistics about all circuits.
type BreakerStats struct {
	// Total number of tracked operations
	Total int

	// ClosedCount is the number of circuits in Closed state
	ClosedCount int

	// OpenCount is the number of circuits in Open state
	OpenCount int

	// HalfOpenCount is the number of circuits in Half-Open state
	HalfOpenCount int

	// Operations maps operation keys to their individual stats
	Operations map[string]OperationStats
}

// OperationStats provides statistics about a single operation circuit.
type OperationStats struct {
	// State is the current circuit state
	State CircuitState

	// Failures is the consecutive failure count
	Failures int

	// OpenedAt is when the circuit was opened (zero if never opened)
	OpenedAt time.Time

	// LastFailure is when the most recent failure occurred (zero if never failed)
	LastFailure time.Time
}

// CircuitOpenError is returned when a circuit is open and calls are blocked.
type CircuitOpenError struct {
	Operation  string
	OpenedAt   time.Time
	RetryAfter time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for operation %s (opened at %s, retry after %s)",
		e.Operation, e.OpenedAt.Format(time.RFC3339), e.RetryAfter.Format(time.RFC3339))
}
