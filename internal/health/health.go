// Package health runs dependency checks and serves readiness endpoints.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckStatus is the outcome of one health check.
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// MarshalJSON renders the status as its string form.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses the string form back.
func (s *CheckStatus) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"healthy"`:
		*s = StatusHealthy
	case `"degraded"`:
		*s = StatusDegraded
	default:
		*s = StatusUnhealthy
	}
	return nil
}

// CheckResult is one component's health at a point in time.
type CheckResult struct {
	Component string        `json:"component"`
	Status    CheckStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
	// Critical failures make the whole service unhealthy; non-critical
	// ones only degrade it.
	Critical() bool
}

// Manager fans out to all registered checkers.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewManager builds a manager with a per-check timeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{timeout: timeout}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Overall is the aggregate service health.
type Overall struct {
	Status CheckStatus   `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Check runs every checker concurrently and aggregates.
func (m *Manager) Check(ctx context.Context) Overall {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			err := c.Check(cctx)
			result := CheckResult{
				Component: c.Name(),
				Status:    StatusHealthy,
				Duration:  time.Since(start),
				Critical:  c.Critical(),
			}
			if err != nil {
				result.Error = err.Error()
				if c.Critical() {
					result.Status = StatusUnhealthy
				} else {
					result.Status = StatusDegraded
				}
			}
			results[i] = result
		}()
	}
	wg.Wait()

	overall := Overall{Status: StatusHealthy, Checks: results}
	for _, r := range results {
		if r.Status == StatusUnhealthy {
			overall.Status = StatusUnhealthy
			break
		}
		if r.Status == StatusDegraded {
			overall.Status = StatusDegraded
		}
	}
	return overall
}
