// Package health reports whether the bot's components are usable and serves
// the result over HTTP.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Component status values
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Checker tests one component; a nil error means healthy
type Checker func(ctx context.Context) error

// Registry holds the named component checkers
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// Report is the outcome of one round of checks
type Report struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Healthy reports whether every component passed
func (r Report) Healthy() bool {
	return r.Status == StatusOK
}

// NewRegistry creates a registry; each check gets at most timeout (0 means 5s)
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register adds a named checker
func (r *Registry) Register(name string, check Checker) error {
	if name == "" || check == nil {
		return fmt.Errorf("checker name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checkers[name]; exists {
		return fmt.Errorf("checker %q already registered", name)
	}
	r.checkers[name] = check
	return nil
}

// Names returns registered checker names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every checker concurrently
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	report := Report{Status: StatusOK, Components: make(map[string]string, len(checkers))}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checkers {
		name, check := name, check
		// Failures are recorded in the report, so every goroutine returns nil
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			status := StatusOK
			if err := check(cctx); err != nil {
				status = "error: " + err.Error()
			}

			mu.Lock()
			report.Components[name] = status
			if status != StatusOK {
				report.Status = StatusDegraded
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}
