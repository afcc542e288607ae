// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     health
// Description: Health checks reported on the /healthz endpoint
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status of a single check or of the whole report
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult is the outcome of one check
type CheckResult struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Checker probes one dependency
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

type namedCheck struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func (c namedCheck) Name() string                          { return c.name }
func (c namedCheck) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// NewChecker wraps fn as a checker called name
func NewChecker(name string, fn func(ctx context.Context) CheckResult) Checker {
	return namedCheck{name: name, fn: fn}
}

// Registry holds the checks of one flatset process
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	service  string
	version  string
	startAt  time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(service, version string) *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
		service:  service,
		version:  version,
		startAt:  time.Now(),
	}
}

// Register adds checker, replacing one with the same name
func (r *Registry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[checker.Name()] = checker
}

// Report is the body served at /healthz
type Report struct {
	Service   string        `json:"service"`
	Version   string        `json:"version"`
	Status    Status        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks"`
}

// Check runs every check concurrently. The report is unhealthy if any
// check is, degraded if any check is degraded, healthy otherwise. Checks
// are sorted by name.
func (r *Registry) Check(ctx context.Context) *Report {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := c.Check(ctx)
			res.Duration = time.Since(start)
			res.Timestamp = time.Now()
			if res.Name == "" {
				res.Name = c.Name()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	slices.SortFunc(results, func(a, b CheckResult) int { return strings.Compare(a.Name, b.Name) })
	status := StatusHealthy
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy:
			status = StatusUnhealthy
		case res.Status == StatusDegraded && status == StatusHealthy:
			status = StatusDegraded
		}
	}

	return &Report{
		Service:   r.service,
		Version:   r.version,
		Status:    status,
		Uptime:    time.Since(r.startAt),
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// CheckWithTimeout is Check bounded by timeout. A check still running at
// the deadline sees its context cancelled.
func (r *Registry) CheckWithTimeout(ctx context.Context, timeout time.Duration) *Report {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Check(ctx)
}

// PingCheck reports unhealthy when ping fails. Used for the store.
func PingCheck(name string, ping func(ctx context.Context) error) Checker {
	return NewChecker(name, func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Name: name, Status: StatusUnhealthy, Message: err.Error()}
		}
		return CheckResult{Name: name, Status: StatusHealthy}
	})
}

// GaugeCheck is always healthy and reports value as a detail, e.g. the
// collection size
func GaugeCheck(name string, value func() int) Checker {
	return NewChecker(name, func(ctx context.Context) CheckResult {
		return CheckResult{
			Name:    name,
			Status:  StatusHealthy,
			Details: map[string]interface{}{"value": value()},
		}
	})
}
