// SPDX-License-Identifier: MPL-2.0

// Package wait polls CFS until components finish configuring.
//
// After a component's desired configuration changes and its state is
// cleared, CFS reports it as pending until the configuration session
// completes. Only pending components are polled; components in any other
// non-terminal status are reported once and not waited on. Polling
// continues until every pending component reaches a terminal status, is
// disabled, or the context is cancelled.
package wait

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"

	"cfs-config-util/internal/cfs"
)

// Component status values reported by CFS.
const (
	StatusUnconfigured = "unconfigured"
	StatusPending      = "pending"
	StatusFailed       = "failed"
	StatusConfigured   = "configured"
)

// DefaultInterval is the default polling interval.
const DefaultInterval = 30 * time.Second

// ComponentGetter fetches the current state of a CFS component; implemented
// by cfs.Client.
type ComponentGetter interface {
	GetComponent(ctx context.Context, id string) (*cfs.Component, error)
}

// Result summarizes the final state of the waited-on components.
type Result struct {
	// Configured holds the IDs of components that reached configured status.
	Configured []string
	// Failed holds the IDs of components that reached failed status.
	Failed []string
	// Disabled holds the IDs of components that are disabled in CFS and so
	// will never be configured.
	Disabled []string
	// Errored holds the IDs of components whose status could not be
	// queried. They are set aside and reported in a warning rather than
	// aborting the wait.
	Errored []string
}

// Success reports whether every component was configured.
func (r Result) Success() bool {
	return len(r.Failed) == 0 && len(r.Disabled) == 0
}

// Waiter polls component configuration status.
type Waiter struct {
	components ComponentGetter
	interval   time.Duration
	logger     *log.Logger
}

// NewWaiter creates a Waiter. A zero interval selects DefaultInterval.
func NewWaiter(components ComponentGetter, interval time.Duration, logger *log.Logger) *Waiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Waiter{components: components, interval: interval, logger: logger}
}

// ForComponents waits until every pending component among the given IDs
// reaches a terminal configuration status. It returns an error only when
// the context is cancelled; configuration failures and unreachable
// components are reported in the Result.
func (w *Waiter) ForComponents(ctx context.Context, ids []string) (Result, error) {
	var result Result

	w.logger.Info("waiting for components to finish configuration", "count", len(ids))

	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		if w.check(ctx, id, &result) {
			pending[id] = true
		}
	}

	if len(pending) > 0 {
		w.logger.Info("waiting for pending components", "count", len(pending))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("interrupted while waiting for %d components: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}

		for _, id := range sortedKeys(pending) {
			if !w.check(ctx, id, &result) {
				delete(pending, id)
			}
		}
		if len(pending) > 0 {
			w.logger.Info("components still pending", "count", len(pending))
		}
	}

	if len(result.Errored) > 0 {
		w.logger.Warn("could not determine the status of some components",
			"count", len(result.Errored), "components", strings.Join(result.Errored, ", "))
	}
	w.logger.Info("finished waiting for components",
		"configured", len(result.Configured),
		"failed", len(result.Failed),
		"disabled", len(result.Disabled),
	)
	return result, nil
}

// check polls one component and files it in the result by status. It
// reports whether the component is still pending and must be polled again.
func (w *Waiter) check(ctx context.Context, id string, result *Result) bool {
	component, err := w.components.GetComponent(ctx, id)
	if err != nil {
		w.logger.Error("failed to check status of component", "component", id, "error", err)
		result.Errored = append(result.Errored, id)
		return false
	}

	if !component.Enabled {
		w.logger.Warn("component is disabled in CFS and will not be configured", "component", id)
		result.Disabled = append(result.Disabled, id)
		return false
	}

	switch component.ConfigurationStatus {
	case StatusConfigured:
		result.Configured = append(result.Configured, id)
	case StatusFailed:
		w.logger.Error("component failed configuration",
			"component", id, "errorCount", component.ErrorCount)
		result.Failed = append(result.Failed, id)
	case StatusPending:
		return true
	default:
		w.logger.Info("component is not pending and will not be waited on",
			"component", id, "status", component.ConfigurationStatus)
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := maps.Keys(set)
	sort.Strings(keys)
	return keys
}
