// Package endpoint tracks which backend endpoint the client should talk to.
package endpoint

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/studygarden/memquiz/pkg/kvstore"
	"github.com/studygarden/memquiz/pkg/logging"
)

// Resolver holds the primary, stable and active endpoints. Only the active
// endpoint is persisted, under the slot it was given.
type Resolver struct {
	primary string
	stable  string
	slot    *kvstore.Slot
	logger  logging.Logger

	mu     sync.RWMutex
	active string
}

// NewResolver creates a Resolver and restores the persisted active endpoint.
// A storage failure is logged and treated as "nothing persisted".
func NewResolver(ctx context.Context, primary, stable string, slot *kvstore.Slot, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.GetLogger()
	}
	r := &Resolver{
		primary: strings.TrimSpace(primary),
		stable:  strings.TrimSpace(stable),
		slot:    slot,
		logger:  logger.With("component", "endpoint"),
	}
	r.active = r.fallback()

	if slot == nil {
		return r
	}
	raw, ok, err := slot.Load(ctx)
	if err != nil {
		r.logger.Warn("failed to read persisted endpoint", "key", slot.Key(), "error", err)
		return r
	}
	if saved := strings.TrimSpace(string(raw)); ok && saved != "" {
		r.active = saved
		r.logger.Debug("restored endpoint", "endpoint", saved)
	}
	return r
}

func (r *Resolver) fallback() string {
	if r.stable != "" {
		return r.stable
	}
	return r.primary
}

// Primary returns the endpoint of last resort.
func (r *Resolver) Primary() string { return r.primary }

// Stable returns the optional secondary endpoint.
func (r *Resolver) Stable() string { return r.stable }

// Resolve returns the endpoint the next request should try first.
func (r *Resolver) Resolve() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Promote makes endpoint the active one and persists it.
func (r *Resolver) Promote(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("promote: empty endpoint")
	}

	r.mu.Lock()
	r.active = endpoint
	r.mu.Unlock()

	if r.slot == nil {
		return nil
	}
	raw, ok, err := r.slot.Load(ctx)
	if err == nil && ok && string(raw) == endpoint {
		return nil
	}
	if err := r.slot.Save(ctx, []byte(endpoint)); err != nil {
		return fmt.Errorf("persist endpoint: %w", err)
	}
	r.logger.Debug("promoted endpoint", "endpoint", endpoint)
	return nil
}

// Reset forgets the persisted endpoint and falls back to stable, then primary.
func (r *Resolver) Reset(ctx context.Context) error {
	r.mu.Lock()
	r.active = r.fallback()
	r.mu.Unlock()

	if r.slot == nil {
		return nil
	}
	if err := r.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clear endpoint: %w", err)
	}
	r.logger.Info("endpoint reset", "active", r.Resolve())
	return nil
}

// Candidates returns the fallback order: active, primary, stable. Empty and
// repeated entries are skipped.
func (r *Resolver) Candidates() []string {
	out := make([]string, 0, 3)
	for _, e := range []string{r.Resolve(), r.primary, r.stable} {
		if e == "" || contains(out, e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
