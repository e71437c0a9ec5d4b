package session

import (
	"context"
	"time"

	"github.com/studygarden/memquiz/core/model"
)

// Snapshot is the persisted part of a session. The queue itself is never
// persisted; the backend decides what to ask next.
type Snapshot struct {
	Finished           bool           `json:"finished"`
	LastSessionSummary *model.Summary `json:"lastSessionSummary"`
	SavedAt            time.Time      `json:"savedAt"`
}

func (e *Engine) restore(ctx context.Context) {
	if e.slot == nil {
		return
	}
	var snap Snapshot
	ok, err := e.slot.LoadJSON(ctx, &snap)
	if err != nil {
		e.logger.Warn("ignoring unreadable session snapshot", "key", e.slot.Key(), "error", err)
		return
	}
	if !ok {
		return
	}
	e.mu.Lock()
	e.state.Finished = snap.Finished
	e.state.LastSummary = snap.LastSessionSummary
	e.mu.Unlock()
	e.logger.Debug("restored session snapshot", "finished", snap.Finished, "saved_at", snap.SavedAt)
}

func (e *Engine) persist(ctx context.Context) error {
	if e.slot == nil {
		return nil
	}
	e.mu.Lock()
	snap := Snapshot{Finished: e.state.Finished, SavedAt: e.now().UTC()}
	if e.state.LastSummary != nil {
		s := *e.state.LastSummary
		snap.LastSessionSummary = &s
	}
	e.mu.Unlock()

	if err := e.slot.SaveJSON(ctx, snap); err != nil {
		e.logger.Warn("failed to persist session snapshot", "error", err)
		return err
	}
	return nil
}

// LoadSnapshot reads the persisted snapshot, if any.
func (e *Engine) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if e.slot == nil {
		return nil, nil
	}
	var snap Snapshot
	ok, err := e.slot.LoadJSON(ctx, &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}
