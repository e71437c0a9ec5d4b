package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Intent is a discrete user action raised by the presentation layer.
type Intent string

const (
	IntentPing          Intent = "ping"
	IntentLoad          Intent = "load"
	IntentLoadAll       Intent = "load-all"
	IntentLoadReview    Intent = "load-review"
	IntentSubmit        Intent = "submit"
	IntentAdvance       Intent = "advance"
	IntentFinish        Intent = "finish"
	IntentRestart       Intent = "restart"
	IntentClearCache    Intent = "clear-cache"
	IntentResetEndpoint Intent = "reset-endpoint"
	IntentSelect        Intent = "select"
)

// Intents lists every intent the engine handles.
var Intents = []Intent{
	IntentPing, IntentLoad, IntentLoadAll, IntentLoadReview, IntentSubmit, IntentAdvance,
	IntentFinish, IntentRestart, IntentClearCache, IntentResetEndpoint, IntentSelect,
}

// ParseIntent maps a name to a known Intent.
func ParseIntent(name string) (Intent, bool) {
	for _, i := range Intents {
		if string(i) == name {
			return i, true
		}
	}
	return "", false
}

// ErrUnhandledIntent is returned by Emit when nothing subscribed to the intent.
var ErrUnhandledIntent = errors.New("unhandled intent")

// Event is one emitted intent. QuestionID is only used by IntentSelect.
type Event struct {
	Intent     Intent
	QuestionID string
}

// Handler reacts to an Event.
type Handler func(ctx context.Context, ev Event) error

// Bus routes intents from the presentation layer to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Intent][]Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Intent][]Handler)}
}

// On subscribes h to intent.
func (b *Bus) On(intent Intent, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[intent] = append(b.handlers[intent], h)
}

// Emit runs every handler subscribed to ev.Intent in order, on the calling
// goroutine, and joins their errors.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Intent]...)
	b.mu.RUnlock()

	if len(hs) == 0 {
		return fmt.Errorf("%w: %s", ErrUnhandledIntent, ev.Intent)
	}
	var errs []error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
