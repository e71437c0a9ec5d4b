package session

import (
	"fmt"

	"github.com/studygarden/memquiz/core/model"
)

// Mode selects where the question queue came from.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeReview   Mode = "review"
)

// Phase is the coarse lifecycle position of a session.
type Phase string

const (
	PhaseEmpty      Phase = "empty"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// State is the engine's in-memory session.
//
// Index is always within Queue when Queue is non-empty. Answered holds the
// queue positions already counted in Done, so each question counts at most
// once and Correct <= Done <= len(Queue).
type State struct {
	UserID     string
	Filters    model.Filters
	SessionID  string
	Queue      []model.Question
	Index      int
	Done       int
	Correct    int
	Answered   map[int]bool
	Mode       Mode
	ReviewMeta *model.ReviewMeta
	Finished   bool
	// Loaded is set by a successful load and cleared by finish or restart.
	// A loaded session with an empty queue is in progress but renders as empty.
	Loaded      bool
	LastSummary *model.Summary
}

func newState(userID string) State {
	return State{UserID: userID, Filters: model.Filters{UserID: userID}, Mode: ModeStandard}
}

// Phase reports where the session is in its lifecycle.
func (s State) Phase() Phase {
	switch {
	case s.Finished:
		return PhaseFinished
	case s.Loaded:
		return PhaseInProgress
	default:
		return PhaseEmpty
	}
}

// Total is the number of queued questions.
func (s State) Total() int { return len(s.Queue) }

// Current returns the question at Index.
func (s State) Current() (model.Question, bool) {
	if s.Index < 0 || s.Index >= len(s.Queue) {
		return model.Question{}, false
	}
	return s.Queue[s.Index], true
}

// Label is the short human description shown next to the session.
func (s State) Label() string {
	if s.Finished {
		last := 0
		if s.LastSummary != nil {
			last = s.LastSummary.Done
		}
		return fmt.Sprintf("finished (last: %d)", last)
	}
	if len(s.Queue) > 0 {
		return "in progress"
	}
	return "not started"
}

// EmptyHint is shown in place of a question when the queue is empty.
func (s State) EmptyHint() string {
	if s.Finished {
		return "Previous round finished. Load questions again; due and unseen questions come first."
	}
	return "Not started. Ping the backend or load questions first."
}

// Progress summarizes the counters for display.
func (s State) Progress() Progress {
	return Progress{
		Index:    s.Index,
		Total:    len(s.Queue),
		Done:     s.Done,
		Correct:  s.Correct,
		Percent:  model.ProgressPercent(s.Done, len(s.Queue)),
		Accuracy: model.Accuracy(s.Correct, s.Done),
	}
}

func (s State) clone() State {
	c := s
	c.Queue = append([]model.Question(nil), s.Queue...)
	if s.Answered != nil {
		c.Answered = make(map[int]bool, len(s.Answered))
		for i := range s.Answered {
			c.Answered[i] = true
		}
	}
	if s.LastSummary != nil {
		sum := *s.LastSummary
		c.LastSummary = &sum
	}
	if s.ReviewMeta != nil {
		meta := *s.ReviewMeta
		c.ReviewMeta = &meta
	}
	return c
}

// replace installs a freshly loaded queue and zeroes the counters.
func (s *State) replace(queue []model.Question, mode Mode, meta *model.ReviewMeta, filters model.Filters, sessionID string) {
	s.Queue = queue
	s.Index = 0
	s.Done = 0
	s.Correct = 0
	s.Answered = make(map[int]bool)
	s.Mode = mode
	s.ReviewMeta = meta
	s.Filters = filters
	s.UserID = filters.UserID
	s.SessionID = sessionID
	s.Finished = false
	s.Loaded = true
}
