package interfaces

import (
	"context"

	"github.com/studygarden/memquiz/core/model"
)

// Engine defines the public interface for the quiz session engine.
type Engine interface {
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Load replaces the session with freshly fetched questions.
	Load(ctx context.Context, ignoreFilters bool) error
	// LoadReview replaces the session with the review backlog.
	LoadReview(ctx context.Context) error
	// Submit answers the current question with the presenter's choice.
	Submit(ctx context.Context) error
	// SubmitChoice answers the current question with the given option index.
	SubmitChoice(ctx context.Context, chosen int) error
	// Advance moves to the next question, finishing after the last one.
	Advance(ctx context.Context) error
	// Finish ends the session and returns its summary.
	Finish(ctx context.Context) (model.Summary, error)
	// Restart resets backend progress where supported and clears local state.
	Restart(ctx context.Context) error
	// ClearLocal removes persisted session data.
	ClearLocal(ctx context.Context) error
	// ResetEndpoint forgets the remembered endpoint.
	ResetEndpoint(ctx context.Context) error
	// Select jumps to a queued question.
	Select(ctx context.Context, questionID string) error
	// Close cancels any pending auto-advance.
	Close()
}
