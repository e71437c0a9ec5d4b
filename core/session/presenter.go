package session

import (
	"time"

	"github.com/studygarden/memquiz/core/model"
)

// Severity colors a status line.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityPending
	SeverityOK
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityPending:
		return "pending"
	case SeverityOK:
		return "ok"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Progress is the counter block shown alongside a question.
type Progress struct {
	Index    int
	Total    int
	Done     int
	Correct  int
	Percent  int
	Accuracy int
}

// QuestionView is what the presenter needs to draw the current question.
type QuestionView struct {
	Question model.Question
	Index    int
	Total    int
	Mode     Mode
}

// Result is the feedback for one submit. OK is false for a validation or
// request failure, in which case only Message is set.
type Result struct {
	OK           bool
	Message      string
	QuestionID   string
	Chosen       int
	Correct      bool
	Explanation  string
	Recorded     bool
	NeedRemedial bool
	ECSStatus    string
	ECSStreak    *int
}

// Trace is the debug record of one operation.
type Trace struct {
	Action   string
	URL      string
	Request  any
	Response any
	Error    string
	At       time.Time
}

// Presenter is everything the engine needs from a user interface. The engine
// reads filters and the chosen answer and pushes state; it never touches
// markup. Calls are made without the engine's lock held.
type Presenter interface {
	Filters() model.Filters
	// ChosenAnswer returns the selected option index; ok is false if none is selected.
	ChosenAnswer() (index int, ok bool)

	SetEndpointLabel(endpoint string)
	SetStatus(text string, severity Severity)
	SetProgress(p Progress)
	SetSessionLabel(label string)
	SetMode(mode Mode, meta *model.ReviewMeta)
	RenderQuestion(q QuestionView)
	RenderEmpty(hint string)
	RenderList(questions []model.Question, current int)
	ShowResult(r Result)
	RenderDebug(t Trace)
}

// NopPresenter ignores every update. Embed it to implement only part of Presenter.
type NopPresenter struct{}

func (NopPresenter) Filters() model.Filters           { return model.Filters{} }
func (NopPresenter) ChosenAnswer() (int, bool)        { return 0, false }
func (NopPresenter) SetEndpointLabel(string)          {}
func (NopPresenter) SetStatus(string, Severity)       {}
func (NopPresenter) SetProgress(Progress)             {}
func (NopPresenter) SetSessionLabel(string)           {}
func (NopPresenter) SetMode(Mode, *model.ReviewMeta)  {}
func (NopPresenter) RenderQuestion(QuestionView)      {}
func (NopPresenter) RenderEmpty(string)               {}
func (NopPresenter) RenderList([]model.Question, int) {}
func (NopPresenter) ShowResult(Result)                {}
func (NopPresenter) RenderDebug(Trace)                {}
