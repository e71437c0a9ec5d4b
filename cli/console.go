package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
)

// consolePresenter prints statuses and results for one-shot commands.
// Everything else the engine pushes is dropped.
type consolePresenter struct {
	session.NopPresenter

	out     io.Writer
	errOut  io.Writer
	filters model.Filters
	chosen  int
}

func newConsolePresenter(out, errOut io.Writer, f model.Filters) *consolePresenter {
	return &consolePresenter{out: out, errOut: errOut, filters: f, chosen: -1}
}

func (p *consolePresenter) Filters() model.Filters    { return p.filters }
func (p *consolePresenter) ChosenAnswer() (int, bool) { return p.chosen, p.chosen >= 0 }

func (p *consolePresenter) SetStatus(text string, sev session.Severity) {
	if sev == session.SeverityPending {
		return
	}
	w := p.out
	if sev == session.SeverityError || sev == session.SeverityWarn {
		w = p.errOut
	}
	fmt.Fprintf(w, "%s: %s\n", sev, text)
}

func (p *consolePresenter) ShowResult(r session.Result) {
	if !r.OK {
		fmt.Fprintln(p.errOut, r.Message)
		return
	}
	verdict := "incorrect"
	if r.Correct {
		verdict = "correct"
	}
	fmt.Fprintf(p.out, "%s: %s (chosen %d)\n", r.QuestionID, verdict, r.Chosen)
	if r.Explanation != "" {
		fmt.Fprintf(p.out, "  %s\n", r.Explanation)
	}
	fmt.Fprintf(p.out, "  recorded=%t remedial=%t ecs=%s", r.Recorded, r.NeedRemedial, r.ECSStatus)
	if r.ECSStreak != nil {
		fmt.Fprintf(p.out, " streak=%d", *r.ECSStreak)
	}
	fmt.Fprintln(p.out)
}

// printQuestions writes a question table.
func printQuestions(w io.Writer, qs []model.Question) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tGRADE\tUNIT\tDIFFICULTY\tSTEM\tOPTIONS")
	for _, q := range qs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", q.ID, q.Grade, q.Unit, q.Difficulty, q.Stem, strings.Join(q.Options, " | "))
	}
	_ = tw.Flush()
}
