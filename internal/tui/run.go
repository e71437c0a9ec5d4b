package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/session"
)

// Run starts an interactive session on app and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, app *memquiz.App, filters model.Filters, opts ...tea.ProgramOption) error {
	sel := NewSelection(filters)
	bus := session.NewBus()

	var engine *session.Engine
	m := NewModel(ctx, bus, sel, func() { engine.Render() })

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(m, opts...)

	engine = app.NewEngine(ctx, NewPresenter(program, sel))
	engine.Bind(bus)
	defer engine.Close()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
