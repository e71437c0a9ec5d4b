package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/session"
)

func init() {
	restart := &cobra.Command{
		Use:   "restart",
		Short: "Reset the user's progress on the backend and clear local state",
		RunE:  runRestart,
	}

	clearCache := &cobra.Command{
		Use:   "clear-cache",
		Short: "Clear the locally saved session",
		RunE:  runClearCache,
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the last finished session",
		RunE:  runSummary,
	}

	answer := &cobra.Command{
		Use:   "answer <question-id> <option>",
		Short: "Submit one answer (option is 1-based)",
		Args:  cobra.ExactArgs(2),
		RunE:  runAnswer,
	}

	RootCmd.AddCommand(restart, clearCache, summary, answer)
}

func runRestart(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		return e.Restart(ctx)
	})
}

func runClearCache(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		return reported(e.ClearLocal(ctx))
	})
}

func runSummary(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		snap, err := e.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if snap == nil || snap.LastSessionSummary == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no finished session")
			return nil
		}
		b, _ := json.MarshalIndent(snap.LastSessionSummary, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	})
}

func runAnswer(cmd *cobra.Command, args []string) error {
	option, err := strconv.Atoi(args[1])
	if err != nil || option < 1 {
		return fmt.Errorf("option must be a positive number, got %q", args[1])
	}
	return withEngine(cmd, func(ctx context.Context, _ *session.Engine, app *memquiz.App) error {
		res, _, err := app.API.SubmitAnswer(ctx, app.Config.Session.UserID, args[0], option-1)
		if err != nil {
			return fmt.Errorf("submit answer: %s", session.FormatError(err))
		}
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	})
}
