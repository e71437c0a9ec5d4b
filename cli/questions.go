package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/session"
)

func init() {
	questions := &cobra.Command{
		Use:   "questions",
		Short: "Load questions and print them",
		RunE:  runQuestions,
	}
	questions.Flags().Bool("all", false, "Ignore the grade/unit/difficulty filters")
	addFilterFlags(questions)

	review := &cobra.Command{
		Use:   "review",
		Short: "Load the review backlog and print it",
		RunE:  runReview,
	}

	RootCmd.AddCommand(questions, review)
}

func runQuestions(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		if err := e.Load(ctx, all); err != nil {
			return reported(err)
		}
		printQuestions(cmd.OutOrStdout(), e.State().Queue)
		return nil
	})
}

func runReview(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		if err := e.LoadReview(ctx); err != nil {
			return reported(err)
		}
		s := e.State()
		printQuestions(cmd.OutOrStdout(), s.Queue)
		if s.ReviewMeta != nil && s.ReviewMeta.TotalActive != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%d active in backlog\n", *s.ReviewMeta.TotalActive)
		}
		return nil
	})
}
