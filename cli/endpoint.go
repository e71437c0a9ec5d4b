package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/studygarden/memquiz"
	"github.com/studygarden/memquiz/core/session"
)

func init() {
	ping := &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend is reachable",
		RunE:  runPing,
	}

	endpoint := &cobra.Command{
		Use:   "endpoint",
		Short: "Show the configured and remembered endpoints",
		RunE:  runEndpoint,
	}
	probe := &cobra.Command{
		Use:   "probe",
		Short: "Ping every endpoint and rank them by latency",
		RunE:  runEndpointProbe,
	}
	probe.Flags().Bool("promote", false, "Make the fastest reachable endpoint the active one")

	endpoint.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget the remembered endpoint and ping again",
		RunE:  runEndpointReset,
	}, probe)

	RootCmd.AddCommand(ping, endpoint)
}

func runPing(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		return reported(e.Ping(ctx))
	})
}

func runEndpoint(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(_ context.Context, _ *session.Engine, app *memquiz.App) error {
		r := app.Resolver
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "primary\t%s\n", r.Primary())
		fmt.Fprintf(tw, "stable\t%s\n", orNone(r.Stable()))
		fmt.Fprintf(tw, "active\t%s\n", r.Resolve())
		fmt.Fprintf(tw, "order\t%s\n", strings.Join(r.Candidates(), " -> "))
		return tw.Flush()
	})
}

func runEndpointReset(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *session.Engine, _ *memquiz.App) error {
		return reported(e.ResetEndpoint(ctx))
	})
}

func runEndpointProbe(cmd *cobra.Command, args []string) error {
	promote, _ := cmd.Flags().GetBool("promote")
	return withEngine(cmd, func(ctx context.Context, _ *session.Engine, app *memquiz.App) error {
		results, err := app.Probe(ctx, promote)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "ENDPOINT\tSTATUS\tLATENCY")
		for _, res := range results {
			status, latency := "FAIL", "N/A"
			if res.Success {
				status, latency = "OK", res.Latency.Round(time.Millisecond).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Endpoint, status, latency)
		}
		if ferr := tw.Flush(); ferr != nil {
			return ferr
		}
		if err != nil {
			return err
		}
		if promote {
			fmt.Fprintf(cmd.OutOrStdout(), "active endpoint: %s\n", app.Resolver.Resolve())
		}
		return nil
	})
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
