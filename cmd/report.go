// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/renderwait/internal/report"
)

// newReportCmd groups the commands that read JSONL wait reports.
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect JSONL wait reports",
	}
	cmd.AddCommand(newReportSummarizeCmd())
	cmd.AddCommand(newReportFollowCmd())
	return cmd
}

func newReportSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [report.jsonl]",
		Short: "Print outcome counts and the slowest waits of a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := reportPath(cmd.Context(), args)
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open report: %w", err)
			}
			defer f.Close()
			return runSummarize(f, cmd.OutOrStdout())
		},
	}
}

func runSummarize(r io.Reader, out io.Writer) error {
	summary, err := report.Summarize(r)
	if err != nil {
		return err
	}
	_, err = summary.WriteTo(out)
	return err
}

func newReportFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow [report.jsonl]",
		Short: "Stream events as they are appended to a report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := reportPath(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.Follow(cmd.Context(), path, func(ev report.Event) error {
				return writeEventLine(out, ev)
			})
		},
	}
}

// writeEventLine prints ev as one human-readable line.
func writeEventLine(w io.Writer, ev report.Event) error {
	name := ev.Name
	if ev.Page != "" {
		name = ev.Page + "/" + ev.Name
	}
	line := fmt.Sprintf("%s %-8s %-8s %-40s %8s",
		ev.Time.Format(time.TimeOnly), ev.Kind, ev.Outcome, name, ev.Elapsed.Round(time.Millisecond))
	if ev.Error != "" {
		line += "  " + ev.Error
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// reportPath picks the explicit argument or falls back to report.jsonl_path.
func reportPath(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return "", err
	}
	if cfg.Report().JSONLPath == "" {
		return "", fmt.Errorf("no report file given and report.jsonl_path is not set")
	}
	return cfg.Report().JSONLPath, nil
}
