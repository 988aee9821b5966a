// File: cmd/probe.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/locator"
	"github.com/xkilldash9x/renderwait/internal/observability"
	"github.com/xkilldash9x/renderwait/internal/session"
	"github.com/xkilldash9x/renderwait/internal/wait"
)

type probeOptions struct {
	url       string
	css       string
	xpath     string
	condition string
	attr      string
	value     string
	timeout   time.Duration
	poll      time.Duration

	// timeoutSet is false when --timeout was not given.
	timeoutSet bool
}

// probeOutput is what the probe command prints.
type probeOutput struct {
	Condition string `json:"condition"`
	Held      bool   `json:"held"`
	Outcome   string `json:"outcome"`
	Matches   int    `json:"matches"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

func newProbeCmd() *cobra.Command {
	var opts probeOptions

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Wait for a condition on one element of a live page",
		Long: `Opens a browser session, optionally navigates to --url, and waits for
the condition on the element selected by --css or --xpath. The result is
printed as JSON. The command fails if the condition does not hold in time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.Component("probe")
			opts.timeoutSet = cmd.Flags().Changed("timeout")

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			s, err := session.Open(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to open session: %w", err)
			}
			defer func() {
				if err := s.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("Failed to close session cleanly.", zap.Error(err))
				}
			}()
			return runProbe(ctx, s, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "page to load before probing")
	cmd.Flags().StringVar(&opts.css, "css", "", "CSS selector of the element")
	cmd.Flags().StringVar(&opts.xpath, "xpath", "", "XPath of the element")
	cmd.Flags().StringVar(&opts.condition, "condition", wait.KindVisible.String(), "visible, present, invisible, deleted, attribute-equals, attribute-contains, text-contains or text-gone")
	cmd.Flags().StringVar(&opts.attr, "attr", "", "attribute name for attribute conditions")
	cmd.Flags().StringVar(&opts.value, "value", "", "expected attribute value or text")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "how long to wait (default wait.default_wait_millis); zero or negative checks once")
	cmd.Flags().DurationVar(&opts.poll, "poll", 0, "poll interval; 0 uses wait.poll_interval_millis")
	cmd.MarkFlagsMutuallyExclusive("css", "xpath")
	cmd.MarkFlagsOneRequired("css", "xpath")

	return cmd
}

// buildCondition turns the flags into a wait condition.
func (o probeOptions) buildCondition() (wait.Condition, error) {
	var loc locator.Locator
	switch {
	case o.css != "" && o.xpath != "":
		return wait.Condition{}, errors.New("only one of --css and --xpath may be set")
	case o.css != "":
		loc = locator.CSS(o.css)
	case o.xpath != "":
		loc = locator.XPath(o.xpath)
	default:
		return wait.Condition{}, errors.New("one of --css or --xpath is required")
	}

	kind, err := wait.ParseKind(o.condition)
	if err != nil {
		return wait.Condition{}, err
	}
	switch kind {
	case wait.KindAttributeEquals, wait.KindAttributeContains:
		if o.attr == "" {
			return wait.Condition{}, fmt.Errorf("--attr is required for %s", kind)
		}
	}
	return wait.Condition{Kind: kind, Locator: loc, Attr: o.attr, Value: o.value}, nil
}

// runProbe is the testable core of the probe command.
func runProbe(ctx context.Context, s *session.Session, o probeOptions, out io.Writer) error {
	cond, err := o.buildCondition()
	if err != nil {
		return err
	}
	if o.url != "" {
		if err := s.Navigate(ctx, o.url); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", o.url, err)
		}
	}

	timeout := s.Policy().DefaultWait
	if o.timeoutSet {
		timeout = o.timeout
	}
	start := s.Clock().Now()
	res, werr := wait.For(ctx, s, wait.Spec{Condition: cond, Timeout: timeout, PollInterval: o.poll})
	result := probeOutput{
		Condition: cond.String(),
		Held:      werr == nil,
		Outcome:   res.Outcome.String(),
		Matches:   res.Matches(),
		ElapsedMS: s.Clock().Now().Sub(start).Milliseconds(),
	}
	if werr != nil {
		result.Error = werr.Error()
	}

	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write probe result: %w", err)
	}
	return werr
}
