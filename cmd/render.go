// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/renderwait/internal/observability"
	"github.com/xkilldash9x/renderwait/internal/pages"
	"github.com/xkilldash9x/renderwait/internal/render"
	"github.com/xkilldash9x/renderwait/internal/session"
)

// contracts maps page names to the render contracts of the built-in pages.
var contracts = map[string]func(*session.Session) render.Contract{
	"calendar": func(s *session.Session) render.Contract { return pages.NewCalendar(s).Contract() },
	"manage-permissions": func(s *session.Session) render.Contract {
		return pages.NewManagePermissions(s).Contract()
	},
}

func pageNames() []string {
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type renderOutput struct {
	Page      string         `json:"page"`
	State     string         `json:"state"`
	ElapsedMS int64          `json:"elapsed_ms"`
	BudgetMS  int64          `json:"budget_ms"`
	Markers   []markerOutput `json:"markers"`
	Error     string         `json:"error,omitempty"`
}

type markerOutput struct {
	Name      string `json:"name"`
	Skipped   bool   `json:"skipped,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func newRenderCmd() *cobra.Command {
	var (
		url    string
		budget time.Duration
	)

	cmd := &cobra.Command{
		Use:       "render <page>",
		Short:     "Check the render contract of a built-in page",
		Long:      "Loads --url and waits for every marker of the page's render contract. Pages: " + strings.Join(pageNames(), ", ") + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: pageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.Component("render")

			contractFor, ok := contracts[args[0]]
			if !ok {
				return fmt.Errorf("unknown page %q (known: %s)", args[0], strings.Join(pageNames(), ", "))
			}
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
			return runRender(ctx, s, contractFor(s), url, budget, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "page to load before rendering")
	cmd.Flags().DurationVar(&budget, "budget", 0, "total render budget; 0 uses wait.page_load_timeout_seconds")
	return cmd
}

// runRender is the testable core of the render command.
func runRender(ctx context.Context, s *session.Session, c render.Contract, url string, budget time.Duration, out io.Writer) error {
	if url != "" {
		if err := s.Navigate(ctx, url); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
	}
	if budget <= 0 {
		budget = s.Policy().PageLoad
	}

	res, rerr := c.RenderWithin(ctx, s, budget)
	result := renderOutput{
		Page:      c.Page,
		State:     res.State.String(),
		ElapsedMS: res.Elapsed.Milliseconds(),
		BudgetMS:  res.Budget.Milliseconds(),
		Markers:   make([]markerOutput, 0, len(res.Markers)),
	}
	for _, m := range res.Markers {
		mo := markerOutput{Name: m.Name, Skipped: m.Skipped, ElapsedMS: m.Elapsed.Milliseconds()}
		if !m.Skipped {
			mo.Outcome = m.Outcome.String()
		}
		result.Markers = append(result.Markers, mo)
	}
	if rerr != nil {
		result.Error = rerr.Error()
	}

	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write render result: %w", err)
	}
	return rerr
}
