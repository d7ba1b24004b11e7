package cli

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shopstate/internal/harness"
	"github.com/roach88/shopstate/internal/metrics"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Metrics bool
}

// runReport is the output of the run command.
type runReport struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
	Metrics  string          `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one reconciliation scenario and print its trace",
		Long: `Run a scenario against a fresh in-memory device store and remote store,
then print the trace and the assertion result.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (missing or invalid scenario file)

Example:
  shopstate run ./scenarios/favorites_union_merge.yaml
  shopstate run ./scenarios/cart_merge_on_sign_in.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print collected metrics after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	out.VerboseLog("running scenario %s (%d steps)", scenario.Name, len(scenario.Flow))

	result, err := harness.Run(scenario, harness.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	report := runReport{Scenario: scenario.Name, Result: result}
	if opts.Metrics {
		var buf bytes.Buffer
		if err := metrics.WriteText(&buf); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
		report.Metrics = buf.String()
	}

	if !result.Pass {
		if err := out.Failure("E_SCENARIO_FAILED", "scenario failed", report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return out.Success(report)
}

func (r runReport) renderText(w io.Writer) {
	fmt.Fprintf(w, "Scenario: %s\n\n", r.Scenario)
	writeTrace(w, r.Result.Trace)
	fmt.Fprintln(w)

	if r.Result.Pass {
		fmt.Fprintln(w, "✓ PASS")
	} else {
		fmt.Fprintln(w, "✗ FAIL")
		for _, e := range r.Result.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
	}

	if r.Metrics != "" {
		fmt.Fprintln(w, "\nMetrics:")
		fmt.Fprint(w, r.Metrics)
	}
}

// writeTrace prints one line per trace event.
func writeTrace(w io.Writer, trace []harness.TraceEvent) {
	for _, ev := range trace {
		line := fmt.Sprintf("[%3d] %-9s %s", ev.Seq, ev.Type, ev.Name)
		if len(ev.Args) > 0 {
			line += " " + formatArgs(ev.Args)
		}
		if ev.Outcome != "" {
			line += " -> " + ev.Outcome
		}
		if ev.Error != "" {
			line += ": " + ev.Error
		}
		fmt.Fprintln(w, line)
	}
}

// formatArgs renders args as sorted key=value pairs.
func formatArgs(args map[string]interface{}) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}
