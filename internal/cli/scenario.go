package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bakehouse/internal/config"
	"github.com/roach88/bakehouse/internal/harness"
	"github.com/roach88/bakehouse/internal/logging"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Keep string
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>...",
		Short: "Run YAML scenarios against a fresh ledger",
		Long: `Run scenario files. Each scenario gets its own temporary database, so
the database named by --db is never touched.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - command error (path not found, etc.)

Examples:
  bakehouse scenario ./scenarios
  bakehouse scenario ./scenarios/croissant_day.yaml --keep ./out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runOpts []harness.Option
			if opts.Keep != "" {
				runOpts = append(runOpts, harness.WithDir(opts.Keep))
			}
			if opts.Verbose {
				cfg, err := config.Load(opts.ConfigPath, envFile)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load config", err)
				}
				log, err := logging.New(cfg.Log, true)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to build logger", err)
				}
				defer func() { _ = log.Sync() }()
				runOpts = append(runOpts, harness.WithLogger(log))
			}

			res, err := harness.RunSuite(cmd.Context(), args, runOpts...)
			if err != nil {
				return WrapExitError(ExitCommandError, "scenario run failed", err)
			}

			if err := rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				for _, f := range res.Failures {
					name := f.Name
					if name == "" {
						name = f.ScenarioPath
					}
					fmt.Fprintf(w, "✗ %s\n", name)
					for _, e := range f.Errors {
						fmt.Fprintf(w, "    %s\n", e)
					}
				}
				fmt.Fprintf(w, "%d scenarios, %d passed, %d failed\n", res.TotalScenarios, res.Passed, res.Failed)
			}); err != nil {
				return err
			}
			if res.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.TotalScenarios))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Keep, "keep", "", "write scenario databases to this directory instead of a temp dir")
	return cmd
}
