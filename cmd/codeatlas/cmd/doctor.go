package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/output"
	"github.com/codeatlas/codeatlas/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the system is ready for indexing",
		Long: `Check disk space, write access, file descriptor limits, and embedder
reachability, and report anything that would block or degrade a scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out.Header("codeatlas doctor")
	out.Newline()

	results := preflight.New(cfg).RunAll(cmd.Context(), root)
	for _, r := range results {
		switch r.Status {
		case preflight.StatusPass:
			out.Successf("%s: %s", r.Name, r.Message)
		case preflight.StatusWarn:
			out.Warningf("%s: %s", r.Name, r.Message)
		default:
			out.Errorf("%s: %s", r.Name, r.Message)
		}
		if r.Hint != "" && r.Status != preflight.StatusPass {
			out.Dim("  hint: " + r.Hint)
		}
	}

	out.Newline()
	switch preflight.SummaryStatus(results) {
	case "ready":
		out.Success("all checks passed")
	case "ready_with_warnings":
		out.Warning("ready, with warnings")
	default:
		out.Error("critical checks failed")
		// Invalidate the cached pass so the next index run re-checks.
		_ = preflight.ClearMarker(dataDir(root))
		return fmt.Errorf("system not ready")
	}

	if err := preflight.MarkPassed(dataDir(root)); err == nil {
		out.Dim("result cached; 'codeatlas index' will skip these checks")
	}
	return nil
}
