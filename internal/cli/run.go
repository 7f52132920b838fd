package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madfront-labs/madfront/internal/notify"
	"github.com/madfront-labs/madfront/internal/pipeline"
)

var servePortFlag int

func init() {
	for _, c := range []*cobra.Command{runCmd, buildCmd, devCmd} {
		c.Flags().IntVar(&servePortFlag, "port", 0, "Dev server port (overrides the build script)")
	}
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(devCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks from the build script",
	Long: `Run one or more tasks of the project's build script, one after another.

Transform tasks (html, styles, scripts, images, fonts, extras) report filter
errors as notifications without failing the run; pass --strict to exit
non-zero when any of them failed. Run "tasks" to list what is available.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(cmd, args...)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Clean and build the project into the output directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(cmd, "build")
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Build, then watch sources and serve the output with live reload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTargets(cmd, "dev")
	},
}

func runTargets(cmd *cobra.Command, targets ...string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := loadProject(servePortFlag)
	if err != nil {
		return err
	}
	var rec notify.Recorder
	r, err := p.runner(cmd.OutOrStdout(), &rec)
	if err != nil {
		return fmt.Errorf("%s: %w", p.dir, err)
	}
	logger.WithField("mode", p.settings.Mode).Debugf("running %s", strings.Join(targets, ", "))

	report, err := r.Run(ctx, targets...)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return nil
		}
		return err
	}
	return checkReport(report, &rec)
}

// checkReport turns isolated failures into an error under --strict, naming
// each failed task with the message it was notified with.
func checkReport(report *pipeline.Report, rec *notify.Recorder) error {
	failed := report.Failed()
	if !strict || len(failed) == 0 {
		return nil
	}
	msgs := make([]string, len(failed))
	for i, f := range failed {
		msgs[i] = f.Task
		if ns := rec.ByTitle(f.Task); len(ns) > 0 {
			msgs[i] += ": " + ns[len(ns)-1].Message
		}
	}
	return fmt.Errorf("%d task(s) failed: %s", len(failed), strings.Join(msgs, "; "))
}
