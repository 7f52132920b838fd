package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madfront-labs/madfront/internal/branding"
	"github.com/madfront-labs/madfront/internal/installer"
	"github.com/madfront-labs/madfront/internal/prompt"
	"github.com/madfront-labs/madfront/internal/scaffold"
	"github.com/madfront-labs/madfront/internal/wiredep"
)

var (
	newName        string
	newSkipInstall bool
	newForce       bool
)

func init() {
	newCmd.Flags().StringVar(&newName, "name", "", "Project name (skips the prompt)")
	newCmd.Flags().BoolVar(&newSkipInstall, "skip-install", false, "Do not run npm install and bower install")
	newCmd.Flags().BoolVar(&newForce, "force", false, "Generate into a non-empty directory")
	rootCmd.AddCommand(newCmd)
}

var newCmd = &cobra.Command{
	Use:   "new [dir]",
	Short: "Scaffold a new front-end project",
	Long: `Generate a new project in dir (default: --dir, the current directory).

The project gets package.json, bower.json, .bowerrc, the madfront.yaml build
script, and a src/ tree with markup, stylesheet, script and static extras.
Unless --skip-install is given, npm install and bower install run afterwards
and the installed bower packages are wired into src/index.html.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := projectDir
		if len(args) == 1 {
			dir = args[0]
		}
		out := cmd.OutOrStdout()

		name := newName
		if !cmd.Flags().Changed("name") {
			var err error
			name, err = prompt.ProjectName(cmd.InOrStdin(), out, userConfig.DefaultAppName())
			if err != nil {
				return err
			}
		}

		gen := scaffold.New()
		gen.Force = newForce
		result, err := gen.Generate(scaffold.Answers{AppName: name}, dir)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Created %s project in %s\n", branding.DisplayName(), result.OutputDir)
		for _, f := range result.Files {
			fmt.Fprintf(out, "  %s\n", f)
		}
		for _, d := range result.Dirs {
			fmt.Fprintf(out, "  %s/\n", d)
		}
		for _, w := range result.Warnings {
			logger.Warn(w)
		}

		if newSkipInstall {
			fmt.Fprintf(out, "\nSkipped installers. Run npm install && bower install, then '%s build'.\n", branding.CLIName())
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inst := &installer.Installer{
			Stdout: out,
			Stderr: cmd.ErrOrStderr(),
			Logger: logger,
		}
		if err := inst.Install(ctx, result.OutputDir); err != nil {
			return fmt.Errorf("installing dependencies: %w", err)
		}

		wired, err := wiredep.Run(result.OutputDir, []string{"src/index.html"})
		if err != nil {
			return fmt.Errorf("wiring bower dependencies: %w", err)
		}
		for _, w := range wired.Warnings {
			logger.Warn(w)
		}
		logger.WithField("packages", len(wired.Packages)).Debug("bower dependencies wired")

		fmt.Fprintf(out, "\nDone. Run '%s dev --dir %s' to start developing.\n", branding.CLIName(), result.OutputDir)
		return nil
	},
}
