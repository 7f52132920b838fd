package cli

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/madfront-labs/madfront/internal/branding"
	"github.com/madfront-labs/madfront/internal/config"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Persistent flags.
var (
	projectDir string
	verbose    bool
	envName    string
	strict     bool
)

var (
	// logger is shared by every command; PersistentPreRunE points it at the
	// command's error stream and sets its level.
	logger = log.New()
	// userConfig is the user config file, opened before every command.
	userConfig *config.Store
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&projectDir, "dir", ".", "Project directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&envName, "env", "", "Build mode: development or production (default from "+branding.EnvVar("ENV")+" or NODE_ENV)")
	flags.BoolVar(&strict, "strict", false, "Exit non-zero when any task failed, including isolated transform failures")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` scaffolds static front-end projects and runs their build pipeline:
SCSS compilation, minification, image optimization, bower dependency wiring,
and a live-reloading development server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.Open()
		if err != nil {
			return err
		}
		store.Logger = logger
		userConfig = store
		setupLogger(cmd.ErrOrStderr(), verbose || store.Debug())
		return nil
	},
}

func setupLogger(out io.Writer, debug bool) {
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{
		DisableTimestamp: !debug,
		FullTimestamp:    true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}
