package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/madfront-labs/madfront/internal/buildfile"
	"github.com/madfront-labs/madfront/internal/installer"
)

// sassConstraint is the Dart Sass range the sass filter's flags need.
const sassConstraint = ">= 1.32.0"

var (
	checkTools  bool
	checkScript bool
)

var (
	okTag   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("[ OK ]")
	warnTag = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("[WARN]")
	missTag = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("[MISS]")
	failTag = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("[FAIL]")
)

func init() {
	doctorCmd.Flags().BoolVar(&checkTools, "check-tools", false, "Verify node, npm, bower and sass")
	doctorCmd.Flags().BoolVar(&checkScript, "check-script", false, "Validate the project's build script")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the tools and build script a project needs",
	Long: `Run diagnostic checks: the external tools the scaffolder and the pipeline
call (node, npm, bower, sass) and the build script of the project in --dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(projectDir)
		if err != nil {
			return fmt.Errorf("resolving project directory: %w", err)
		}
		out := cmd.OutOrStdout()

		// If no specific flag, run all checks.
		all := !checkTools && !checkScript
		var errs []error
		if all || checkTools {
			runToolsCheck(cmd.Context(), out, dir)
		}
		if all || checkScript {
			if err := runScriptCheck(out, dir); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}

func runToolsCheck(ctx context.Context, w io.Writer, dir string) {
	fmt.Fprintln(w, "Tools check:")
	inst := &installer.Installer{Logger: logger}
	for _, tool := range []string{"node", "npm", "bower"} {
		checkTool(w, inst, dir, tool)
	}
	if bin := checkTool(w, inst, dir, "sass"); bin != "" {
		checkSassVersion(ctx, w, bin)
	}
}

func checkTool(w io.Writer, inst *installer.Installer, dir, name string) string {
	bin, err := inst.Resolve(dir, name)
	if err != nil {
		fmt.Fprintf(w, "  %s %s not found\n", missTag, name)
		return ""
	}
	fmt.Fprintf(w, "  %s %s found at %s\n", okTag, name, bin)
	return bin
}

func checkSassVersion(ctx context.Context, w io.Writer, bin string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		fmt.Fprintf(w, "  %s sass --version: %v\n", failTag, err)
		return
	}
	v, err := sassVersion(string(out))
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", warnTag, err)
		return
	}
	fmt.Fprintf(w, "  %s sass %s satisfies %s\n", okTag, v, sassConstraint)
}

// sassVersion parses the output of sass --version and checks it against
// sassConstraint. Dart Sass prints the bare version first; Ruby Sass and
// node-sass print a product name and are rejected.
func sassVersion(output string) (*semver.Version, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return nil, errors.New("sass printed no version")
	}
	v, err := semver.StrictNewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("sass is not Dart Sass (version output %q)", strings.TrimSpace(output))
	}
	c, err := semver.NewConstraint(sassConstraint)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return v, fmt.Errorf("sass %s does not satisfy %s", v, sassConstraint)
	}
	return v, nil
}

func runScriptCheck(w io.Writer, dir string) error {
	path := filepath.Join(dir, buildfile.FileName)
	fmt.Fprintf(w, "Build script check: %s\n", path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "  %s no %s, the default build script applies\n", warnTag, buildfile.FileName)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", failTag, err)
		return fmt.Errorf("reading build script: %w", err)
	}
	result, err := buildfile.Validate(data)
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", failTag, err)
		return fmt.Errorf("build script validation failed: %w", err)
	}
	if !result.Valid {
		fmt.Fprintf(w, "  %s %d validation issue(s):\n", failTag, len(result.Issues))
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "    - %s\n", issue)
		}
		return fmt.Errorf("build script %s has %d validation issue(s)", path, len(result.Issues))
	}

	f, err := buildfile.Parse(data, path)
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", failTag, err)
		return err
	}
	g, err := f.Graph()
	if err != nil {
		fmt.Fprintf(w, "  %s %v\n", failTag, err)
		return fmt.Errorf("build script %s: %w", path, err)
	}
	fmt.Fprintf(w, "  %s valid build script with %d tasks\n", okTag, len(g.Names()))
	return nil
}
