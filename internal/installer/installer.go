// Package installer runs the npm and bower installers in a new project.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrToolNotFound is returned when an installer binary is missing.
var ErrToolNotFound = errors.New("tool not found")

// Step is one installer invocation.
type Step struct {
	Tool string
	Args []string
	// Manifest must exist in the project for the step to run.
	Manifest string
}

// Steps run in order: npm first, since it can provide bower locally.
var Steps = []Step{
	{Tool: "npm", Args: []string{"install"}, Manifest: "package.json"},
	{Tool: "bower", Args: []string{"install"}, Manifest: "bower.json"},
}

// Installer runs Steps. Failures propagate; nothing is retried.
type Installer struct {
	// Stdout and Stderr receive the tools' output; default to os.Stdout and
	// os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	// LookPath can be replaced in tests; defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Logger   log.FieldLogger
}

// Resolve finds tool in the project's node_modules/.bin, then on PATH.
func (i *Installer) Resolve(dir, tool string) (string, error) {
	local := filepath.Join(dir, "node_modules", ".bin", tool)
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local, nil
	}
	lookPath := i.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	p, err := lookPath(tool)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, tool)
	}
	return p, nil
}

// Install runs every step whose manifest exists in dir.
func (i *Installer) Install(ctx context.Context, dir string) error {
	logger := i.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	for _, step := range Steps {
		if _, err := os.Stat(filepath.Join(dir, step.Manifest)); err != nil {
			logger.WithField("tool", step.Tool).Debugf("no %s, skipping", step.Manifest)
			continue
		}
		if err := i.run(ctx, dir, step); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) run(ctx context.Context, dir string, step Step) error {
	bin, err := i.Resolve(dir, step.Tool)
	if err != nil {
		return err
	}

	stdout := i.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := i.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var stderrBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, step.Args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &stderrBuf)

	if err := cmd.Run(); err != nil {
		msg := lastLine(stderrBuf.String())
		if msg != "" {
			return fmt.Errorf("%s %s: %w: %s", step.Tool, strings.Join(step.Args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", step.Tool, strings.Join(step.Args, " "), err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
