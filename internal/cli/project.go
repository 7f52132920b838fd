package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/madfront-labs/madfront/internal/buildfile"
	"github.com/madfront-labs/madfront/internal/config"
	"github.com/madfront-labs/madfront/internal/filters"
	"github.com/madfront-labs/madfront/internal/installer"
	"github.com/madfront-labs/madfront/internal/notify"
	"github.com/madfront-labs/madfront/internal/pipeline"
	"github.com/madfront-labs/madfront/internal/sass"
)

// project is a loaded build script with the settings of this invocation.
type project struct {
	dir      string
	script   *buildfile.File
	found    bool
	graph    *pipeline.Graph
	settings *config.Settings
}

func loadProject(port int) (*project, error) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}

	settings, err := userConfig.Settings(config.Overrides{Env: envName, Port: port})
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	script, found, err := buildfile.Load(dir)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Debugf("no %s in %s, using the default build script", buildfile.FileName, dir)
	}
	graph, err := script.Graph()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", buildfile.FileName, err)
	}

	return &project{dir: dir, script: script, found: found, graph: graph, settings: settings}, nil
}

// servePort picks the dev-server port: an explicitly configured port wins
// over the build script's server.port.
func (p *project) servePort() int {
	if !p.settings.PortSet && p.script.Server.Port != 0 {
		return p.script.Server.Port
	}
	return p.settings.Port
}

// filterRegistry returns the built-in filters with sass bound to the
// project's local binary when one is installed.
func (p *project) filterRegistry() *filters.Registry {
	reg := filters.Default()
	inst := &installer.Installer{Logger: logger}
	bin, err := inst.Resolve(p.dir, "sass")
	if err != nil {
		if !errors.Is(err, installer.ErrToolNotFound) {
			logger.WithError(err).Warn("resolving sass")
		}
		return reg
	}
	logger.WithField("sass", bin).Debug("using sass binary")
	reg.Register("sass", filters.SassFactory(&sass.ExecCompiler{Binary: bin}))
	return reg
}

// runner builds the pipeline runner. Notifications go to the terminal and to
// rec, which keeps the failure messages for the --strict summary.
func (p *project) runner(out io.Writer, rec *notify.Recorder) (*pipeline.Runner, error) {
	return pipeline.New(p.graph, pipeline.Options{
		Dir:         p.dir,
		Development: p.settings.Mode.IsDevelopment(),
		Host:        p.script.Server.Host,
		Port:        p.servePort(),
		Filters:     p.filterRegistry(),
		Notifier:    notify.Multi{notify.NewTerminal(out, logger), rec},
		Logger:      logger,
	})
}
