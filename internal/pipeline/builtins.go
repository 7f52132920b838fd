package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/madfront-labs/madfront/internal/fsutil"
	"github.com/madfront-labs/madfront/internal/notify"
	"github.com/madfront-labs/madfront/internal/serve"
	"github.com/madfront-labs/madfront/internal/watch"
	"github.com/madfront-labs/madfront/internal/wiredep"
)

func (x *execution) builtin(ctx context.Context, t *Task, logger log.FieldLogger) ([]Output, error) {
	switch t.Builtin {
	case BuiltinClean:
		return nil, x.clean(logger)
	case BuiltinWiredep:
		return x.wiredep(t, logger)
	case BuiltinReport:
		return nil, x.reportDone(t, logger)
	case BuiltinWatch:
		return nil, x.watch(ctx, logger)
	case BuiltinServe:
		return nil, x.serve(ctx, logger)
	}
	return nil, fmt.Errorf("unknown builtin %q", t.Builtin)
}

func (x *execution) distDir() string {
	return filepath.Join(x.r.dir, filepath.FromSlash(x.r.graph.layout.Dist))
}

func (x *execution) clean(logger log.FieldLogger) error {
	n, err := fsutil.CleanDir(x.distDir())
	if err != nil {
		return err
	}
	logger.Debugf("removed %d entries from %s", n, x.r.graph.layout.Dist)
	return nil
}

func (x *execution) wiredep(t *Task, logger log.FieldLogger) ([]Output, error) {
	sources, err := x.r.collect(t)
	if err != nil {
		return nil, err
	}
	markup := make([]string, len(sources))
	for i, s := range sources {
		markup[i] = s.rel
	}

	res, err := wiredep.Run(x.r.dir, markup)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.Warn(w)
	}
	outputs := make([]Output, 0, len(res.Rewritten))
	for _, f := range res.Rewritten {
		outputs = append(outputs, Output{Path: f})
	}
	logger.Debugf("%d packages wired into %d files", len(res.Packages), len(res.Rewritten))
	return outputs, nil
}

// reportDone summarizes the output directory and the failures recorded so
// far in this run.
func (x *execution) reportDone(t *Task, logger log.FieldLogger) error {
	size, count, err := fsutil.DirSize(x.distDir())
	if err != nil {
		return err
	}
	failed := x.report.Failed()
	logger.WithField("files", count).WithField("size", humanize.Bytes(uint64(size))).Info("build output")

	n := notify.Notification{
		Title:   t.Name,
		Message: fmt.Sprintf("Build is done! %d files, %s", count, humanize.Bytes(uint64(size))),
		Level:   notify.LevelInfo,
	}
	if len(failed) > 0 {
		names := make([]string, len(failed))
		for i, f := range failed {
			names[i] = f.Task
		}
		n.Message += fmt.Sprintf(" (%d failed: %s)", len(failed), strings.Join(names, ", "))
		n.Level = notify.LevelError
	}
	x.r.opts.Notifier.Notify(n)
	return nil
}

// watch re-runs the tasks whose sources changed until ctx is done. Each batch
// of changes gets its own report.
func (x *execution) watch(ctx context.Context, logger log.FieldLogger) error {
	layout := x.r.graph.layout
	w, err := watch.New(x.r.dir,
		watch.WithIgnore(layout.Dist, wiredep.Directory(x.r.dir)),
		watch.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	logger.Infof("watching %s", x.r.dir)
	for batch := range watch.Debounce(ctx, w.Events(ctx), x.r.opts.Debounce) {
		names := x.r.triggered(batch)
		if len(names) == 0 {
			continue
		}
		logger.WithField("tasks", names).Info("changes detected")
		rerun := x.r.newExecution()
		if err := rerun.parallel(ctx, names); err != nil {
			logger.WithError(err).Error("re-run failed")
		}
	}
	return nil
}

// triggered lists the tasks that a batch of changes should re-run.
func (r *Runner) triggered(batch []watch.Event) []string {
	var names []string
	for _, name := range r.graph.names {
		t := r.graph.tasks[name]
		if t.Kind != KindTransform && !(t.Kind == KindBuiltin && t.Builtin == BuiltinWiredep) {
			continue
		}
		for _, ev := range batch {
			if t.Triggers(ev.Path) {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

func (x *execution) serve(ctx context.Context, logger log.FieldLogger) error {
	bower := wiredep.Directory(x.r.dir)
	s := serve.New(serve.Options{
		Root: x.distDir(),
		Mounts: map[string]string{
			"/" + bower: filepath.Join(x.r.dir, filepath.FromSlash(bower)),
		},
		Host:   x.r.opts.Host,
		Port:   x.r.opts.Port,
		Logger: logger,
	})
	return s.Run(ctx)
}
