package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/madfront-labs/madfront/internal/filters"
	"github.com/madfront-labs/madfront/internal/notify"
)

const tracerName = "github.com/madfront-labs/madfront/internal/pipeline"

// ErrUnknownTask is returned by Run for names missing from the graph.
var ErrUnknownTask = errors.New("unknown task")

// Options configure a Runner.
type Options struct {
	// Dir is the project root. Defaults to the working directory.
	Dir string
	// Development enables filters declared with when: development.
	Development bool

	// Host and Port are used by the serve builtin.
	Host string
	Port int

	Filters  *filters.Registry
	Notifier notify.Notifier
	Logger   log.FieldLogger
	Tracer   trace.Tracer

	// Concurrency bounds the files processed at once by one transform task.
	Concurrency int
	// Debounce is the quiet period the watch builtin waits for before
	// re-running tasks.
	Debounce time.Duration
}

// Runner executes tasks of one graph.
type Runner struct {
	graph *Graph
	opts  Options
	dir   string
	log   log.FieldLogger
	// locks serialize executions of the same leaf task.
	locks map[string]*sync.Mutex
}

// New checks that every filter the graph names is registered and returns a
// runner.
func New(g *Graph, opts Options) (*Runner, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	if opts.Filters == nil {
		opts.Filters = filters.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 100 * time.Millisecond
	}

	var errs []error
	for _, t := range g.Transforms() {
		for _, f := range t.Filters {
			if !opts.Filters.Has(f.Name) {
				errs = append(errs, invalidf(t.Name, "unknown filter %q", f.Name))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	r := &Runner{
		graph: g,
		opts:  opts,
		dir:   dir,
		log:   opts.Logger,
		locks: make(map[string]*sync.Mutex, len(g.names)),
	}
	for _, name := range g.names {
		r.locks[name] = &sync.Mutex{}
	}
	return r, nil
}

// Graph returns the graph the runner executes.
func (r *Runner) Graph() *Graph { return r.graph }

// Dir returns the absolute project root.
func (r *Runner) Dir() string { return r.dir }

// Run executes the named tasks one after another and returns the report of
// every task that ran. Isolated transform failures are only recorded in the
// report; the returned error carries builtin and composite failures.
func (r *Runner) Run(ctx context.Context, names ...string) (*Report, error) {
	for _, name := range names {
		if _, ok := r.graph.tasks[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownTask, name)
		}
	}

	x := r.newExecution()
	x.log.WithField("targets", names).Debug("run started")
	var err error
	for _, name := range names {
		if err = x.run(ctx, name); err != nil {
			break
		}
	}
	x.report.Duration = time.Since(x.report.Started)
	return x.report, err
}

// execution is the state of one Run call.
type execution struct {
	r      *Runner
	report *Report
	log    log.FieldLogger
}

func (r *Runner) newExecution() *execution {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	return &execution{
		r:      r,
		report: report,
		log:    r.log.WithField("run_id", report.RunID),
	}
}

func (x *execution) run(ctx context.Context, name string) error {
	t := x.r.graph.task(name)
	ctx, span := x.r.opts.Tracer.Start(ctx, "task "+name, trace.WithAttributes(
		attribute.String("madfront.task", name),
		attribute.String("madfront.kind", string(t.Kind)),
	))
	defer span.End()

	logger := x.log.WithField("task", name)
	start := time.Now()
	logger.Infof("Starting '%s'...", name)

	var (
		outputs []Output
		err     error
	)
	switch t.Kind {
	case KindTransform, KindBuiltin:
		lock := x.r.locks[name]
		lock.Lock()
		if t.Kind == KindTransform {
			outputs, err = x.transform(ctx, t)
		} else {
			outputs, err = x.builtin(ctx, t, logger)
		}
		lock.Unlock()
	case KindSeries:
		err = x.series(ctx, t)
	case KindParallel:
		err = x.parallel(ctx, t.Members)
	}

	res := Result{
		Task:     name,
		Kind:     t.Kind,
		Status:   StatusOK,
		Outputs:  outputs,
		Duration: time.Since(start),
	}
	span.SetAttributes(attribute.Int("madfront.outputs", len(outputs)))

	// A transform cut short by cancellation did not fail on its own.
	if err != nil && t.Kind == KindTransform && ctx.Err() != nil {
		res.Status = StatusSkipped
		x.report.add(res)
		span.SetStatus(codes.Unset, "cancelled")
		logger.Debug("cancelled")
		return nil
	}

	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		x.report.add(res)

		if t.Kind == KindTransform {
			logger.WithError(err).Errorf("'%s' failed", name)
			x.r.opts.Notifier.Notify(notify.Notification{
				Title:   name,
				Message: err.Error(),
				Level:   notify.LevelError,
			})
			return nil
		}
		if t.Kind == KindBuiltin {
			return fmt.Errorf("%s: %w", name, err)
		}
		return err
	}

	span.SetStatus(codes.Ok, "")
	x.report.add(res)
	logger.Infof("Finished '%s' after %s", name, res.Duration.Round(time.Millisecond))
	return nil
}

func (x *execution) series(ctx context.Context, t *Task) error {
	for i, step := range t.Steps {
		if err := ctx.Err(); err != nil {
			x.skip(t.Steps[i:])
			return err
		}
		var err error
		if step.Task != "" {
			err = x.run(ctx, step.Task)
		} else {
			err = x.parallel(ctx, step.Parallel)
		}
		if err != nil {
			x.skip(t.Steps[i+1:])
			return err
		}
	}
	return nil
}

func (x *execution) skip(steps []Step) {
	for _, s := range steps {
		for _, name := range s.Names() {
			x.report.add(Result{Task: name, Kind: x.r.graph.task(name).Kind, Status: StatusSkipped})
		}
	}
}

// parallel runs names concurrently. A propagated failure cancels the
// siblings; all propagated failures are returned joined.
func (x *execution) parallel(ctx context.Context, names []string) error {
	g, gctx := errgroup.WithContext(ctx)
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, name := range names {
		g.Go(func() error {
			if err := x.run(gctx, name); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
