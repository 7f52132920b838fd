package pipeline

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind is the type of a task.
type Kind string

const (
	KindTransform Kind = "transform"
	KindBuiltin   Kind = "builtin"
	KindSeries    Kind = "series"
	KindParallel  Kind = "parallel"
)

// Builtin task implementations.
const (
	BuiltinClean   = "clean"
	BuiltinWiredep = "wiredep"
	BuiltinWatch   = "watch"
	BuiltinServe   = "serve"
	BuiltinReport  = "report"
)

var knownBuiltins = map[string]bool{
	BuiltinClean:   true,
	BuiltinWiredep: true,
	BuiltinWatch:   true,
	BuiltinServe:   true,
	BuiltinReport:  true,
}

// Mode conditions accepted by FilterRef.When.
const (
	WhenDevelopment = "development"
	WhenProduction  = "production"
)

// FilterRef names one stage of a transform chain.
type FilterRef struct {
	Name string
	// When restricts the stage to one build mode; empty means always.
	When string
	With map[string]any
}

// Enabled reports whether the stage runs in the given mode.
func (f FilterRef) Enabled(development bool) bool {
	switch f.When {
	case WhenDevelopment:
		return development
	case WhenProduction:
		return !development
	default:
		return true
	}
}

// Step is one element of a series: a task name or an inline parallel group.
type Step struct {
	Task     string
	Parallel []string
}

// Names returns the task names the step runs.
func (s Step) Names() []string {
	if s.Task != "" {
		return []string{s.Task}
	}
	return s.Parallel
}

func (s Step) String() string {
	if s.Task != "" {
		return s.Task
	}
	return "parallel(" + strings.Join(s.Parallel, ", ") + ")"
}

// Task is one named unit of the pipeline.
type Task struct {
	Name        string
	Kind        Kind
	Description string

	// Src and Exclude are slash-separated globs relative to the project root.
	Src     []string
	Exclude []string
	// Watch overrides Src as the set of paths that re-trigger the task.
	Watch   []string
	Filters []FilterRef
	// Dest is the output directory of a transform task.
	Dest string

	Builtin string

	Steps   []Step
	Members []string
}

// Deps returns the names of the tasks a composite runs, in declaration order.
func (t *Task) Deps() []string {
	switch t.Kind {
	case KindSeries:
		var out []string
		for _, s := range t.Steps {
			out = append(out, s.Names()...)
		}
		return out
	case KindParallel:
		return t.Members
	}
	return nil
}

// Excluded reports whether the project-relative path rel is removed by one
// of the task's exclude globs. A glob naming a directory excludes its subtree.
func (t *Task) Excluded(rel string) bool {
	for _, p := range t.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/")+"/**", rel); ok {
			return true
		}
	}
	return false
}

// Matches reports whether rel is selected by the task's sources.
func (t *Task) Matches(rel string) bool {
	return matchAny(t.Src, rel) && !t.Excluded(rel)
}

// Triggers reports whether a change to rel should re-run the task. Watch
// globs are taken as given; without them a transform task follows its
// sources.
func (t *Task) Triggers(rel string) bool {
	if len(t.Watch) > 0 {
		return matchAny(t.Watch, rel)
	}
	return t.Kind == KindTransform && t.Matches(rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Layout names the project's source and output roots, relative to the
// project directory.
type Layout struct {
	Src  string
	Dist string
}

// DefaultLayout is the src/ → dist/ layout generated projects use.
var DefaultLayout = Layout{Src: "src", Dist: "dist"}

func (l Layout) withDefaults() Layout {
	if l.Src == "" {
		l.Src = DefaultLayout.Src
	}
	if l.Dist == "" {
		l.Dist = DefaultLayout.Dist
	}
	l.Src = path.Clean(filepath.ToSlash(l.Src))
	l.Dist = path.Clean(filepath.ToSlash(l.Dist))
	return l
}

// insideProject reports whether p is a relative path that stays inside the
// project root.
func insideProject(p string) bool {
	p = path.Clean(filepath.ToSlash(p))
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return false
	}
	return p != ".." && !strings.HasPrefix(p, "../")
}
