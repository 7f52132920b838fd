package pipeline

import (
	"errors"
	"maps"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Graph is an immutable set of tasks keyed by name.
type Graph struct {
	layout Layout
	tasks  map[string]*Task
	names  []string
}

// NewGraph validates tasks and returns the graph. Every problem found is
// reported; the returned error joins one *GraphError per issue.
func NewGraph(layout Layout, tasks []Task) (*Graph, error) {
	g := &Graph{
		layout: layout.withDefaults(),
		tasks:  make(map[string]*Task, len(tasks)),
	}

	var errs []error
	if !insideProject(g.layout.Dist) || g.layout.Dist == "." {
		errs = append(errs, invalidf("", "dist %q must be a subdirectory of the project", g.layout.Dist))
	}
	if !insideProject(g.layout.Src) {
		errs = append(errs, invalidf("", "src %q must be inside the project", g.layout.Src))
	}
	if g.layout.Src == g.layout.Dist {
		errs = append(errs, invalidf("", "src and dist must differ"))
	}

	for i := range tasks {
		t := cloneTask(tasks[i])
		if t.Name == "" {
			errs = append(errs, invalidf("", "task #%d has no name", i+1))
			continue
		}
		if _, dup := g.tasks[t.Name]; dup {
			errs = append(errs, invalidf(t.Name, "defined twice"))
			continue
		}
		g.tasks[t.Name] = t
		g.names = append(g.names, t.Name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		errs = append(errs, g.validateTask(g.tasks[name])...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, cycleError(cycle)
	}
	return g, nil
}

func (g *Graph) validateTask(t *Task) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, invalidf(t.Name, format, args...))
	}
	checkGlobs := func(field string, globs []string) {
		for _, p := range globs {
			if !doublestar.ValidatePattern(p) {
				fail("%s glob %q is malformed", field, p)
			} else if !insideProject(p) {
				fail("%s glob %q leaves the project", field, p)
			}
		}
	}
	checkRef := func(ref string) {
		if ref == t.Name {
			fail("references itself")
			return
		}
		if _, ok := g.tasks[ref]; !ok {
			fail("references undefined task %q", ref)
		}
	}

	checkGlobs("src", t.Src)
	checkGlobs("exclude", t.Exclude)
	checkGlobs("watch", t.Watch)

	switch t.Kind {
	case KindTransform:
		if len(t.Src) == 0 {
			fail("transform task needs at least one src glob")
		}
		if t.Dest == "" {
			fail("transform task needs a dest")
		} else if !insideProject(t.Dest) {
			fail("dest %q leaves the project", t.Dest)
		}
		for _, f := range t.Filters {
			if f.Name == "" {
				fail("filter without a name")
			}
			if f.When != "" && f.When != WhenDevelopment && f.When != WhenProduction {
				fail("filter %q: when must be %s or %s, got %q", f.Name, WhenDevelopment, WhenProduction, f.When)
			}
		}
		if t.Builtin != "" || len(t.Steps) > 0 || len(t.Members) > 0 {
			fail("transform task cannot declare builtin, series or parallel")
		}
	case KindBuiltin:
		if !knownBuiltins[t.Builtin] {
			fail("unknown builtin %q", t.Builtin)
		}
		if len(t.Filters) > 0 || len(t.Steps) > 0 || len(t.Members) > 0 {
			fail("builtin task cannot declare filters, series or parallel")
		}
		if len(t.Watch) > 0 && t.Builtin != BuiltinWiredep {
			fail("only wiredep can be re-run by watch")
		}
	case KindSeries:
		if len(t.Steps) == 0 {
			fail("series is empty")
		}
		for _, s := range t.Steps {
			switch {
			case s.Task != "" && len(s.Parallel) > 0:
				fail("series step names both a task and a parallel group")
			case s.Task == "" && len(s.Parallel) == 0:
				fail("empty series step")
			}
			for _, ref := range s.Names() {
				checkRef(ref)
			}
		}
	case KindParallel:
		if len(t.Members) == 0 {
			fail("parallel group is empty")
		}
		for _, ref := range t.Members {
			checkRef(ref)
		}
	default:
		fail("unknown kind %q", t.Kind)
	}
	return errs
}

// findCycle runs a DFS in name order and returns one cycle as a closed path,
// or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.tasks))
	var stack []string
	var cycle []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range g.tasks[name].Deps() {
			switch color[dep] {
			case white:
				if dfs(dep) {
					return true
				}
			case gray:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, name := range g.names {
		if color[name] == white && dfs(name) {
			return cycle
		}
	}
	return nil
}

// Layout returns the project layout the graph was built with.
func (g *Graph) Layout() Layout { return g.layout }

// Get returns a copy of the named task.
func (g *Graph) Get(name string) (Task, bool) {
	t, ok := g.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *cloneTask(*t), true
}

// Names returns all task names, sorted.
func (g *Graph) Names() []string { return slices.Clone(g.names) }

// Transforms returns the transform tasks, sorted by name.
func (g *Graph) Transforms() []Task {
	var out []Task
	for _, name := range g.names {
		if t := g.tasks[name]; t.Kind == KindTransform {
			out = append(out, *cloneTask(*t))
		}
	}
	return out
}

func (g *Graph) task(name string) *Task { return g.tasks[name] }

func cloneTask(t Task) *Task {
	t.Src = slices.Clone(t.Src)
	t.Exclude = slices.Clone(t.Exclude)
	t.Watch = slices.Clone(t.Watch)
	t.Members = slices.Clone(t.Members)
	if t.Filters != nil {
		fs := make([]FilterRef, len(t.Filters))
		for i, f := range t.Filters {
			f.With = maps.Clone(f.With)
			fs[i] = f
		}
		t.Filters = fs
	}
	if t.Steps != nil {
		steps := make([]Step, len(t.Steps))
		for i, s := range t.Steps {
			s.Parallel = slices.Clone(s.Parallel)
			steps[i] = s
		}
		t.Steps = steps
	}
	return &t
}
