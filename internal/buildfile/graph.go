package buildfile

import (
	"sort"

	"github.com/madfront-labs/madfront/internal/pipeline"
)

// Layout returns the source and output roots the script declares.
func (f *File) Layout() pipeline.Layout {
	return pipeline.Layout{Src: f.Src, Dist: f.Dist}
}

// PipelineTasks converts the task specs, sorted by name.
func (f *File) PipelineTasks() []pipeline.Task {
	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]pipeline.Task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, f.Tasks[name].task(name))
	}
	return tasks
}

// Graph builds the validated task graph.
func (f *File) Graph() (*pipeline.Graph, error) {
	return pipeline.NewGraph(f.Layout(), f.PipelineTasks())
}

func (s TaskSpec) kind() pipeline.Kind {
	switch {
	case s.Builtin != "":
		return pipeline.KindBuiltin
	case len(s.Series) > 0:
		return pipeline.KindSeries
	case len(s.Parallel) > 0:
		return pipeline.KindParallel
	default:
		return pipeline.KindTransform
	}
}

func (s TaskSpec) task(name string) pipeline.Task {
	t := pipeline.Task{
		Name:        name,
		Kind:        s.kind(),
		Description: s.Description,
		Src:         s.Src,
		Exclude:     s.Exclude,
		Watch:       s.Watch,
		Dest:        s.Dest,
		Builtin:     s.Builtin,
		Members:     s.Parallel,
	}
	for _, f := range s.Filters {
		t.Filters = append(t.Filters, pipeline.FilterRef{Name: f.Name, When: f.When, With: f.With})
	}
	for _, step := range s.Series {
		t.Steps = append(t.Steps, pipeline.Step{Task: step.Task, Parallel: step.Parallel})
	}
	return t
}
