package buildfile

import (
	"fmt"

	"go.yaml.in/yaml/v3"
)

// FileName is the build script's name in the project root.
const FileName = "madfront.yaml"

// File is a parsed build script.
type File struct {
	Version int                 `yaml:"version"`
	Src     string              `yaml:"src,omitempty"`
	Dist    string              `yaml:"dist,omitempty"`
	Server  Server              `yaml:"server,omitempty"`
	Tasks   map[string]TaskSpec `yaml:"tasks"`
}

// Server configures the serve builtin.
type Server struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// TaskSpec is one entry under tasks. Its kind follows from the fields set:
// builtin, series or parallel, and otherwise a transform.
type TaskSpec struct {
	Description string       `yaml:"description,omitempty"`
	Src         StringList   `yaml:"src,omitempty"`
	Exclude     StringList   `yaml:"exclude,omitempty"`
	Watch       StringList   `yaml:"watch,omitempty"`
	Filters     []FilterSpec `yaml:"filters,omitempty"`
	Dest        string       `yaml:"dest,omitempty"`
	Builtin     string       `yaml:"builtin,omitempty"`
	Series      []StepSpec   `yaml:"series,omitempty"`
	Parallel    []string     `yaml:"parallel,omitempty"`
}

// StringList accepts a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := node.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// FilterSpec is a filter name, or a mapping with name, when and with.
type FilterSpec struct {
	Name string         `yaml:"name"`
	When string         `yaml:"when,omitempty"`
	With map[string]any `yaml:"with,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FilterSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = FilterSpec{Name: node.Value}
		return nil
	}
	type plain FilterSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FilterSpec(p)
	return nil
}

// StepSpec is a task name, or a mapping holding a parallel group.
type StepSpec struct {
	Task     string   `yaml:"-"`
	Parallel []string `yaml:"parallel,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StepSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = StepSpec{Task: node.Value}
		return nil
	}
	var group struct {
		Parallel []string `yaml:"parallel"`
	}
	if err := node.Decode(&group); err != nil {
		return err
	}
	*s = StepSpec{Parallel: group.Parallel}
	return nil
}
