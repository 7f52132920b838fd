package filters

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

// File is one file flowing through a filter chain.
type File struct {
	// Path is the slash-separated output path relative to the task destination.
	Path string
	// Source is the project-relative path the file was read from.
	Source string
	// Contents is the current file body.
	Contents []byte
	// Mode is the permission of the source file.
	Mode fs.FileMode

	// WantSourceMap is set by sourcemaps-init; SourceMap is filled by
	// compilers that honour it and consumed by sourcemaps-write.
	WantSourceMap bool
	SourceMap     []byte
}

// Ext returns the lower-cased extension of Path, including the dot.
func (f *File) Ext() string {
	return strings.ToLower(path.Ext(f.Path))
}

// Clone returns a shallow copy with its own contents slice.
func (f *File) Clone() *File {
	c := *f
	c.Contents = append([]byte(nil), f.Contents...)
	return &c
}

// Filter transforms one file into zero or more output files.
type Filter interface {
	Name() string
	Apply(ctx context.Context, f *File) ([]*File, error)
}

// Options configure a filter instance.
type Options struct {
	// With holds the per-task options from the build script.
	With map[string]any
	// Development is true when building in development mode.
	Development bool
	// ProjectDir is the absolute project root.
	ProjectDir string
}

// String returns the string option key, or def when missing.
func (o Options) String(key, def string) string {
	if v, ok := o.With[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns the integer option key, or def when missing.
func (o Options) Int(key string, def int) int {
	switch v := o.With[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the boolean option key, or def when missing.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o.With[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns the string-list option key.
func (o Options) Strings(key string) []string {
	raw, ok := o.With[key].([]any)
	if !ok {
		if ss, ok := o.With[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Factory builds a filter from options.
type Factory func(o Options) (Filter, error)

// Registry maps filter names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the filter called name.
func (r *Registry) Build(name string, o Options) (Filter, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown filter %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	filter, err := f(o)
	if err != nil {
		return nil, fmt.Errorf("configuring filter %q: %w", name, err)
	}
	return filter, nil
}

// Default returns a registry holding every built-in filter.
func Default() *Registry {
	r := NewRegistry()
	r.Register("htmlmin", newHTMLMin)
	r.Register("cssmin", newCSSMin)
	r.Register("jsmin", newJSMin)
	r.Register("autoprefix", newAutoprefix)
	r.Register("sass", newSass(nil))
	r.Register("imagemin", newImagemin)
	r.Register("sourcemaps-init", newSourcemapsInit)
	r.Register("sourcemaps-write", newSourcemapsWrite)
	return r
}

// Func adapts a function to the Filter interface.
type Func struct {
	FilterName string
	Fn         func(ctx context.Context, f *File) ([]*File, error)
}

func (f Func) Name() string { return f.FilterName }

func (f Func) Apply(ctx context.Context, file *File) ([]*File, error) {
	return f.Fn(ctx, file)
}

// Chain applies filters in order; each stage receives every file produced by
// the previous one.
func Chain(ctx context.Context, chain []Filter, f *File) ([]*File, error) {
	files := []*File{f}
	for _, filter := range chain {
		var next []*File
		for _, in := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := filter.Apply(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", filter.Name(), err)
			}
			next = append(next, out...)
		}
		files = next
	}
	return files, nil
}
