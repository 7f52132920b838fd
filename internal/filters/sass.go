package filters

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/madfront-labs/madfront/internal/sass"
)

// newSass returns a factory bound to compiler, or to the sass binary on
// PATH when compiler is nil.
func newSass(compiler sass.Compiler) Factory {
	return func(o Options) (Filter, error) {
		c := compiler
		if c == nil {
			c = sass.NewExecCompiler()
		}
		style := sass.Style(o.String("style", string(sass.StyleCompressed)))
		loadPaths := o.Strings("load_paths")
		return &sassFilter{compiler: c, style: style, loadPaths: loadPaths, projectDir: o.ProjectDir}, nil
	}
}

// SassFactory lets callers register the sass filter with a specific compiler.
func SassFactory(c sass.Compiler) Factory { return newSass(c) }

type sassFilter struct {
	compiler   sass.Compiler
	style      sass.Style
	loadPaths  []string
	projectDir string
}

func (s *sassFilter) Name() string { return "sass" }

// Apply compiles .scss and .sass files and renames them to .css. Other
// files pass through untouched.
func (s *sassFilter) Apply(ctx context.Context, f *File) ([]*File, error) {
	ext := f.Ext()
	if ext != ".scss" && ext != ".sass" {
		return []*File{f}, nil
	}

	loadPaths := make([]string, 0, len(s.loadPaths)+1)
	if s.projectDir != "" && f.Source != "" {
		loadPaths = append(loadPaths, filepath.Join(s.projectDir, filepath.FromSlash(path.Dir(f.Source))))
	}
	for _, p := range s.loadPaths {
		if !filepath.IsAbs(p) && s.projectDir != "" {
			p = filepath.Join(s.projectDir, filepath.FromSlash(p))
		}
		loadPaths = append(loadPaths, p)
	}

	res, err := s.compiler.Compile(ctx, sass.Request{
		Source:    f.Contents,
		Path:      f.Source,
		LoadPaths: loadPaths,
		Style:     s.style,
		SourceMap: f.WantSourceMap,
		Indented:  ext == ".sass",
	})
	if err != nil {
		return nil, err
	}

	source := f.Source
	if source == "" {
		source = f.Path
	}
	f.Contents = res.CSS
	f.Path = strings.TrimSuffix(f.Path, path.Ext(f.Path)) + ".css"
	if f.WantSourceMap && len(res.SourceMap) > 0 {
		sm, err := sass.LabelSourceMap(res.SourceMap, source, path.Base(f.Path))
		if err != nil {
			return nil, err
		}
		f.SourceMap = sm
	}
	return []*File{f}, nil
}
