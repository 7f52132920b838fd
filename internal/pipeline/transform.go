package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/sourcegraph/conc/pool"

	"github.com/madfront-labs/madfront/internal/filters"
	"github.com/madfront-labs/madfront/internal/fsutil"
)

// source is one matched input file.
type source struct {
	// rel is the project-relative path.
	rel string
	// out is the path below the destination, relative to the glob base.
	out string
}

// collect expands the task's globs. Each match keeps its path relative to
// the static part of the glob that found it; a file matched by several
// globs is read once.
func (r *Runner) collect(t *Task) ([]source, error) {
	seen := make(map[string]bool)
	var out []source
	for _, pattern := range t.Src {
		base, rest := doublestar.SplitPattern(pattern)
		baseDir := filepath.Join(r.dir, filepath.FromSlash(base))
		if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(baseDir), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			rel := path.Join(base, m)
			if seen[rel] || t.Excluded(rel) {
				continue
			}
			seen[rel] = true
			out = append(out, source{rel: rel, out: m})
		}
	}
	return out, nil
}

func (r *Runner) chain(t *Task) ([]filters.Filter, error) {
	var chain []filters.Filter
	for _, ref := range t.Filters {
		if !ref.Enabled(r.opts.Development) {
			continue
		}
		f, err := r.opts.Filters.Build(ref.Name, filters.Options{
			With:        ref.With,
			Development: r.opts.Development,
			ProjectDir:  r.dir,
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	return chain, nil
}

// transform reads every source, runs the filter chain on a bounded pool and
// writes the results only when every file succeeded.
func (x *execution) transform(ctx context.Context, t *Task) ([]Output, error) {
	chain, err := x.r.chain(t)
	if err != nil {
		return nil, err
	}
	sources, err := x.r.collect(t)
	if err != nil {
		return nil, err
	}

	results := make([][]*filters.File, len(sources))
	p := pool.New().
		WithMaxGoroutines(x.r.opts.Concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, src := range sources {
		p.Go(func(ctx context.Context) error {
			abs := filepath.Join(x.r.dir, filepath.FromSlash(src.rel))
			info, err := os.Stat(abs)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return err
			}
			out, err := filters.Chain(ctx, chain, &filters.File{
				Path:     src.out,
				Source:   src.rel,
				Contents: data,
				Mode:     info.Mode().Perm(),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", src.rel, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	dest := filepath.Join(x.r.dir, filepath.FromSlash(t.Dest))
	var outputs []Output
	for _, files := range results {
		for _, f := range files {
			clean := path.Clean("/" + f.Path)[1:]
			if clean == "" {
				return outputs, fmt.Errorf("%s: empty output path", f.Source)
			}
			if err := fsutil.WriteFile(filepath.Join(dest, filepath.FromSlash(clean)), f.Contents, f.Mode); err != nil {
				return outputs, err
			}
			outputs = append(outputs, Output{Path: path.Join(t.Dest, clean), Size: int64(len(f.Contents))})
		}
	}

	var total int64
	for _, o := range outputs {
		total += o.Size
	}
	x.log.WithField("task", t.Name).Debugf("%d files, %s", len(outputs), humanize.Bytes(uint64(total)))
	return outputs, nil
}
