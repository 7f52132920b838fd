// Package wiredep injects the main files of installed bower packages into
// HTML files, between <!-- bower:css --> / <!-- bower:js --> and
// <!-- endbower --> markers.
package wiredep

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bytedance/sonic"
)

// DefaultDirectory is where bower installs packages unless .bowerrc says
// otherwise.
const DefaultDirectory = "bower_components"

// Package is one installed bower package.
type Package struct {
	Name    string
	Version string
	// Dir is the package directory relative to the project root.
	Dir string
	// Main lists the package's entry files relative to the project root.
	Main         []string
	Dependencies map[string]string
}

// Files returns the main files with the given extension.
func (p Package) Files(ext string) []string {
	var out []string
	for _, m := range p.Main {
		if strings.EqualFold(path.Ext(m), ext) {
			out = append(out, m)
		}
	}
	return out
}

// Result describes one wiring pass.
type Result struct {
	// Directory is the bower install directory relative to the project root.
	Directory string
	// Packages are ordered so that every package follows its dependencies.
	Packages []Package
	// Rewritten lists the markup files whose content changed.
	Rewritten []string
	Warnings  []string
}

type manifest struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Main         any                 `json:"main"`
	Dependencies map[string]string   `json:"dependencies"`
	Overrides    map[string]override `json:"overrides"`
}

type override struct {
	Main         any               `json:"main"`
	Dependencies map[string]string `json:"dependencies"`
}

type bowerrc struct {
	Directory string `json:"directory"`
}

// Run resolves the packages declared in dir/bower.json and rewrites the
// bower blocks of every markup file (project-relative, slash-separated).
// A project without bower.json is left untouched.
func Run(dir string, markup []string) (*Result, error) {
	root, err := readManifest(filepath.Join(dir, "bower.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Directory: Directory(dir)}
	r := &resolver{
		dir:       dir,
		root:      root,
		res:       res,
		seen:      make(map[string]bool),
		resolving: make(map[string]bool),
	}
	for _, name := range sortedKeys(root.Dependencies) {
		r.visit(name, root.Dependencies[name], "bower.json")
	}

	for _, rel := range markup {
		changed, err := inject(dir, rel, res.Packages)
		if err != nil {
			return nil, err
		}
		if changed {
			res.Rewritten = append(res.Rewritten, rel)
		}
	}
	return res, nil
}

// Directory returns the project-relative bower install directory, read from
// .bowerrc.
func Directory(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, ".bowerrc"))
	if err != nil {
		return DefaultDirectory
	}
	var rc bowerrc
	if err := sonic.Unmarshal(data, &rc); err != nil || rc.Directory == "" {
		return DefaultDirectory
	}
	return path.Clean(filepath.ToSlash(rc.Directory))
}

func readManifest(p string) (*manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}
	return &m, nil
}

type resolver struct {
	dir       string
	root      *manifest
	res       *Result
	seen      map[string]bool
	resolving map[string]bool
}

// visit adds name after its dependencies. Cycles between packages are
// broken at the first revisit.
func (r *resolver) visit(name, constraint, requiredBy string) {
	if r.seen[name] || r.resolving[name] {
		return
	}
	r.resolving[name] = true
	defer delete(r.resolving, name)

	pkgDir := path.Join(r.res.Directory, name)
	m, err := readManifest(filepath.Join(r.dir, filepath.FromSlash(pkgDir), ".bower.json"))
	if errors.Is(err, fs.ErrNotExist) {
		m, err = readManifest(filepath.Join(r.dir, filepath.FromSlash(pkgDir), "bower.json"))
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.warnf("%s is not installed (required by %s)", name, requiredBy)
		} else {
			r.warnf("%s: %v", name, err)
		}
		r.seen[name] = true
		return
	}

	pkg := Package{
		Name:         name,
		Version:      m.Version,
		Dir:          pkgDir,
		Dependencies: m.Dependencies,
	}
	mains := stringList(m.Main)
	if o, ok := r.root.Overrides[name]; ok {
		if o.Main != nil {
			mains = stringList(o.Main)
		}
		if o.Dependencies != nil {
			pkg.Dependencies = o.Dependencies
		}
	}
	for _, mf := range mains {
		pkg.Main = append(pkg.Main, path.Join(pkgDir, path.Clean("/"+filepath.ToSlash(mf))[1:]))
	}
	r.checkVersion(name, m.Version, constraint, requiredBy)

	for _, dep := range sortedKeys(pkg.Dependencies) {
		r.visit(dep, pkg.Dependencies[dep], name)
	}

	r.seen[name] = true
	r.res.Packages = append(r.res.Packages, pkg)
}

// checkVersion warns when an installed version falls outside the declared
// range. Ranges that are not semver (git URLs, tags) are not checked.
func (r *resolver) checkVersion(name, version, constraint, requiredBy string) {
	if version == "" || constraint == "" {
		return
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return
	}
	if !c.Check(v) {
		r.warnf("%s %s does not satisfy %q (required by %s)", name, version, constraint, requiredBy)
	}
}

func (r *resolver) warnf(format string, args ...any) {
	r.res.Warnings = append(r.res.Warnings, fmt.Sprintf(format, args...))
}

// stringList accepts bower's "main" as a string or a list of strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var blockRe = regexp.MustCompile(`(?m)^([ \t]*)<!--\s*bower:(\w+)\s*-->(?s:.*?)<!--\s*endbower\s*-->`)

func inject(dir, rel string, pkgs []Package) (bool, error) {
	p := filepath.Join(dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(p)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", rel, err)
	}

	base := path.Dir(rel)
	var injectErr error
	out := blockRe.ReplaceAllFunc(data, func(block []byte) []byte {
		m := blockRe.FindSubmatch(block)
		indent, kind := string(m[1]), string(m[2])

		var tag func(string) string
		switch kind {
		case "css":
			tag = func(href string) string { return `<link rel="stylesheet" href="` + href + `">` }
		case "js":
			tag = func(src string) string { return `<script src="` + src + `"></script>` }
		default:
			return block
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s<!-- bower:%s -->\n", indent, kind)
		for _, pkg := range pkgs {
			for _, f := range pkg.Files("." + kind) {
				href, err := relativeTo(base, f)
				if err != nil {
					injectErr = err
					return block
				}
				b.WriteString(indent + tag(href) + "\n")
			}
		}
		b.WriteString(indent + "<!-- endbower -->")
		return []byte(b.String())
	})
	if injectErr != nil {
		return false, injectErr
	}
	if bytes.Equal(out, data) {
		return false, nil
	}

	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(p, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing %s: %w", rel, err)
	}
	return true, nil
}

func relativeTo(base, target string) (string, error) {
	r, err := filepath.Rel(filepath.FromSlash(base), filepath.FromSlash(target))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(r), nil
}
