// Package sass compiles SCSS through an external Dart Sass binary.
package sass

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrNotInstalled is returned when no sass binary can be found.
var ErrNotInstalled = errors.New("sass binary not found")

// Style is the output style passed to the compiler.
type Style string

const (
	StyleExpanded   Style = "expanded"
	StyleCompressed Style = "compressed"
)

// Request describes one stylesheet compilation.
type Request struct {
	Source    []byte
	Path      string // used for error messages only
	LoadPaths []string
	Style     Style
	SourceMap bool
	Indented  bool // .sass syntax
}

// Result is the compiled stylesheet. SourceMap is the raw JSON map when one
// was requested.
type Result struct {
	CSS       []byte
	SourceMap []byte
}

// Compiler turns SCSS into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) (*Result, error)
}

// ExecCompiler runs the sass command line, reading the stylesheet from stdin.
type ExecCompiler struct {
	// Binary is the executable name or path; defaults to "sass".
	Binary string
	// LookPath can be replaced in tests; defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

// NewExecCompiler returns a compiler that invokes "sass" from PATH.
func NewExecCompiler() *ExecCompiler {
	return &ExecCompiler{Binary: "sass", LookPath: exec.LookPath}
}

// Compile runs sass --stdin and returns its output. A non-zero exit is
// reported with the compiler's first error line.
func (c *ExecCompiler) Compile(ctx context.Context, req Request) (*Result, error) {
	binary := c.Binary
	if binary == "" {
		binary = "sass"
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin, err := lookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	cmd := exec.CommandContext(ctx, bin, buildArgs(req)...)
	cmd.Stdin = bytes.NewReader(req.Source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := firstLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if req.Path != "" {
			return nil, fmt.Errorf("compiling %s: %s", req.Path, msg)
		}
		return nil, fmt.Errorf("compiling stylesheet: %s", msg)
	}

	css, sourceMap, err := ExtractSourceMap(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return &Result{CSS: css, SourceMap: sourceMap}, nil
}

func buildArgs(req Request) []string {
	style := req.Style
	if style == "" {
		style = StyleCompressed
	}
	args := []string{"--stdin", "--style=" + string(style)}
	if req.Indented {
		args = append(args, "--indented")
	}
	if req.SourceMap {
		args = append(args, "--embed-source-map", "--embed-sources")
	} else {
		args = append(args, "--no-source-map")
	}
	for _, p := range req.LoadPaths {
		args = append(args, "--load-path="+p)
	}
	return args
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

var sourceMapComment = regexp.MustCompile(`(?s)\s*/\*# sourceMappingURL=data:application/json(;charset=utf-8)?(;base64)?,(.*?) \*/\s*$`)

// ExtractSourceMap strips a trailing inline sourceMappingURL comment from css
// and returns the decoded map. Input without such a comment is returned as is.
func ExtractSourceMap(css []byte) ([]byte, []byte, error) {
	m := sourceMapComment.FindSubmatchIndex(css)
	if m == nil {
		return css, nil, nil
	}

	payload := string(css[m[6]:m[7]])
	var decoded []byte
	if m[4] >= 0 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding inline source map: %w", err)
		}
		decoded = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding inline source map: %w", err)
		}
		decoded = []byte(s)
	}

	out := make([]byte, 0, m[0]+1)
	out = append(out, css[:m[0]]...)
	out = append(out, '\n')
	return out, decoded, nil
}

// LabelSourceMap rewrites a compiler map so that it names source instead of
// the placeholder a stdin compilation leaves in "sources", and sets "file".
func LabelSourceMap(sm []byte, source, file string) ([]byte, error) {
	var m map[string]any
	if err := sonic.Unmarshal(sm, &m); err != nil {
		return nil, fmt.Errorf("reading source map: %w", err)
	}
	sources, _ := m["sources"].([]any)
	if len(sources) == 0 {
		sources = []any{source}
	}
	for i, v := range sources {
		if s, _ := v.(string); isStdinSource(s) {
			sources[i] = source
		}
	}
	m["sources"] = sources
	if file != "" {
		m["file"] = file
	}
	return sonic.ConfigStd.Marshal(m)
}

func isStdinSource(s string) bool {
	switch s {
	case "", "-", "stdin":
		return true
	}
	return strings.HasPrefix(s, "data:")
}
