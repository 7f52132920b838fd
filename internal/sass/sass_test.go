package sass

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestBuildArgs(t *testing.T) {
	got := strings.Join(buildArgs(Request{LoadPaths: []string{"/p/src/scss"}}), " ")
	want := "--stdin --style=compressed --no-source-map --load-path=/p/src/scss"
	if got != want {
		t.Errorf("buildArgs = %q, want %q", got, want)
	}

	got = strings.Join(buildArgs(Request{Style: StyleExpanded, SourceMap: true, Indented: true}), " ")
	want = "--stdin --style=expanded --indented --embed-source-map --embed-sources"
	if got != want {
		t.Errorf("buildArgs = %q, want %q", got, want)
	}
}

func TestExtractSourceMapPercentEncoded(t *testing.T) {
	in := []byte("a{color:red}\n\n/*# sourceMappingURL=data:application/json;charset=utf-8,%7B%22version%22:3%7D */\n")
	css, sm, err := ExtractSourceMap(in)
	if err != nil {
		t.Fatalf("ExtractSourceMap: %v", err)
	}
	if string(css) != "a{color:red}\n" {
		t.Errorf("css = %q", css)
	}
	if string(sm) != `{"version":3}` {
		t.Errorf("source map = %q", sm)
	}
}

func TestExtractSourceMapBase64(t *testing.T) {
	in := []byte("a{color:red}/*# sourceMappingURL=data:application/json;base64,eyJ2ZXJzaW9uIjozfQ== */")
	css, sm, err := ExtractSourceMap(in)
	if err != nil {
		t.Fatalf("ExtractSourceMap: %v", err)
	}
	if string(css) != "a{color:red}\n" {
		t.Errorf("css = %q", css)
	}
	if string(sm) != `{"version":3}` {
		t.Errorf("source map = %q", sm)
	}
}

func TestExtractSourceMapAbsent(t *testing.T) {
	in := []byte("a{color:red}")
	css, sm, err := ExtractSourceMap(in)
	if err != nil {
		t.Fatalf("ExtractSourceMap: %v", err)
	}
	if string(css) != "a{color:red}" || sm != nil {
		t.Errorf("got (%q, %q), want input unchanged and no map", css, sm)
	}
}

func TestLabelSourceMap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []any
	}{
		{"stdin data url", `{"version":3,"sources":["data:;charset=utf-8,a%7Bb:c%7D","_vars.scss"],"mappings":"AAAA"}`, []any{"src/scss/main.scss", "_vars.scss"}},
		{"dash", `{"version":3,"sources":["-"],"mappings":"AAAA"}`, []any{"src/scss/main.scss"}},
		{"missing sources", `{"version":3}`, []any{"src/scss/main.scss"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := LabelSourceMap([]byte(tt.in), "src/scss/main.scss", "main.css")
			if err != nil {
				t.Fatalf("LabelSourceMap: %v", err)
			}
			var m map[string]any
			if err := sonic.Unmarshal(out, &m); err != nil {
				t.Fatalf("result is not JSON: %v", err)
			}
			if !reflect.DeepEqual(m["sources"], tt.want) {
				t.Errorf("sources = %v, want %v", m["sources"], tt.want)
			}
			if m["file"] != "main.css" {
				t.Errorf("file = %v, want main.css", m["file"])
			}
		})
	}
}

func TestLabelSourceMapInvalid(t *testing.T) {
	if _, err := LabelSourceMap([]byte("not json"), "a.scss", ""); err == nil {
		t.Fatal("expected error for a malformed map")
	}
}

func TestExecCompilerMissingBinary(t *testing.T) {
	c := &ExecCompiler{
		Binary:   "sass",
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}
	_, err := c.Compile(context.Background(), Request{Source: []byte("a{}")})
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("error = %v, want ErrNotInstalled", err)
	}
}

func TestExecCompilerRealBinary(t *testing.T) {
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("sass not available, skipping")
	}
	c := NewExecCompiler()

	res, err := c.Compile(context.Background(), Request{Source: []byte("$c: red;\n.a { .b { color: $c; } }\n")})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(string(res.CSS), ".a .b{color:red}") {
		t.Errorf("unexpected css %q", res.CSS)
	}

	if _, err := c.Compile(context.Background(), Request{Source: []byte(".a { color: red;"), Path: "main.scss"}); err == nil {
		t.Error("expected error for malformed stylesheet")
	}
}
