package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/madfront-labs/madfront/internal/filters"
	"github.com/madfront-labs/madfront/internal/notify"
	"github.com/madfront-labs/madfront/internal/sass"
	"github.com/madfront-labs/madfront/internal/watch"
)

// fakeSass copies its input, failing on sources that contain "@error".
type fakeSass struct{}

func (fakeSass) Compile(_ context.Context, req sass.Request) (*sass.Result, error) {
	if bytes.Contains(req.Source, []byte("@error")) {
		return nil, errors.New("expected \"}\"")
	}
	res := &sass.Result{CSS: req.Source}
	if req.SourceMap {
		res.SourceMap = []byte(`{"version":3,"sources":["-"],"mappings":"AAAA"}`)
	}
	return res, nil
}

func testTasks() []Task {
	return []Task{
		{Name: "html", Kind: KindTransform, Src: []string{"src/*.html"}, Dest: "dist",
			Filters: []FilterRef{{Name: "htmlmin"}}},
		{Name: "styles", Kind: KindTransform, Src: []string{"src/scss/**/*.scss"},
			Exclude: []string{"src/scss/**/_*.scss"}, Watch: []string{"src/scss/**/*.scss"}, Dest: "dist/css",
			Filters: []FilterRef{
				{Name: "sourcemaps-init", When: WhenDevelopment},
				{Name: "sass"},
				{Name: "autoprefix", When: WhenProduction},
				{Name: "cssmin", When: WhenProduction},
				{Name: "sourcemaps-write", When: WhenDevelopment},
			}},
		{Name: "scripts", Kind: KindTransform, Src: []string{"src/js/**/*.js"}, Dest: "dist/js",
			Filters: []FilterRef{{Name: "jsmin"}}},
		{Name: "extras", Kind: KindTransform, Src: []string{"src/*"}, Dest: "dist",
			Exclude: []string{"src/*.html", "src/scss", "src/js"}},
		{Name: "clean", Kind: KindBuiltin, Builtin: BuiltinClean},
		{Name: "wiredep", Kind: KindBuiltin, Builtin: BuiltinWiredep, Src: []string{"src/*.html"}, Watch: []string{"bower.json"}},
		{Name: "report", Kind: KindBuiltin, Builtin: BuiltinReport},
		{Name: "assets", Kind: KindParallel, Members: []string{"styles", "scripts"}},
		{Name: "build", Kind: KindSeries, Steps: []Step{
			{Task: "clean"},
			{Task: "wiredep"},
			{Parallel: []string{"html", "styles", "scripts", "extras"}},
			{Task: "report"},
		}},
	}
}

type fixture struct {
	dir      string
	runner   *Runner
	notifier *notify.Recorder
	hook     *test.Hook
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return out
	}
	require.NoError(t, err)
	return out
}

func newFixture(t *testing.T, files map[string]string, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, files)

	g, err := NewGraph(Layout{}, testTasks())
	require.NoError(t, err)

	reg := filters.Default()
	reg.Register("sass", filters.SassFactory(fakeSass{}))
	logger, hook := test.NewNullLogger()
	rec := &notify.Recorder{}

	opts.Dir = dir
	opts.Filters = reg
	opts.Notifier = rec
	opts.Logger = logger
	r, err := New(g, opts)
	require.NoError(t, err)
	return &fixture{dir: dir, runner: r, notifier: rec, hook: hook}
}

var project = map[string]string{
	"src/index.html":            "<!doctype html>\n<html>\n  <body>\n    <!-- comment -->\n    <h1>  Hi  </h1>\n  </body>\n</html>\n",
	"src/scss/main.scss":        "a {\n  user-select: none;\n}\n",
	"src/scss/_vars.scss":       "$c: red;\n",
	"src/scss/pages/about.scss": "b { color: blue; }\n",
	"src/js/main.js":            "function a(){ return 1+1; }",
	"src/robots.txt":            "User-agent: *\n",
	"src/.htaccess":             "Options -Indexes\n",
}

func TestScriptsTaskMinifies(t *testing.T) {
	f := newFixture(t, project, Options{})

	report, err := f.runner.Run(context.Background(), "scripts")
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	assert.NotEmpty(t, report.RunID)

	got := readTree(t, filepath.Join(f.dir, "dist"))
	assert.Equal(t, map[string]string{"js/main.js": "function a(){return 1+1}"}, got)

	res, ok := report.Result("scripts")
	require.True(t, ok)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []Output{{Path: "dist/js/main.js", Size: int64(len("function a(){return 1+1}"))}}, res.Outputs)
}

func TestStylesPreservesNestingAndSkipsPartials(t *testing.T) {
	f := newFixture(t, project, Options{})

	_, err := f.runner.Run(context.Background(), "styles")
	require.NoError(t, err)

	got := readTree(t, filepath.Join(f.dir, "dist"))
	assert.Equal(t, map[string]string{
		"css/main.css":        "a{-webkit-user-select:none;-moz-user-select:none;-ms-user-select:none;user-select:none}",
		"css/pages/about.css": "b{color:blue}",
	}, got)
}

func TestStylesDevelopmentWritesSourceMaps(t *testing.T) {
	f := newFixture(t, map[string]string{"src/scss/main.scss": "a { user-select: none }"}, Options{Development: true})

	_, err := f.runner.Run(context.Background(), "styles")
	require.NoError(t, err)

	// The map describes sass output, so nothing may rewrite the CSS after it.
	got := readTree(t, filepath.Join(f.dir, "dist", "css"))
	assert.Equal(t, "a { user-select: none }\n/*# sourceMappingURL=main.css.map */\n", got["main.css"])
	assert.JSONEq(t, `{"version":3,"sources":["src/scss/main.scss"],"mappings":"AAAA","file":"main.css"}`, got["main.css.map"])
}

func TestFailingTaskIsIsolated(t *testing.T) {
	files := map[string]string{
		"src/scss/main.scss": "a { @error \"broken\"; }",
		"src/js/main.js":     "function a(){ return 1+1; }",
	}
	f := newFixture(t, files, Options{})

	report, err := f.runner.Run(context.Background(), "assets")
	require.NoError(t, err)

	notes := f.notifier.All()
	require.Len(t, notes, 1)
	assert.Equal(t, "styles", notes[0].Title)
	assert.Equal(t, notify.LevelError, notes[0].Level)
	assert.Contains(t, notes[0].Message, "src/scss/main.scss: sass: expected")

	assert.NoDirExists(t, filepath.Join(f.dir, "dist", "css"))
	assert.FileExists(t, filepath.Join(f.dir, "dist", "js", "main.js"))

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "styles", failed[0].Task)
	res, _ := report.Result("scripts")
	assert.Equal(t, StatusOK, res.Status)
}

func TestTaskOnlyWritesItsDestination(t *testing.T) {
	f := newFixture(t, project, Options{})
	writeTree(t, f.dir, map[string]string{
		"dist/js/main.js": "previous",
		"src/js/main.js":  "function (",
	})

	_, err := f.runner.Run(context.Background(), "styles")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(f.dir, "dist", "js", "main.js"))
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestCleanBuildRemovesStaleOutput(t *testing.T) {
	f := newFixture(t, project, Options{})
	writeTree(t, f.dir, map[string]string{
		"dist/old.html":    "stale",
		"dist/css/old.css": "stale",
	})

	report, err := f.runner.Run(context.Background(), "build")
	require.NoError(t, err)
	assert.Empty(t, report.Failed())

	got := readTree(t, filepath.Join(f.dir, "dist"))
	keys := make([]string, 0, len(got))
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{".htaccess", "css/main.css", "css/pages/about.css", "index.html", "js/main.js", "robots.txt"}, keys)
	assert.Equal(t, "<!doctype html><html><body><h1>Hi</h1></body></html>", got["index.html"])

	notes := f.notifier.ByTitle("report")
	require.Len(t, notes, 1)
	assert.True(t, strings.HasPrefix(notes[0].Message, "Build is done! 6 files"))
	assert.Equal(t, notify.LevelInfo, notes[0].Level)
}

func TestBuildReportCountsIsolatedFailures(t *testing.T) {
	files := map[string]string{
		"src/scss/main.scss": "@error",
		"src/js/main.js":     "var a = 1;",
	}
	f := newFixture(t, files, Options{})

	report, err := f.runner.Run(context.Background(), "build")
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)

	notes := f.notifier.ByTitle("report")
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "(1 failed: styles)")
	assert.Equal(t, notify.LevelError, notes[0].Level)
}

func TestBuiltinFailureAbortsSeries(t *testing.T) {
	files := map[string]string{
		"bower.json":     "{",
		"src/index.html": "<html></html>",
	}
	f := newFixture(t, files, Options{})

	report, err := f.runner.Run(context.Background(), "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wiredep: parsing")

	for _, name := range []string{"html", "styles", "scripts", "extras", "report"} {
		res, ok := report.Result(name)
		require.True(t, ok, name)
		assert.Equal(t, StatusSkipped, res.Status, name)
	}
	assert.NoDirExists(t, filepath.Join(f.dir, "dist"))
	assert.Empty(t, f.notifier.All())
}

func TestRunUnknownTask(t *testing.T) {
	f := newFixture(t, nil, Options{})
	_, err := f.runner.Run(context.Background(), "deploy")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestNewRejectsUnknownFilter(t *testing.T) {
	g, err := NewGraph(Layout{}, []Task{
		{Name: "js", Kind: KindTransform, Src: []string{"src/**/*.js"}, Dest: "dist", Filters: []FilterRef{{Name: "uglify"}}},
	})
	require.NoError(t, err)

	_, err = New(g, Options{Dir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), `unknown filter "uglify"`)
}

func TestRunRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	files := map[string]string{"src/scss/main.scss": "@error", "src/js/main.js": "var a;"}
	f := newFixture(t, files, Options{Tracer: tp.Tracer("test")})

	_, err := f.runner.Run(context.Background(), "assets")
	require.NoError(t, err)

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range sr.Ended() {
		spans[s.Name()] = s
	}
	require.Contains(t, spans, "task assets")
	require.Contains(t, spans, "task styles")
	require.Contains(t, spans, "task scripts")

	assert.Equal(t, codes.Error, spans["task styles"].Status().Code)
	assert.Equal(t, codes.Ok, spans["task scripts"].Status().Code)
	assert.Contains(t, spans["task scripts"].Attributes(), attribute.String("madfront.kind", "transform"))
	assert.Equal(t, spans["task assets"].SpanContext().SpanID(), spans["task scripts"].Parent().SpanID())
}

func TestTriggered(t *testing.T) {
	f := newFixture(t, nil, Options{})
	got := f.runner.triggered([]watch.Event{
		{Path: "src/scss/_vars.scss"},
		{Path: "src/js/app/util.js"},
		{Path: "bower.json"},
		{Path: "README.md"},
	})
	assert.Equal(t, []string{"scripts", "styles", "wiredep"}, got)
}

func TestWatchRerunsMatchingTask(t *testing.T) {
	f := newFixture(t, map[string]string{"src/js/main.js": "var a = 1;"}, Options{Debounce: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.runner.Run(ctx, "scripts")
		if err != nil {
			done <- err
			return
		}
		x := f.runner.newExecution()
		done <- x.watch(ctx, f.runner.log)
	}()

	target := filepath.Join(f.dir, "dist", "js", "main.js")
	require.Eventually(t, func() bool {
		_, err := os.Stat(target)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	// The watcher may still be starting; keep touching the source until the
	// rebuilt output shows up.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(f.dir, "src", "js", "main.js"), []byte("var b = 2;"), 0644)
		data, _ := os.ReadFile(target)
		return string(data) == "var b=2"
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
