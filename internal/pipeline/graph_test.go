package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraphValid(t *testing.T) {
	g, err := NewGraph(Layout{}, testTasks())
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout, g.Layout())

	build, ok := g.Get("build")
	require.True(t, ok)
	assert.Equal(t, []string{"clean", "wiredep", "html", "styles", "scripts", "extras", "report"}, build.Deps())

	var names []string
	for _, tr := range g.Transforms() {
		names = append(names, tr.Name)
	}
	assert.Equal(t, []string{"extras", "html", "scripts", "styles"}, names)
}

func TestGraphIsImmutable(t *testing.T) {
	tasks := testTasks()
	g, err := NewGraph(Layout{}, tasks)
	require.NoError(t, err)

	tasks[0].Src[0] = "changed/**"
	got, _ := g.Get(tasks[0].Name)
	assert.NotEqual(t, "changed/**", got.Src[0])

	got.Src[0] = "changed/**"
	again, _ := g.Get(tasks[0].Name)
	assert.NotEqual(t, "changed/**", again.Src[0])
}

func TestNewGraphErrors(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		tasks  []Task
		want   string
	}{
		{
			name:  "undefined reference",
			tasks: []Task{{Name: "build", Kind: KindSeries, Steps: []Step{{Task: "html"}}}},
			want:  `task "build": references undefined task "html"`,
		},
		{
			name: "duplicate",
			tasks: []Task{
				{Name: "clean", Kind: KindBuiltin, Builtin: BuiltinClean},
				{Name: "clean", Kind: KindBuiltin, Builtin: BuiltinClean},
			},
			want: `task "clean": defined twice`,
		},
		{
			name:  "unknown builtin",
			tasks: []Task{{Name: "deploy", Kind: KindBuiltin, Builtin: "deploy"}},
			want:  `unknown builtin "deploy"`,
		},
		{
			name:  "transform without src",
			tasks: []Task{{Name: "html", Kind: KindTransform, Dest: "dist"}},
			want:  "needs at least one src glob",
		},
		{
			name:  "dest outside project",
			tasks: []Task{{Name: "html", Kind: KindTransform, Src: []string{"src/*.html"}, Dest: "../out"}},
			want:  `dest "../out" leaves the project`,
		},
		{
			name:  "bad when",
			tasks: []Task{{Name: "css", Kind: KindTransform, Src: []string{"a"}, Dest: "dist", Filters: []FilterRef{{Name: "cssmin", When: "staging"}}}},
			want:  `when must be development or production`,
		},
		{
			name:   "dist is project root",
			layout: Layout{Src: "src", Dist: "."},
			want:   `dist "." must be a subdirectory`,
		},
		{
			name:  "self reference",
			tasks: []Task{{Name: "all", Kind: KindParallel, Members: []string{"all"}}},
			want:  "references itself",
		},
		{
			name:  "unknown kind",
			tasks: []Task{{Name: "x", Kind: "loop"}},
			want:  `unknown kind "loop"`,
		},
		{
			name:  "watch on serve",
			tasks: []Task{{Name: "serve", Kind: KindBuiltin, Builtin: BuiltinServe, Watch: []string{"src/**"}}},
			want:  "only wiredep can be re-run by watch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.layout, tt.tasks)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGraph)
			assert.NotErrorIs(t, err, ErrCycle)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewGraphReportsEveryIssue(t *testing.T) {
	_, err := NewGraph(Layout{}, []Task{
		{Name: "a", Kind: KindSeries, Steps: []Step{{Task: "x"}}},
		{Name: "b", Kind: KindParallel, Members: []string{"y"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestNewGraphCycle(t *testing.T) {
	_, err := NewGraph(Layout{}, []Task{
		{Name: "a", Kind: KindSeries, Steps: []Step{{Task: "b"}}},
		{Name: "b", Kind: KindSeries, Steps: []Step{{Parallel: []string{"c"}}}},
		{Name: "c", Kind: KindParallel, Members: []string{"a"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycle)
	assert.ErrorIs(t, err, ErrInvalidGraph)

	var ge *GraphError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, "a -> b -> c -> a", ge.Msg)
}

func TestTaskMatching(t *testing.T) {
	extras := Task{
		Name:    "extras",
		Kind:    KindTransform,
		Src:     []string{"src/*"},
		Exclude: []string{"src/*.html", "src/scss"},
	}
	assert.True(t, extras.Matches("src/robots.txt"))
	assert.True(t, extras.Matches("src/.htaccess"))
	assert.False(t, extras.Matches("src/index.html"))
	assert.False(t, extras.Matches("src/scss"))
	assert.False(t, extras.Matches("src/js/main.js"))

	styles := Task{
		Kind:    KindTransform,
		Src:     []string{"src/scss/**/*.scss"},
		Exclude: []string{"src/scss/**/_*.scss"},
		Watch:   []string{"src/scss/**/*.scss"},
	}
	assert.False(t, styles.Matches("src/scss/_vars.scss"))
	assert.True(t, styles.Triggers("src/scss/partials/_vars.scss"))

	styles.Watch = nil
	assert.False(t, styles.Triggers("src/scss/_vars.scss"))
	assert.True(t, styles.Triggers("src/scss/main.scss"))

	wire := Task{Kind: KindBuiltin, Builtin: BuiltinWiredep, Src: []string{"src/*.html"}}
	assert.False(t, wire.Triggers("src/index.html"))
	wire.Watch = []string{"bower.json"}
	assert.True(t, wire.Triggers("bower.json"))
}

func TestFilterRefEnabled(t *testing.T) {
	assert.True(t, FilterRef{}.Enabled(true))
	assert.True(t, FilterRef{}.Enabled(false))
	assert.True(t, FilterRef{When: WhenDevelopment}.Enabled(true))
	assert.False(t, FilterRef{When: WhenDevelopment}.Enabled(false))
	assert.True(t, FilterRef{When: WhenProduction}.Enabled(false))
}
