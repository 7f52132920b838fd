package wiredep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head>
  <!-- bower:css -->
  <!-- endbower -->
</head>
<body>
    <!-- bower:js -->
    <!-- endbower -->
</body>
</html>
`

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "bower.json", `{"name":"app","dependencies":{"bootstrap":"~3.4.0"}}`)
	writeFile(t, dir, "bower_components/bootstrap/.bower.json", `{
		"name":"bootstrap","version":"3.4.1",
		"main":["dist/css/bootstrap.css","dist/js/bootstrap.js"],
		"dependencies":{"jquery":">= 1.9.1"}
	}`)
	writeFile(t, dir, "bower_components/jquery/.bower.json", `{"name":"jquery","version":"3.7.1","main":"dist/jquery.js"}`)
	writeFile(t, dir, "src/index.html", page)
	return dir
}

func TestRunInjectsDependenciesFirst(t *testing.T) {
	dir := setupProject(t)

	res, err := Run(dir, []string{"src/index.html"})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"src/index.html"}, res.Rewritten)

	require.Len(t, res.Packages, 2)
	assert.Equal(t, "jquery", res.Packages[0].Name)
	assert.Equal(t, "bootstrap", res.Packages[1].Name)

	got := readFile(t, dir, "src/index.html")
	assert.Contains(t, got, "  <!-- bower:css -->\n  <link rel=\"stylesheet\" href=\"../bower_components/bootstrap/dist/css/bootstrap.css\">\n  <!-- endbower -->")
	assert.Contains(t, got, "    <!-- bower:js -->\n"+
		"    <script src=\"../bower_components/jquery/dist/jquery.js\"></script>\n"+
		"    <script src=\"../bower_components/bootstrap/dist/js/bootstrap.js\"></script>\n"+
		"    <!-- endbower -->")
}

func TestRunIsIdempotent(t *testing.T) {
	dir := setupProject(t)

	_, err := Run(dir, []string{"src/index.html"})
	require.NoError(t, err)
	first := readFile(t, dir, "src/index.html")

	res, err := Run(dir, []string{"src/index.html"})
	require.NoError(t, err)
	assert.Empty(t, res.Rewritten)
	assert.Equal(t, first, readFile(t, dir, "src/index.html"))
}

func TestRunWithoutBowerJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/index.html", page)

	res, err := Run(dir, []string{"src/index.html"})
	require.NoError(t, err)
	assert.Empty(t, res.Packages)
	assert.Equal(t, page, readFile(t, dir, "src/index.html"))
}

func TestRunWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bower.json", `{"dependencies":{"jquery":"^2.0.0","missing":"1.0.0","git":"https://example.com/x.git"}}`)
	writeFile(t, dir, "bower_components/jquery/bower.json", `{"version":"3.7.1","main":"dist/jquery.js"}`)
	writeFile(t, dir, "bower_components/git/bower.json", `{"version":"0.1.0"}`)

	res, err := Run(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`jquery 3.7.1 does not satisfy "^2.0.0" (required by bower.json)`,
		"missing is not installed (required by bower.json)",
	}, res.Warnings)
}

func TestRunHonoursBowerrcAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".bowerrc", `{"directory":"vendor"}`)
	writeFile(t, dir, "bower.json", `{
		"dependencies":{"normalize":"*"},
		"overrides":{"normalize":{"main":"normalize.css"}}
	}`)
	writeFile(t, dir, "vendor/normalize/.bower.json", `{"version":"8.0.1","main":"README.md"}`)
	writeFile(t, dir, "index.html", "<!-- bower:css --><!-- endbower -->\n")

	res, err := Run(dir, []string{"index.html"})
	require.NoError(t, err)
	assert.Equal(t, "vendor", res.Directory)
	assert.Equal(t, "<!-- bower:css -->\n<link rel=\"stylesheet\" href=\"vendor/normalize/normalize.css\">\n<!-- endbower -->\n", readFile(t, dir, "index.html"))
}

func TestRunUnknownBlockKindUntouched(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bower.json", `{}`)
	in := "<!-- bower:less -->\nkeep\n<!-- endbower -->\n"
	writeFile(t, dir, "index.html", in)

	_, err := Run(dir, []string{"index.html"})
	require.NoError(t, err)
	assert.Equal(t, in, readFile(t, dir, "index.html"))
}

func TestRunInvalidBowerJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bower.json", `{`)
	_, err := Run(dir, nil)
	require.Error(t, err)
}
