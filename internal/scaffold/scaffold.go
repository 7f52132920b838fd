package scaffold

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/madfront-labs/madfront/internal/branding"
	"github.com/madfront-labs/madfront/internal/buildfile"
	"github.com/madfront-labs/madfront/internal/fsutil"
)

// ErrNotEmpty is returned when the output directory already has content and
// Force is not set.
var ErrNotEmpty = errors.New("output directory is not empty")

// Answers holds the values collected by the prompt.
type Answers struct {
	AppName string
}

// normalized falls back to the default name when AppName is blank. Other
// names are used exactly as given.
func (a Answers) normalized() Answers {
	if strings.TrimSpace(a.AppName) == "" {
		a.AppName = branding.DefaultAppName()
	}
	return a
}

// TemplateFile maps one embedded template to its place in the project.
type TemplateFile struct {
	Source string // path inside the template FS
	Dest   string // slash path relative to the output directory
	Render bool   // substitute {{.AppName}}
}

// Plan is the ordered list of files every new project gets.
var Plan = []TemplateFile{
	{Source: "bower.json.tmpl", Dest: "bower.json", Render: true},
	{Source: "bowerrc", Dest: ".bowerrc"},
	{Source: "package.json.tmpl", Dest: "package.json", Render: true},
	{Source: "madfront.yaml", Dest: buildfile.FileName},
	{Source: "index.html.tmpl", Dest: "src/index.html", Render: true},
	{Source: "main.scss", Dest: "src/scss/main.scss"},
	{Source: "main.js", Dest: "src/js/main.js"},
	{Source: "robots.txt", Dest: "src/robots.txt"},
	{Source: "favicon.ico", Dest: "src/favicon.ico"},
	{Source: "apple-touch-icon.png", Dest: "src/apple-touch-icon.png"},
}

// Dirs are created empty after the files are written.
var Dirs = []string{"src/images", "src/fonts"}

// Result holds the outcome of a scaffold generation.
type Result struct {
	OutputDir string
	Files     []string
	Dirs      []string
	Warnings  []string
}

// Generator renders Plan from a template FS.
type Generator struct {
	// FS holds the templates named in Plan.
	FS fs.FS
	// Force allows generating into a non-empty directory, overwriting files
	// the plan names.
	Force bool
}

// New returns a generator over the embedded templates.
func New() *Generator {
	return &Generator{FS: templatesFS()}
}

// Generate writes a new project into outputDir with the embedded templates.
func Generate(answers Answers, outputDir string) (*Result, error) {
	return New().Generate(answers, outputDir)
}

type rendered struct {
	dest string
	data []byte
}

// Generate renders every template before touching the disk, so a missing or
// broken template aborts without leaving a partial project.
func (g *Generator) Generate(answers Answers, outputDir string) (*Result, error) {
	answers = answers.normalized()

	files := make([]rendered, 0, len(Plan))
	for _, tf := range Plan {
		data, err := fs.ReadFile(g.FS, tf.Source)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", tf.Source, err)
		}
		if tf.Render {
			data, err = render(tf.Source, data, answers)
			if err != nil {
				return nil, err
			}
		}
		files = append(files, rendered{dest: tf.Dest, data: data})
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if !g.Force {
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			return nil, fmt.Errorf("reading output directory: %w", err)
		}
		if len(entries) > 0 {
			return nil, fmt.Errorf("%w: %s (use --force to write anyway)", ErrNotEmpty, outputDir)
		}
	}

	result := &Result{OutputDir: outputDir}
	for _, f := range files {
		if err := fsutil.WriteFile(filepath.Join(outputDir, filepath.FromSlash(f.dest)), f.data, 0644); err != nil {
			return nil, err
		}
		result.Files = append(result.Files, f.dest)
	}
	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(outputDir, filepath.FromSlash(d)), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", d, err)
		}
		result.Dirs = append(result.Dirs, d)
	}

	// Validate the generated build script against the schema.
	script := filepath.Join(outputDir, buildfile.FileName)
	data, err := os.ReadFile(script)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", script, err)
	}
	valResult, valErr := buildfile.Validate(data)
	if valErr != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not validate build script: %v", valErr))
	} else if !valResult.Valid {
		for _, issue := range valResult.Issues {
			result.Warnings = append(result.Warnings, issue.String())
		}
	}

	return result, nil
}

func render(name string, data []byte, answers Answers) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, answers); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
