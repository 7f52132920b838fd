package buildfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/buildfile.schema.json
var schemaBytes []byte

const schemaURL = "buildfile.schema.json"

var printer = message.NewPrinter(language.English)

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is a single schema violation.
type ValidationIssue struct {
	Path    string // instance location, e.g. "/tasks/styles/dest"
	Message string
	Keyword string
}

func (i ValidationIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError is returned by Parse when the document violates the
// schema. It lists every issue.
type ValidationError struct {
	Source string
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is invalid:", e.Source)
	for _, issue := range e.Issues {
		b.WriteString("\n  ")
		b.WriteString(issue.String())
	}
	return b.String()
}

// schema compiles the embedded schema on first use.
var schema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling schema JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return compiled, nil
})

// Validate checks raw YAML against the build script schema. The error is for
// unparseable YAML or a broken schema; violations go in the result.
func Validate(data []byte) (*ValidationResult, error) {
	sch, err := schema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	jsonData, err := sonic.Marshal(stringKeys(raw))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}

	var ve *jsonschema.ValidationError
	switch err := sch.Validate(inst); {
	case err == nil:
		return &ValidationResult{Valid: true}, nil
	case errors.As(err, &ve):
		return &ValidationResult{Issues: issuesOf(ve)}, nil
	default:
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}
}

// issuesOf flattens the error tree to its leaves, sorted by location. The
// combinator nodes that only say a branch failed are dropped. Leaves without
// an instance location (propertyNames reports the key itself) take the
// location of their nearest ancestor that has one.
func issuesOf(ve *jsonschema.ValidationError) []ValidationIssue {
	seen := make(map[ValidationIssue]bool)
	var issues []ValidationIssue
	var walk func(e *jsonschema.ValidationError, parent []string)
	walk = func(e *jsonschema.ValidationError, parent []string) {
		loc := e.InstanceLocation
		if len(loc) == 0 {
			loc = parent
		}
		for _, cause := range e.Causes {
			walk(cause, loc)
		}
		if len(e.Causes) > 0 || e.ErrorKind == nil {
			return
		}
		issue := leafIssue(e, loc)
		if issue.Keyword == "" || combinators[issue.Keyword] || seen[issue] {
			return
		}
		seen[issue] = true
		issues = append(issues, issue)
	}
	walk(ve, nil)

	if len(issues) == 0 {
		return []ValidationIssue{{Message: ve.Error()}}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues
}

var combinators = map[string]bool{"oneOf": true, "anyOf": true, "allOf": true, "$ref": true}

func leafIssue(e *jsonschema.ValidationError, loc []string) ValidationIssue {
	var issue ValidationIssue
	if len(loc) > 0 {
		issue.Path = "/" + strings.Join(loc, "/")
	}
	if kw := e.ErrorKind.KeywordPath(); len(kw) > 0 {
		issue.Keyword = kw[len(kw)-1]
	}
	issue.Message = e.ErrorKind.LocalizedString(printer)
	return issue
}

// stringKeys converts the map[any]any nodes YAML can produce into
// string-keyed maps JSON accepts.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = stringKeys(e)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range val {
			val[i] = stringKeys(e)
		}
		return val
	default:
		return val
	}
}
