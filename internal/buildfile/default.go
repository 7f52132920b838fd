package buildfile

import (
	"bytes"
	_ "embed"
)

//go:embed default.yaml
var defaultSource []byte

// DefaultSource returns the build script new projects are generated with.
func DefaultSource() []byte {
	return bytes.Clone(defaultSource)
}

// Default parses DefaultSource.
func Default() (*File, error) {
	return Parse(defaultSource, "default "+FileName)
}
