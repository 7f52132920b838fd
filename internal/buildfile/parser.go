package buildfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// Parse validates data against the schema and decodes it. source names the
// document in error messages.
func Parse(data []byte, source string) (*File, error) {
	res, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if !res.Valid {
		return nil, &ValidationError{Source: source, Issues: res.Issues}
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	return &f, nil
}

// LoadFile reads and parses the build script at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build script: %w", err)
	}
	return Parse(data, path)
}

// Load reads dir/madfront.yaml. A project without one gets the default
// build script; found reports whether the file existed.
func Load(dir string) (f *File, found bool, err error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		f, err := Default()
		return f, false, err
	}
	f, err = LoadFile(path)
	return f, true, err
}
