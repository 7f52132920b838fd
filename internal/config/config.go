package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/madfront-labs/madfront/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Keys accepted in the user config file.
const (
	KeyEnv         = "env"
	KeyPort        = "port"
	KeyDebug       = "debug"
	KeyDefaultName = "default_name"
)

// Keys lists every known key in display order.
var Keys = []string{KeyEnv, KeyPort, KeyDebug, KeyDefaultName}

// ErrUnknownKey is returned by Set for keys outside Keys.
var ErrUnknownKey = errors.New("unknown config key")

// Dir returns the madfront config directory: $MADFRONT_HOME when set,
// otherwise ~/.madfront.
func Dir() string {
	if dir := os.Getenv(branding.EnvVar("HOME")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// Store is the user config file layered under MADFRONT_* environment
// variables.
type Store struct {
	// Logger receives debug notes about how settings were resolved; nil
	// means the logrus standard logger.
	Logger log.FieldLogger

	v    *viper.Viper
	path string
}

func (s *Store) logger() log.FieldLogger {
	if s.Logger == nil {
		return log.StandardLogger()
	}
	return s.Logger
}

// Open reads the user config file. A missing file gives an empty store.
func Open() (*Store, error) {
	path := FilePath()
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	v.SetEnvPrefix(branding.EnvPrefix())
	v.AutomaticEnv()
	return &Store{v: v, path: path}, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return v, nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string { return s.path }

// Get returns the value of key, or "" when unset.
func (s *Store) Get(key string) string {
	return s.v.GetString(key)
}

// Set validates value, stores it under key and saves the file. Only the
// file's own contents are written back, never environment values.
func (s *Store) Set(key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w %q (known keys: %v)", ErrUnknownKey, key, Keys)
	}
	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	file, err := readFile(s.path)
	if err != nil {
		return err
	}
	file.Set(key, typed)
	if err := file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	s.v.Set(key, typed)
	return nil
}

func parseValue(key, value string) (any, error) {
	switch key {
	case KeyEnv:
		m, err := ParseMode(value)
		if err != nil {
			return nil, err
		}
		return string(m), nil
	case KeyPort:
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q", value)
		}
		return port, nil
	case KeyDebug:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid debug value %q: %w", value, err)
		}
		return b, nil
	}
	return value, nil
}

// Debug reports whether debug logging is switched on in the file or by
// MADFRONT_DEBUG.
func (s *Store) Debug() bool {
	return s.v.GetBool(KeyDebug)
}

// DefaultAppName returns the project name offered by "madfront new" when the
// user types nothing.
func (s *Store) DefaultAppName() string {
	if name := s.Get(KeyDefaultName); name != "" {
		return name
	}
	return branding.DefaultAppName()
}
