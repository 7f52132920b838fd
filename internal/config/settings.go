package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/madfront-labs/madfront/internal/branding"
)

// Mode selects between development and production builds.
type Mode string

const (
	// Development enables stylesheet source maps.
	Development Mode = "development"
	// Production disables source maps.
	Production Mode = "production"
)

// DefaultPort is the dev-server port used when nothing overrides it.
const DefaultPort = 3000

// ParseMode accepts the long names and the usual short forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development":
		return Development, nil
	case "prod", "production":
		return Production, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be development or production", s)
	}
}

// IsDevelopment reports whether source maps should be generated.
func (m Mode) IsDevelopment() bool { return m == Development }

// Settings are the resolved per-invocation pipeline settings.
type Settings struct {
	Mode Mode
	Port int
	// PortSet reports whether Port came from the command line, the
	// environment or the config file rather than the default.
	PortSet bool
	Debug   bool
}

// Overrides carries values given on the command line. Empty fields are ignored.
type Overrides struct {
	Env  string
	Port int
}

// mode picks the build mode. --env, MADFRONT_ENV and the config file must
// name a mode; NODE_ENV is shared with node tooling, so values such as "test"
// fall back to development.
func (s *Store) mode(flag string) (Mode, error) {
	if flag != "" {
		return ParseMode(flag)
	}
	if env := os.Getenv(branding.EnvVar("ENV")); env != "" {
		return ParseMode(env)
	}
	if env := os.Getenv("NODE_ENV"); env != "" {
		m, err := ParseMode(env)
		if err != nil {
			s.logger().WithField("NODE_ENV", env).Debug("unrecognized NODE_ENV, using development")
			return Development, nil
		}
		return m, nil
	}
	return ParseMode(s.v.GetString(KeyEnv))
}

// Settings resolves pipeline settings. Precedence, highest first:
// command-line overrides, MADFRONT_* environment, NODE_ENV (mode only),
// the user config file, defaults.
func (s *Store) Settings(o Overrides) (*Settings, error) {
	v := s.v
	mode, err := s.mode(o.Env)
	if err != nil {
		return nil, err
	}

	port, portSet := DefaultPort, v.IsSet(KeyPort)
	if portSet {
		port = v.GetInt(KeyPort)
	}
	if o.Port != 0 {
		port, portSet = o.Port, true
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	return &Settings{
		Mode:    mode,
		Port:    port,
		PortSet: portSet,
		Debug:   s.Debug(),
	}, nil
}
