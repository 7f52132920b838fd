// Package branding holds the product identity: the command name, the
// dot-directory under $HOME, the environment variable prefix and the name a
// new project gets by default. The values live in branding.yaml next to this
// file and are baked into the binary with //go:embed.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

// Identity is the decoded branding.yaml.
type Identity struct {
	CLIName        string `yaml:"cli_name"`
	DisplayName    string `yaml:"display_name"`
	Description    string `yaml:"description"`
	HomeDir        string `yaml:"home_dir"`
	EnvPrefix      string `yaml:"env_prefix"`
	DefaultAppName string `yaml:"default_app_name"`
}

var fallback = Identity{
	CLIName:        "madfront",
	DisplayName:    "Madfront",
	Description:    "Front-end project generator and build pipeline runner",
	HomeDir:        ".madfront",
	EnvPrefix:      "MADFRONT",
	DefaultAppName: "Madfront",
}

// Current returns the embedded identity. Fields missing from the file keep
// their fallback values.
var Current = sync.OnceValue(func() Identity {
	id := fallback
	_ = yaml.Unmarshal(rawBranding, &id)
	return id
})

func CLIName() string        { return Current().CLIName }
func DisplayName() string    { return Current().DisplayName }
func Description() string    { return Current().Description }
func HomeDir() string        { return Current().HomeDir }
func EnvPrefix() string      { return Current().EnvPrefix }
func DefaultAppName() string { return Current().DefaultAppName }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("port") → "MADFRONT_PORT".
func EnvVar(suffix string) string {
	return Current().EnvPrefix + "_" + strings.ToUpper(suffix)
}
