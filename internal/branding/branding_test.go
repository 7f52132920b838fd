package branding

import "testing"

func TestEmbeddedValues(t *testing.T) {
	if got := CLIName(); got != "madfront" {
		t.Errorf("CLIName() = %q, want %q", got, "madfront")
	}
	if got := DefaultAppName(); got != "Madfront" {
		t.Errorf("DefaultAppName() = %q, want %q", got, "Madfront")
	}
}

func TestEnvVar(t *testing.T) {
	tests := []struct {
		suffix string
		want   string
	}{
		{"env", "MADFRONT_ENV"},
		{"PORT", "MADFRONT_PORT"},
		{"debug", "MADFRONT_DEBUG"},
	}
	for _, tt := range tests {
		if got := EnvVar(tt.suffix); got != tt.want {
			t.Errorf("EnvVar(%q) = %q, want %q", tt.suffix, got, tt.want)
		}
	}
}

func TestCurrentMatchesAccessors(t *testing.T) {
	id := Current()
	if id.HomeDir != HomeDir() || id.EnvPrefix != EnvPrefix() {
		t.Errorf("Current() = %+v disagrees with the accessors", id)
	}
	if id.HomeDir != ".madfront" {
		t.Errorf("HomeDir = %q, want .madfront", id.HomeDir)
	}
}
