package installer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// fakeTool writes an executable shell script named name into dir.
func fakeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

func project(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func lookIn(bin string) func(string) (string, error) {
	return func(name string) (string, error) {
		p := filepath.Join(bin, name)
		if _, err := os.Stat(p); err != nil {
			return "", err
		}
		return p, nil
	}
}

func TestInstallRunsNpmThenBower(t *testing.T) {
	bin := t.TempDir()
	dir := project(t, "package.json", "bower.json")
	log := filepath.Join(dir, "calls.log")
	fakeTool(t, bin, "npm", `echo "npm $@ $(pwd)" >> `+log)
	fakeTool(t, bin, "bower", `echo "bower $@" >> `+log)

	var out bytes.Buffer
	inst := &Installer{Stdout: &out, Stderr: &out, LookPath: lookIn(bin)}
	if err := inst.Install(context.Background(), dir); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("calls = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "npm install ") {
		t.Errorf("first call = %q", lines[0])
	}
	if lines[1] != "bower install" {
		t.Errorf("second call = %q", lines[1])
	}
}

func TestInstallPrefersLocalBower(t *testing.T) {
	bin := t.TempDir()
	dir := project(t, "bower.json")
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", ".bin"), 0755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(dir, "local.ran")
	fakeTool(t, filepath.Join(dir, "node_modules", ".bin"), "bower", "touch "+marker)

	inst := &Installer{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, LookPath: lookIn(bin)}
	if err := inst.Install(context.Background(), dir); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("local bower was not used")
	}
}

func TestInstallMissingTool(t *testing.T) {
	dir := project(t, "package.json")
	inst := &Installer{LookPath: lookIn(t.TempDir())}

	err := inst.Install(context.Background(), dir)
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Install() error = %v, want ErrToolNotFound", err)
	}
}

func TestInstallFailurePropagates(t *testing.T) {
	bin := t.TempDir()
	dir := project(t, "package.json", "bower.json")
	fakeTool(t, bin, "npm", `echo "npm ERR! network timeout" >&2; exit 1`)
	marker := filepath.Join(dir, "bower.ran")
	fakeTool(t, bin, "bower", "touch "+marker)

	var stderr bytes.Buffer
	inst := &Installer{Stdout: &bytes.Buffer{}, Stderr: &stderr, LookPath: lookIn(bin)}
	err := inst.Install(context.Background(), dir)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "npm install") || !strings.Contains(err.Error(), "network timeout") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(stderr.String(), "network timeout") {
		t.Error("tool stderr was not forwarded")
	}
	if _, err := os.Stat(marker); err == nil {
		t.Error("bower ran after npm failed")
	}
}

func TestInstallSkipsMissingManifests(t *testing.T) {
	dir := project(t)
	inst := &Installer{LookPath: lookIn(t.TempDir())}
	if err := inst.Install(context.Background(), dir); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
}
