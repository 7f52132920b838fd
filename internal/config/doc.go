// Package config manages user-level settings stored at ~/.madfront/config.yaml
// and resolves the per-invocation pipeline settings (development or production
// mode, dev-server port, debug logging) from flags, environment and that file.
package config
