// Package config holds the environment-driven settings for delta
// operations. The environment is read once at startup via FromEnv and the
// resulting Config is threaded explicitly; no other package consults the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names.
const (
	EnvURL         = "REGDELTA_URL"
	EnvPort        = "REGDELTA_PORT"
	EnvContainer   = "REGDELTA_CONTAINER"
	EnvStorageRoot = "REGDELTA_STORAGE_ROOT"
	EnvForceAPI    = "REGDELTA_FORCE_API"
	EnvCopyTool    = "REGDELTA_COPY_TOOL"
	EnvWorkers     = "REGDELTA_WORKERS"
)

// Defaults.
const (
	DefaultPort      = 5000
	DefaultContainer = "registry"
	DefaultWorkers   = 4
)

// Config is the resolved configuration for a delta client.
type Config struct {
	// RegistryURL is the staging registry's base URL.
	RegistryURL string

	// Container is the registry container's name, the target for restart
	// and garbage-collection runs.
	Container string

	// StorageRoot is the registry's storage directory on this host. When
	// set and readable, restores may write it directly.
	StorageRoot string

	// ForceAPI disables filesystem-direct restores even when StorageRoot
	// is usable.
	ForceAPI bool

	// CopyTool names an image copy tool ("skopeo") to use instead of
	// the container engine for registry transfers.
	CopyTool string

	// Workers bounds parallel blob transfers.
	Workers int
}

// Default returns the configuration used when the environment sets
// nothing: a local plain-HTTP registry on the default port.
func Default() Config {
	return Config{
		RegistryURL: fmt.Sprintf("http://localhost:%d", DefaultPort),
		Container:   DefaultContainer,
		Workers:     DefaultWorkers,
	}
}

// FromEnv builds a Config from the process environment on top of the
// defaults. REGDELTA_URL wins over REGDELTA_PORT; the port form exists for
// the common case of a localhost registry on a nonstandard port.
func FromEnv() (Config, error) {
	cfg := Default()

	if port, ok := os.LookupEnv(EnvPort); ok {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return Config{}, fmt.Errorf("config: %s: invalid port %q", EnvPort, port)
		}
		cfg.RegistryURL = fmt.Sprintf("http://localhost:%d", n)
	}
	if u, ok := os.LookupEnv(EnvURL); ok && u != "" {
		cfg.RegistryURL = u
	}
	if name, ok := os.LookupEnv(EnvContainer); ok && name != "" {
		cfg.Container = name
	}
	if root, ok := os.LookupEnv(EnvStorageRoot); ok {
		cfg.StorageRoot = root
	}
	if v, ok := os.LookupEnv(EnvForceAPI); ok {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: invalid boolean %q", EnvForceAPI, v)
		}
		cfg.ForceAPI = force
	}
	if tool, ok := os.LookupEnv(EnvCopyTool); ok {
		cfg.CopyTool = tool
	}
	if v, ok := os.LookupEnv(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("config: %s: invalid worker count %q", EnvWorkers, v)
		}
		cfg.Workers = n
	}

	return cfg, nil
}
