// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/zygiskd/lib/androidlog"
	"github.com/bureau-foundation/zygiskd/lib/daemon"
)

// EnvironmentVariable names the configuration file for [Load].
const EnvironmentVariable = "ZYGISKD_CONFIG"

// Config is the daemon configuration.
type Config struct {
	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Socket configures the daemon socket.
	Socket SocketConfig `yaml:"socket"`

	// LibraryMode selects how module libraries are handed out: "auto"
	// (build default), "sealed" (sealed memfd copy), or "plain"
	// (read-only descriptor on the file).
	LibraryMode string `yaml:"library_mode"`

	// Log configures the daemon's own logging.
	Log LogConfig `yaml:"log"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// ADB is the root-provider data directory. Other defaults are
	// relative to it through ${ZYGISKD_ADB}.
	ADB string `yaml:"adb"`

	// Modules is the modules root.
	Modules string `yaml:"modules"`

	// Run is where the status file is written.
	Run string `yaml:"run"`

	// Magic is the file holding the protocol magic token.
	Magic string `yaml:"magic"`

	// PackagesList is the package manager's uid table.
	PackagesList string `yaml:"packages_list"`

	// MagiskDB is Magisk's policy database.
	MagiskDB string `yaml:"magisk_db"`
}

// SocketConfig configures the daemon socket.
type SocketConfig struct {
	// Context is the SELinux label the socket is created with. Empty
	// disables labeling.
	Context string `yaml:"context"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of auto, logcat, text, json.
	Format string `yaml:"format"`

	// Socket is logd's write socket, used by the logcat format.
	Socket string `yaml:"socket"`
}

var (
	libraryModes = []string{"auto", "sealed", "plain"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"auto", "logcat", "text", "json"}
)

// Default returns the configuration for a stock rooted device.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			ADB:          "/data/adb",
			Modules:      "${ZYGISKD_ADB}/modules",
			Run:          "/dev/zygiskd",
			Magic:        "/system/zygisk_magic",
			PackagesList: "/data/system/packages.list",
			MagiskDB:     "${ZYGISKD_ADB}/magisk.db",
		},
		Socket: SocketConfig{
			Context: daemon.DefaultSocketContext,
		},
		LibraryMode: "auto",
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
			Socket: androidlog.DefaultSocketPath,
		},
	}
}

// Load loads the file named by ZYGISKD_CONFIG, or returns the expanded
// defaults when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ZYGISKD_ADB": c.Paths.ADB,
	}

	c.Paths.ADB = expandVars(c.Paths.ADB, vars)
	vars["ZYGISKD_ADB"] = c.Paths.ADB // Update for dependent paths.

	c.Paths.Modules = expandVars(c.Paths.Modules, vars)
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	c.Paths.Magic = expandVars(c.Paths.Magic, vars)
	c.Paths.PackagesList = expandVars(c.Paths.PackagesList, vars)
	c.Paths.MagiskDB = expandVars(c.Paths.MagiskDB, vars)
	c.Log.Socket = expandVars(c.Log.Socket, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Modules == "" {
		errs = append(errs, fmt.Errorf("paths.modules is required"))
	}
	if c.Paths.Run == "" {
		errs = append(errs, fmt.Errorf("paths.run is required"))
	}
	if c.Paths.Magic == "" {
		errs = append(errs, fmt.Errorf("paths.magic is required"))
	}
	if !slices.Contains(libraryModes, c.LibraryMode) {
		errs = append(errs, fmt.Errorf("library_mode must be one of: %s", strings.Join(libraryModes, ", ")))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %s", strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %s", strings.Join(logFormats, ", ")))
	}

	return errors.Join(errs...)
}

// SlogLevel returns Log.Level as a slog level. Unknown values map to
// info; Validate reports them.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
