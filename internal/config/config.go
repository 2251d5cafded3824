// Package config loads tfm's configuration surface: key
// bindings, file associations, display options, behavior flags, and cache
// tuning, from a YAML file with an optional .env overlay for local
// tool configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/shimomut/tfm/internal/tfmerr"
)

// Association binds a glob pattern to an argv template for one action
// (open/view/edit). Patterns are matched in file order, first match wins,
// so Associations is a slice, not a map.
type Association struct {
	Pattern string   `yaml:"pattern"`
	Open    []string `yaml:"open,omitempty"`
	View    []string `yaml:"view,omitempty"`
	Edit    []string `yaml:"edit,omitempty"`
}

// Display holds presentation toggles.
type Display struct {
	ShowHidden  bool `yaml:"show_hidden"`
	HumanSizes  bool `yaml:"human_sizes"`
	DateFormat  string `yaml:"date_format"`
}

// Behavior holds operational flags.
type Behavior struct {
	ConfirmDelete       bool `yaml:"confirm_delete"`
	ConfirmOverwrite    bool `yaml:"confirm_overwrite"`
	FollowSymlinks      bool `yaml:"follow_symlinks"`
	RememberCursorPerDir bool `yaml:"remember_cursor_per_dir"`
}

// Cache holds metacache tuning (internal/metacache).
type Cache struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// SFTPHost is one remembered connection the "jump to path" / drive-list
// dialogs can offer, sourced from config rather than typed in each time.
type SFTPHost struct {
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	User           string `yaml:"user"`
	IdentityFile   string `yaml:"identity_file"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// KeyBinding is one YAML-configurable key -> action mapping, parsed
// separately from internal/input.Binding (tcell types don't unmarshal
// directly). These entries are loaded but not applied: the app's key table
// is built from input.DefaultBindings only.
type KeyBinding struct {
	Key    string `yaml:"key"`    // e.g. "F8", "Ctrl+G", "Rune:g"
	Action string `yaml:"action"`
}

// Config is the parsed configuration surface.
type Config struct {
	Display      Display       `yaml:"display"`
	Behavior     Behavior      `yaml:"behavior"`
	Cache        Cache         `yaml:"cache"`
	Associations []Association `yaml:"associations"`
	KeyBindings  []KeyBinding  `yaml:"key_bindings"`
	SFTPHosts    []SFTPHost    `yaml:"sftp_hosts"`
}

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	return Config{
		Display:  Display{ShowHidden: false, HumanSizes: true, DateFormat: "2006-01-02 15:04"},
		Behavior: Behavior{ConfirmDelete: true, ConfirmOverwrite: true, RememberCursorPerDir: true},
		Cache:    Cache{DefaultTTL: 60 * time.Second, MaxEntries: 1000},
	}
}

// DefaultPath returns ~/.tfm/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", tfmerr.New(tfmerr.KindIoFailure, "config-path", "", err)
	}
	return filepath.Join(home, ".tfm", "config.yaml"), nil
}

// Load reads and parses the YAML file at path over Default(), so any field
// the file omits keeps its built-in value. A missing file is not an error:
// Default() is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, tfmerr.New(tfmerr.KindIoFailure, "config-load", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, tfmerr.New(tfmerr.KindDecodingFailure, "config-load", path, err)
	}
	return cfg, nil
}

// LoadWithEnvOverlay loads path, then merges in a sibling ".env" file (if
// present) whose TFM_* variables override matching behavior flags, the
// pattern godotenv is built for, used here to let a user override config
// at invocation time without editing YAML.
func LoadWithEnvOverlay(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return cfg, tfmerr.New(tfmerr.KindIoFailure, "config-env", envPath, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("TFM_SHOW_HIDDEN"); ok {
		cfg.Display.ShowHidden = v == "1" || v == "true"
	}
	if v, ok := os.LookupEnv("TFM_CONFIRM_DELETE"); ok {
		cfg.Behavior.ConfirmDelete = v == "1" || v == "true"
	}
}

// FindAssociation returns the first Association whose pattern matches name,
// honoring file order (first match wins). ok is false if none match.
func (c Config) FindAssociation(matcher func(pattern, name string) bool, name string) (Association, bool) {
	for _, a := range c.Associations {
		if matcher(a.Pattern, name) {
			return a, true
		}
	}
	return Association{}, false
}
