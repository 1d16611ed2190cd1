// Package config provides gitstamp configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .gitstamp.toml (relative to the project directory)
//   - Global: XDG config dir, e.g. ~/.config/gitstamp/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - GITSTAMP_BASE_VERSION (fallback version when git metadata is unavailable).
//   - GITSTAMP_VERSION (explicit version; when non-blank git is not consulted).
//   - GITSTAMP_DESCRIBE_TIMEOUT, GITSTAMP_REVISION_TIMEOUT, GITSTAMP_COMMIT_COUNT_TIMEOUT
//     (Go duration string or integer seconds).
//   - GITSTAMP_FORMAT (properties output format).
//   - GITSTAMP_COMMIT_SHA_ENV (name of the variable holding the CI commit SHA).
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"gitstamp/cli/internal/erruser"
)

// Config holds all gitstamp configuration.
type Config struct {
	// BaseVersion is the fallback used when git metadata is unavailable.
	BaseVersion string `toml:"base_version"`
	// Override, when non-nil and non-blank, is used verbatim as the version.
	// Only settable from env or flags; a checked-in override would pin every build.
	Override *string `toml:"-"`

	DescribeTimeout    time.Duration `toml:"describe_timeout"`
	RevisionTimeout    time.Duration `toml:"revision_timeout"`
	CommitCountTimeout time.Duration `toml:"commit_count_timeout"`

	// Format is the default output format for the properties command.
	Format string `toml:"format"`
	// CommitSHAEnv names the environment variable whose value is appended to
	// implementation_version (e.g. COMMIT_SHA_SHORT set by CI).
	CommitSHAEnv string `toml:"commit_sha_env"`
	// Properties are user-supplied build properties (plugin_name, plugin_group, ...).
	Properties map[string]string `toml:"properties"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	BaseVersion        *string
	Override           *string
	DescribeTimeout    *time.Duration
	RevisionTimeout    *time.Duration
	CommitCountTimeout *time.Duration
	Format             *string
	Properties         map[string]string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// Dir is the project directory; if set, repo config is Dir/.gitstamp.toml.
	Dir string
	// ConfigPath replaces the repo config path when set; the file must exist.
	ConfigPath string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

// RepoConfigName is the per-project config file name.
const RepoConfigName = ".gitstamp.toml"

const (
	_defaultBaseVersion        = "1.0.0"
	_defaultDescribeTimeout    = 5 * time.Second
	_defaultRevisionTimeout    = 3 * time.Second
	_defaultCommitCountTimeout = 5 * time.Second
	_defaultFormat             = "properties"
	_defaultCommitSHAEnv       = "COMMIT_SHA_SHORT"
)

// Formats lists the accepted values of Format.
var Formats = []string{"properties", "env", "json", "yaml", "toml"}

func validateFormat(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, f := range Formats {
		if f == norm {
			return norm, nil
		}
	}
	return "", erruser.WithHint(
		erruser.New(fmt.Sprintf("Unknown output format %q.", s), nil),
		"Use one of: "+strings.Join(Formats, ", ")+".")
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		BaseVersion:        _defaultBaseVersion,
		DescribeTimeout:    _defaultDescribeTimeout,
		RevisionTimeout:    _defaultRevisionTimeout,
		CommitCountTimeout: _defaultCommitCountTimeout,
		Format:             _defaultFormat,
		CommitSHAEnv:       _defaultCommitSHAEnv,
		Properties:         map[string]string{},
	}
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored unless ConfigPath names them explicitly.
// Invalid TOML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "gitstamp", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath, false); err != nil {
		return nil, err
	}

	switch {
	case opts.ConfigPath != "":
		if err := mergeFile(&cfg, opts.ConfigPath, true); err != nil {
			return nil, err
		}
	case opts.Dir != "":
		if err := mergeFile(&cfg, filepath.Join(opts.Dir, RepoConfigName), false); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}
	if err := applyOverrides(&cfg, opts.Overrides); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile reads path and merges into cfg. Only fields present in the file
// are applied. A missing file is skipped unless required.
func mergeFile(cfg *Config, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return erruser.New(fmt.Sprintf("Could not open configuration file %s.", path), err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		BaseVersion        *string           `toml:"base_version"`
		DescribeTimeout    *string           `toml:"describe_timeout"`
		RevisionTimeout    *string           `toml:"revision_timeout"`
		CommitCountTimeout *string           `toml:"commit_count_timeout"`
		Format             *string           `toml:"format"`
		CommitSHAEnv       *string           `toml:"commit_sha_env"`
		Properties         map[string]string `toml:"properties"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", filepath.Base(path)), err)
	}
	if file.BaseVersion != nil && strings.TrimSpace(*file.BaseVersion) != "" {
		cfg.BaseVersion = strings.TrimSpace(*file.BaseVersion)
	}
	for _, t := range []struct {
		key string
		val *string
		dst *time.Duration
	}{
		{"describe_timeout", file.DescribeTimeout, &cfg.DescribeTimeout},
		{"revision_timeout", file.RevisionTimeout, &cfg.RevisionTimeout},
		{"commit_count_timeout", file.CommitCountTimeout, &cfg.CommitCountTimeout},
	} {
		if t.val == nil || *t.val == "" {
			continue
		}
		d, err := parseTimeout(*t.val)
		if err != nil {
			return erruser.New(fmt.Sprintf("Configuration %s is invalid.", t.key), err)
		}
		*t.dst = d
	}
	if file.Format != nil && *file.Format != "" {
		f, err := validateFormat(*file.Format)
		if err != nil {
			return err
		}
		cfg.Format = f
	}
	if file.CommitSHAEnv != nil {
		cfg.CommitSHAEnv = strings.TrimSpace(*file.CommitSHAEnv)
	}
	for k, v := range file.Properties {
		cfg.Properties[k] = v
	}
	return nil
}

// parseTimeout accepts a Go duration ("5s") or integer seconds ("5").
// Timeouts must be positive.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		n, nerr := strconv.ParseInt(s, 10, 64)
		if nerr != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d = time.Duration(n) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// env key names for config
const (
	envBaseVersion        = "GITSTAMP_BASE_VERSION"
	envVersion            = "GITSTAMP_VERSION"
	envDescribeTimeout    = "GITSTAMP_DESCRIBE_TIMEOUT"
	envRevisionTimeout    = "GITSTAMP_REVISION_TIMEOUT"
	envCommitCountTimeout = "GITSTAMP_COMMIT_COUNT_TIMEOUT"
	envFormat             = "GITSTAMP_FORMAT"
	envCommitSHAEnv       = "GITSTAMP_COMMIT_SHA_ENV"
)

// EnvMap splits key=value pairs. Later entries win; entries without a key are skipped.
func EnvMap(env []string) map[string]string {
	vals := make(map[string]string, len(env))
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	return vals
}

// rawEnv returns the last value of key in env exactly as set, untrimmed.
func rawEnv(env []string, key string) (string, bool) {
	var val string
	found := false
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 || strings.TrimSpace(e[:idx]) != key {
			continue
		}
		val, found = e[idx+1:], true
	}
	return val, found
}

func applyEnv(cfg *Config, env []string) error {
	vals := EnvMap(env)
	if v, ok := vals[envBaseVersion]; ok && v != "" {
		cfg.BaseVersion = v
	}
	// The override is used verbatim, so it bypasses EnvMap's trimming.
	if v, ok := rawEnv(env, envVersion); ok && strings.TrimSpace(v) != "" {
		cfg.Override = &v
	}
	for _, t := range []struct {
		key string
		dst *time.Duration
	}{
		{envDescribeTimeout, &cfg.DescribeTimeout},
		{envRevisionTimeout, &cfg.RevisionTimeout},
		{envCommitCountTimeout, &cfg.CommitCountTimeout},
	} {
		v, ok := vals[t.key]
		if !ok || v == "" {
			continue
		}
		d, err := parseTimeout(v)
		if err != nil {
			return erruser.WithHint(
				erruser.New(t.key+" must be a valid duration.", err),
				"Use a Go duration such as 5s or a whole number of seconds.")
		}
		*t.dst = d
	}
	if v, ok := vals[envFormat]; ok && v != "" {
		f, err := validateFormat(v)
		if err != nil {
			return err
		}
		cfg.Format = f
	}
	if v, ok := vals[envCommitSHAEnv]; ok {
		cfg.CommitSHAEnv = v
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) error {
	if o == nil {
		return nil
	}
	if o.BaseVersion != nil && strings.TrimSpace(*o.BaseVersion) != "" {
		cfg.BaseVersion = *o.BaseVersion
	}
	if o.Override != nil {
		cfg.Override = o.Override
	}
	for _, t := range []struct {
		flag string
		val  *time.Duration
		dst  *time.Duration
	}{
		{"--describe-timeout", o.DescribeTimeout, &cfg.DescribeTimeout},
		{"--revision-timeout", o.RevisionTimeout, &cfg.RevisionTimeout},
		{"--commit-count-timeout", o.CommitCountTimeout, &cfg.CommitCountTimeout},
	} {
		if t.val == nil {
			continue
		}
		if *t.val <= 0 {
			return erruser.WithHint(
				erruser.New(fmt.Sprintf("%s must be positive, got %v.", t.flag, *t.val), nil),
				"Use a duration such as 5s.")
		}
		*t.dst = *t.val
	}
	if o.Format != nil && *o.Format != "" {
		f, err := validateFormat(*o.Format)
		if err != nil {
			return err
		}
		cfg.Format = f
	}
	for k, v := range o.Properties {
		cfg.Properties[k] = v
	}
	return nil
}
