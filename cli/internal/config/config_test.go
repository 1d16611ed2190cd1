package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitstamp/cli/internal/erruser"
)

func ptrStr(s string) *string { return &s }

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	c := DefaultConfig()
	if c.BaseVersion != "1.0.0" {
		t.Errorf("BaseVersion = %q, want 1.0.0", c.BaseVersion)
	}
	if c.DescribeTimeout != 5*time.Second || c.RevisionTimeout != 3*time.Second || c.CommitCountTimeout != 5*time.Second {
		t.Errorf("timeouts = %v/%v/%v, want 5s/3s/5s", c.DescribeTimeout, c.RevisionTimeout, c.CommitCountTimeout)
	}
	if c.Format != "properties" {
		t.Errorf("Format = %q, want properties", c.Format)
	}
	if c.CommitSHAEnv != "COMMIT_SHA_SHORT" {
		t.Errorf("CommitSHAEnv = %q", c.CommitSHAEnv)
	}
	if c.Override != nil {
		t.Errorf("Override = %q, want nil", *c.Override)
	}
}

func TestLoad_defaultsOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "nonexistent.toml"),
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if cfg.BaseVersion != want.BaseVersion || cfg.Format != want.Format ||
		cfg.DescribeTimeout != want.DescribeTimeout || len(cfg.Properties) != 0 {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_repoOverridesGlobal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "config.toml")
	repo := filepath.Join(dir, "repo")
	writeConfig(t, globalPath, `
base_version = "0.9.0"
format = "json"

[properties]
plugin_author = "Global Author"
plugin_group = "com.example"
`)
	writeConfig(t, filepath.Join(repo, RepoConfigName), `
base_version = "2.0.0"
describe_timeout = "10s"
revision_timeout = "2"

[properties]
plugin_name = "Companion"
plugin_group = "com.example.repo"
`)
	cfg, err := Load(context.Background(), LoadOptions{Dir: repo, GlobalConfigPath: globalPath, Env: []string{}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseVersion != "2.0.0" {
		t.Errorf("BaseVersion = %q, want repo value 2.0.0", cfg.BaseVersion)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want global value json", cfg.Format)
	}
	if cfg.DescribeTimeout != 10*time.Second {
		t.Errorf("DescribeTimeout = %v, want 10s", cfg.DescribeTimeout)
	}
	if cfg.RevisionTimeout != 2*time.Second {
		t.Errorf("RevisionTimeout = %v, want 2s (integer seconds)", cfg.RevisionTimeout)
	}
	want := map[string]string{
		"plugin_author": "Global Author",
		"plugin_group":  "com.example.repo",
		"plugin_name":   "Companion",
	}
	for k, v := range want {
		if cfg.Properties[k] != v {
			t.Errorf("Properties[%q] = %q, want %q", k, cfg.Properties[k], v)
		}
	}
	if len(cfg.Properties) != 3 {
		t.Errorf("Properties = %v, want 3 merged entries", cfg.Properties)
	}
}

func TestLoad_envOverridesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, RepoConfigName), `base_version = "2.0.0"`)
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env: []string{
			"GITSTAMP_BASE_VERSION=3.0.0",
			"GITSTAMP_VERSION=3.1.0-local",
			"GITSTAMP_DESCRIBE_TIMEOUT=1500ms",
			"GITSTAMP_FORMAT=YAML",
			"GITSTAMP_COMMIT_SHA_ENV=CI_SHA",
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseVersion != "3.0.0" {
		t.Errorf("BaseVersion = %q, want 3.0.0", cfg.BaseVersion)
	}
	if cfg.Override == nil || *cfg.Override != "3.1.0-local" {
		t.Errorf("Override = %v, want 3.1.0-local", cfg.Override)
	}
	if cfg.DescribeTimeout != 1500*time.Millisecond {
		t.Errorf("DescribeTimeout = %v, want 1.5s", cfg.DescribeTimeout)
	}
	if cfg.Format != "yaml" {
		t.Errorf("Format = %q, want yaml", cfg.Format)
	}
	if cfg.CommitSHAEnv != "CI_SHA" {
		t.Errorf("CommitSHAEnv = %q, want CI_SHA", cfg.CommitSHAEnv)
	}
}

func TestLoad_blankEnvVersionIsAbsent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{"GITSTAMP_VERSION=", "GITSTAMP_BASE_VERSION="},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Override != nil {
		t.Errorf("Override = %q, want nil", *cfg.Override)
	}
	if cfg.BaseVersion != "1.0.0" {
		t.Errorf("BaseVersion = %q, want default", cfg.BaseVersion)
	}
}

func TestLoad_overridesWin(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	timeout := 700 * time.Millisecond
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{"GITSTAMP_BASE_VERSION=3.0.0", "GITSTAMP_VERSION=env"},
		Overrides: &Overrides{
			BaseVersion:     ptrStr("4.0.0"),
			Override:        ptrStr("flag"),
			DescribeTimeout: &timeout,
			Format:          ptrStr("toml"),
			Properties:      map[string]string{"plugin_name": "FromFlag"},
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseVersion != "4.0.0" || *cfg.Override != "flag" || cfg.DescribeTimeout != timeout || cfg.Format != "toml" {
		t.Errorf("got %+v, want flag values", cfg)
	}
	if cfg.Properties["plugin_name"] != "FromFlag" {
		t.Errorf("Properties[plugin_name] = %q", cfg.Properties["plugin_name"])
	}
}

func TestLoad_explicitConfigPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, RepoConfigName), `base_version = "9.9.9"`)
	explicit := filepath.Join(dir, "ci", "stamp.toml")
	writeConfig(t, explicit, `base_version = "5.5.5"`)
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		ConfigPath:       explicit,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseVersion != "5.5.5" {
		t.Errorf("BaseVersion = %q, want 5.5.5 (explicit path replaces repo config)", cfg.BaseVersion)
	}

	_, err = Load(context.Background(), LoadOptions{
		ConfigPath:       filepath.Join(dir, "missing.toml"),
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{},
	})
	if err == nil {
		t.Fatal("Load with missing explicit config: want error")
	}
}

func TestLoad_errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		file     string
		env      []string
		wantHint bool
	}{
		{name: "invalid toml", file: `base_version = `},
		{name: "bad file timeout", file: `describe_timeout = "soon"`},
		{name: "zero file timeout", file: `revision_timeout = "0s"`},
		{name: "bad file format", file: `format = "xml"`, wantHint: true},
		{name: "bad env timeout", env: []string{"GITSTAMP_REVISION_TIMEOUT=forever"}, wantHint: true},
		{name: "negative env timeout", env: []string{"GITSTAMP_COMMIT_COUNT_TIMEOUT=-3"}, wantHint: true},
		{name: "bad env format", env: []string{"GITSTAMP_FORMAT=ini"}, wantHint: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.file != "" {
				writeConfig(t, filepath.Join(dir, RepoConfigName), tt.file)
			}
			env := tt.env
			if env == nil {
				env = []string{}
			}
			_, err := Load(context.Background(), LoadOptions{
				Dir:              dir,
				GlobalConfigPath: filepath.Join(dir, "none.toml"),
				Env:              env,
			})
			if err == nil {
				t.Fatal("Load: want error")
			}
			if tt.wantHint && erruser.HintOf(err) == "" {
				t.Errorf("error %q has no hint", err)
			}
		})
	}
}

func TestLoad_envVersionIsVerbatim(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{"GITSTAMP_VERSION=  1.2.3+local  "},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Override == nil || *cfg.Override != "  1.2.3+local  " {
		t.Errorf("Override = %v, want untrimmed %q", cfg.Override, "  1.2.3+local  ")
	}
}

func TestLoad_nonPositiveTimeoutOverride(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{0, -time.Second} {
		d := d
		for name, o := range map[string]*Overrides{
			"describe":     {DescribeTimeout: &d},
			"revision":     {RevisionTimeout: &d},
			"commit count": {CommitCountTimeout: &d},
		} {
			dir := t.TempDir()
			_, err := Load(context.Background(), LoadOptions{
				Dir:              dir,
				GlobalConfigPath: filepath.Join(dir, "none.toml"),
				Env:              []string{},
				Overrides:        o,
			})
			if err == nil {
				t.Errorf("%s timeout %v: want error", name, d)
				continue
			}
			if erruser.HintOf(err) == "" {
				t.Errorf("%s timeout %v: error %q has no hint", name, d, err)
			}
		}
	}
}

func TestLoad_badOverrideFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := Load(context.Background(), LoadOptions{
		Dir:              dir,
		GlobalConfigPath: filepath.Join(dir, "none.toml"),
		Env:              []string{},
		Overrides:        &Overrides{Format: ptrStr("csv")},
	})
	if err == nil {
		t.Fatal("Load with --format csv: want error")
	}
}

func TestEnvMap(t *testing.T) {
	t.Parallel()
	m := EnvMap([]string{"A=1", "B = two ", "=skip", "noequals", "A=3", "EMPTY="})
	if m["A"] != "3" {
		t.Errorf("A = %q, want later value 3", m["A"])
	}
	if m["B"] != "two" {
		t.Errorf("B = %q, want trimmed", m["B"])
	}
	if _, ok := m["EMPTY"]; !ok {
		t.Error("EMPTY missing; empty values are kept")
	}
	if _, ok := m["noequals"]; ok {
		t.Error("entry without '=' should be skipped")
	}
}

func TestParseTimeout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"5s", 5 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"3", 3 * time.Second, false},
		{" 7 ", 7 * time.Second, false},
		{"", 0, true},
		{"0", 0, true},
		{"-1s", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimeout(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeout(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTimeout(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
