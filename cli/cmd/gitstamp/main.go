package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gitstamp/cli/internal/config"
	"gitstamp/cli/internal/erruser"
	"gitstamp/cli/internal/git"
	"gitstamp/cli/internal/logging"
	"gitstamp/cli/internal/resolver"
	"gitstamp/cli/internal/shell"
	"gitstamp/cli/internal/stamp"
	"gitstamp/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// env holds the collaborators a command runs against. Tests replace them.
type env struct {
	exec    shell.Executor
	clock   resolver.Clock
	environ []string
	stdout  io.Writer
	stderr  io.Writer
	// globalConfig replaces the XDG global config path when set.
	globalConfig string
}

func defaultEnv() *env {
	return &env{
		exec:    shell.Exec{},
		clock:   resolver.SystemClock{},
		environ: os.Environ(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	return runWith(args, defaultEnv())
}

func runWith(args []string, e *env) int {
	rootCmd := newRootCmd(e)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(e.stdout)
	rootCmd.SetErr(e.stderr)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(e.stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(e.stderr, "Details: %v\n", u)
		}
		if hint := erruser.HintOf(err); hint != "" {
			fmt.Fprintf(e.stderr, "Hint: %s\n", hint)
		}
		return 1
	}
	return 0
}

func newRootCmd(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "gitstamp",
		Short:   "Resolve build versions and build properties from git metadata",
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			jsonLogs, _ := cmd.Flags().GetBool("log-json")
			logger := logging.New(e.stderr, logging.Options{Verbose: verbose, JSON: jsonLogs})
			cmd.SetContext(logger.WithContext(cmd.Context()))
			return nil
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.String("dir", "", "Project directory (default: current directory)")
	pf.String("config", "", "Config file to use instead of <dir>/"+config.RepoConfigName)
	pf.String("base-version", "", "Fallback version when git metadata is unavailable (default 1.0.0)")
	pf.String("override", "", "Explicit version; git is not consulted when set")
	pf.Duration("describe-timeout", 0, "Timeout for git describe (default 5s)")
	pf.Duration("revision-timeout", 0, "Timeout for git rev-parse (default 3s)")
	pf.Duration("commit-count-timeout", 0, "Timeout for git rev-list --count (default 5s)")
	pf.BoolP("verbose", "v", false, "Log git lookups and fallbacks to stderr")
	pf.Bool("log-json", false, "Log as JSON lines instead of console text")

	rootCmd.AddCommand(newVersionCmd(e))
	rootCmd.AddCommand(newBuildIDCmd(e))
	rootCmd.AddCommand(newCommitsCmd(e))
	rootCmd.AddCommand(newDescribeCmd(e))
	rootCmd.AddCommand(newPropertiesCmd(e))
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd
}

// overridesFromFlags builds config overrides from flags the user actually set.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	flags := cmd.Flags()
	if flags.Changed("base-version") {
		v, _ := flags.GetString("base-version")
		o.BaseVersion = &v
	}
	if flags.Changed("override") {
		v, _ := flags.GetString("override")
		o.Override = &v
	}
	if flags.Changed("describe-timeout") {
		d, _ := flags.GetDuration("describe-timeout")
		o.DescribeTimeout = &d
	}
	if flags.Changed("revision-timeout") {
		d, _ := flags.GetDuration("revision-timeout")
		o.RevisionTimeout = &d
	}
	if flags.Changed("commit-count-timeout") {
		d, _ := flags.GetDuration("commit-count-timeout")
		o.CommitCountTimeout = &d
	}
	if flags.Lookup("format") != nil && flags.Changed("format") {
		f, _ := flags.GetString("format")
		o.Format = &f
	}
	if flags.Lookup("set") != nil && flags.Changed("set") {
		o.Properties, _ = flags.GetStringToString("set")
	}
	return o
}

// session is the loaded configuration plus the directory commands run in.
type session struct {
	cfg *config.Config
	dir string
}

func (s session) timeouts() resolver.Timeouts {
	return resolver.Timeouts{
		Describe:    s.cfg.DescribeTimeout,
		Revision:    s.cfg.RevisionTimeout,
		CommitCount: s.cfg.CommitCountTimeout,
	}
}

func (s session) request() resolver.Request {
	return resolver.Request{
		Base:     s.cfg.BaseVersion,
		Override: s.cfg.Override,
		Dir:      s.dir,
		Timeouts: s.timeouts(),
	}
}

func loadSession(cmd *cobra.Command, e *env) (session, error) {
	dir, _ := cmd.Flags().GetString("dir")
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{
		Dir:              configDir(cmd.Context(), e.exec, dir, configPath),
		ConfigPath:       configPath,
		GlobalConfigPath: e.globalConfig,
		Env:              e.environ,
		Overrides:        overridesFromFlags(cmd),
	})
	if err != nil {
		return session{}, err
	}
	return session{cfg: cfg, dir: dir}, nil
}

// configDir returns the directory holding the repo config: dir itself when it
// has one, otherwise the enclosing work tree root when git can find it.
func configDir(ctx context.Context, ex shell.Executor, dir, configPath string) string {
	if configPath != "" {
		return dir
	}
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(filepath.Join(dir, config.RepoConfigName)); err == nil {
		return dir
	}
	if top, ok := git.TopLevel(ctx, ex, dir, git.RevisionTimeout); ok {
		zerolog.Ctx(ctx).Debug().Str("dir", top).Msg("using work tree root for repo config")
		return top
	}
	return dir
}

func writeLine(w io.Writer, s string) error {
	if _, err := fmt.Fprintln(w, s); err != nil {
		return erruser.New("Could not write output.", err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return erruser.New("Could not write output.", err)
	}
	return writeLine(w, string(data))
}

func newVersionCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the resolved version (override, git describe, or base version)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(cmd, e)
			if err != nil {
				return err
			}
			v := resolver.ResolveVersion(cmd.Context(), s.request(), e.exec)
			zerolog.Ctx(cmd.Context()).Debug().Str("version", v.Value).Str("source", string(v.Source)).Msg("version resolved")
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			return writeLine(cmd.OutOrStdout(), v.Value)
		},
	}
	cmd.Flags().Bool("json", false, "Print value, source and parsed describe output as JSON")
	return cmd
}

func newBuildIDCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-id",
		Short: "Print {version}-{yyyyMMddHHmmss}-{short revision}",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(cmd, e)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			v := resolver.ResolveVersion(ctx, s.request(), e.exec)
			id := resolver.ResolveBuildIdentifier(ctx, v.Value, s.dir, s.timeouts(), e.exec, e.clock)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), id)
			}
			return writeLine(cmd.OutOrStdout(), id.String())
		},
	}
	cmd.Flags().Bool("json", false, "Print the identifier segments as JSON")
	return cmd
}

func newCommitsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "commits",
		Short: "Print the number of commits reachable from HEAD (0 when unavailable)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(cmd, e)
			if err != nil {
				return err
			}
			n := resolver.CountCommits(cmd.Context(), s.dir, s.timeouts(), e.exec)
			return writeLine(cmd.OutOrStdout(), strconv.Itoa(n))
		},
	}
}

func newDescribeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the parsed git describe output as JSON",
		Long: "Print the parsed git describe output as JSON. Exits 2 when git has no\n" +
			"describe information (no tags, not a repository, git missing or timed out).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(cmd, e)
			if err != nil {
				return err
			}
			d, ok := resolver.Describe(cmd.Context(), s.dir, s.timeouts(), e.exec)
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "No git describe information available.")
				return errExit(2)
			}
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newPropertiesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Print build properties for packaging (version, build_id, git_revision, ...)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSession(cmd, e)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			v := resolver.ResolveVersion(ctx, s.request(), e.exec)
			props := stamp.Build(stamp.Input{
				Version:     v,
				BuildID:     resolver.ResolveBuildIdentifier(ctx, v.Value, s.dir, s.timeouts(), e.exec, e.clock),
				CommitCount: resolver.CountCommits(ctx, s.dir, s.timeouts(), e.exec),
				CommitSHA:   commitSHA(s.cfg, e.environ),
				User:        s.cfg.Properties,
			})

			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				return stamp.Write(cmd.OutOrStdout(), props, s.cfg.Format)
			}
			return writeFile(output, props, s.cfg.Format)
		},
	}
	cmd.Flags().String("format", "", "Output format: properties (default), env, json, yaml, or toml")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringToString("set", nil, "Extra property key=value (repeatable); computed keys cannot be replaced")
	return cmd
}

// commitSHA returns the CI commit SHA named by cfg.CommitSHAEnv, or "".
func commitSHA(cfg *config.Config, environ []string) string {
	if cfg.CommitSHAEnv == "" {
		return ""
	}
	return config.EnvMap(environ)[cfg.CommitSHAEnv]
}

func writeFile(path string, props stamp.Properties, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return erruser.New(fmt.Sprintf("Could not create %s.", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = erruser.New(fmt.Sprintf("Could not write %s.", path), cerr)
		}
	}()
	return stamp.Write(f, props, format)
}
