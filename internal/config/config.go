// Package config parses the watch command line with environment fallbacks for the ambient settings.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/validation"
)

// Usage is printed when the positional arguments are wrong.
const Usage = "Usage: watch [flags] <path> <command>"

// Config holds the watcher configuration.
type Config struct {
	Watch   WatchConfig
	Command CommandConfig
	Logger  LoggerConfig
}

// WatchConfig holds the path to watch, exactly as given by the user.
type WatchConfig struct {
	Path string `flag:"path" validate:"required"`

	// EveryWrite reports each write(2) instead of waiting for the writer
	// to close the file.
	EveryWrite bool `flag:"every-write"`
}

// CommandConfig holds the command fired on every matching change.
type CommandConfig struct {
	Line string `flag:"command" validate:"notblank"`

	// Shell overrides the interpreter, e.g. "bash -c" (default: platform shell).
	Shell string `flag:"shell" validate:"excluded_with=Direct"`

	// Direct execs the split command line without a shell.
	Direct bool `flag:"direct"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level   string `flag:"log-level" validate:"oneofci=debug info warn error"`
	Format  string `flag:"log-format" validate:"oneofci=pretty json"`
	NoColor bool   `flag:"no-color"`
}

// Load parses args (without the program name) with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. Default values (lowest priority).
//
// Anything other than exactly two positional arguments is an argument error.
func Load(args []string, getenv func(string) string, output io.Writer) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), Usage)
		fs.PrintDefaults()
	}

	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (pretty, json)")
	shell := fs.String("shell", "", "Interpreter used to run the command (default: sh -c, cmd /C on windows)")
	direct := fs.Bool("direct", false, "Run the command without a shell")
	everyWrite := fs.Bool("every-write", false, "Fire on every write instead of when the writer closes the file")
	noColor := fs.Bool("no-color", false, "Disable colors in pretty logs (also honors NO_COLOR)")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, errors.CodeArgument, Usage)
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// Unset bool flags fall through to the environment.
	boolFlag := func(name string, value *bool) string {
		if !explicit[name] {
			return ""
		}
		return fmt.Sprint(*value)
	}

	if fs.NArg() != 2 {
		return nil, errors.Argumentf("%s (got %d arguments)", Usage, fs.NArg())
	}

	cfg := &Config{
		Watch: WatchConfig{
			Path:       fs.Arg(0),
			EveryWrite: getBoolConfigValue(getenv, boolFlag("every-write", everyWrite), "WATCH_EVERY_WRITE", false),
		},
		Command: CommandConfig{
			Line:   fs.Arg(1),
			Shell:  getConfigValue(getenv, *shell, "WATCH_SHELL", ""),
			Direct: getBoolConfigValue(getenv, boolFlag("direct", direct), "WATCH_DIRECT", false),
		},
		Logger: LoggerConfig{
			Level:   getConfigValue(getenv, *logLevel, "WATCH_LOG_LEVEL", "warn"),
			Format:  getConfigValue(getenv, *logFormat, "WATCH_LOG_FORMAT", "pretty"),
			NoColor: getBoolConfigValue(getenv, boolFlag("no-color", noColor), "WATCH_NO_COLOR", getenv("NO_COLOR") != ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeArgument, "config validation failed")
	}

	return cfg, nil
}

// Validate checks that all config values are present and valid.
func (c *Config) Validate() error {
	return validation.New().Validate(c)
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(getenv func(string) string, flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(getenv func(string) string, flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(getenv, flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}
