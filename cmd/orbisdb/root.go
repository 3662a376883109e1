package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/logger"
)

// settingsEnv names the settings file when --settings is not given.
const settingsEnv = "ORBISDB_SETTINGS"

type rootFlags struct {
	settingsPath string
	verbose      bool
	logFormat    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "orbisdb",
		Short:         "OrbisDB indexes streams through context-scoped plugin hooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.settingsPath, "settings", "s", "", "Path to the settings file (JSON or YAML); defaults to $"+settingsEnv)
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", string(logger.FormatAuto), "Log format: auto, json or console")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newDispatchCmd(flags))
	cmd.AddCommand(newChainCmd(flags))
	cmd.AddCommand(newPluginsCmd(flags))
	cmd.AddCommand(newAssignCmd(flags))
	cmd.AddCommand(newUnassignCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// settings returns the configured settings path, which may be empty.
func (f *rootFlags) settings() string {
	if path := strings.TrimSpace(f.settingsPath); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(settingsEnv))
}

func (f *rootFlags) requireSettings(operation string) (string, error) {
	path := f.settings()
	if path == "" {
		return "", newCommandError(operation, "locating the settings file", fmt.Errorf("no settings file given"), "Pass --settings or set "+settingsEnv+".")
	}
	return path, nil
}

// logger writes to the command's stderr so stdout stays machine readable.
func (f *rootFlags) logger(cmd *cobra.Command) (*logger.Logger, error) {
	level := "info"
	if f.verbose {
		level = "debug"
	}
	format := logger.Format(strings.ToLower(strings.TrimSpace(f.logFormat)))
	switch format {
	case logger.FormatAuto, logger.FormatJSON, logger.FormatConsole:
	case "":
		format = logger.FormatAuto
	default:
		return nil, fmt.Errorf("unknown log format %q (expected auto, json or console)", f.logFormat)
	}
	return logger.New(logger.Options{Level: level, Format: format, Writer: cmd.ErrOrStderr()})
}

func newCommandError(operation, context string, cause error, suggestion string) error {
	return &commandError{operation: operation, context: context, cause: cause, suggestion: suggestion}
}

type commandError struct {
	operation  string
	context    string
	cause      error
	suggestion string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("Failed to %s: %s\n\nError: %v\n\nSuggestion: %s", e.operation, e.context, e.cause, e.suggestion)
}

func (e *commandError) Unwrap() error {
	return e.cause
}
