package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugins"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
	"github.com/OrbisWeb3/orbisdb-sub001/pkg/diff"
)

type assignOptions struct {
	pluginID   string
	contexts   []string
	vars       []string
	pluginVars []string
	dryRun     bool
}

func newAssignCmd(root *rootFlags) *cobra.Command {
	opts := &assignOptions{}

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign a plugin to contexts and store its variables",
		Long: "Adds an assignment of --plugin to the given contexts and writes the settings file back. " +
			"Values given with --var are stored on the assignment; values given with --plugin-var are stored at plugin level. " +
			"Values are parsed as JSON when possible and kept as strings otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.pluginID, "plugin", "p", "", "Plugin id")
	cmd.Flags().StringArrayVarP(&opts.contexts, "context", "c", nil, "Context id (repeatable; several ids form a path)")
	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "Per-context variable as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.pluginVars, "plugin-var", nil, "Plugin-level variable as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the settings diff without writing the file")
	cmd.MarkFlagRequired("plugin") //nolint:errcheck

	return cmd
}

func newUnassignCmd(root *rootFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "unassign <plugin-id> <uuid>",
		Short: "Remove one assignment of a plugin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.requireSettings("unassign plugin")
			if err != nil {
				return err
			}
			s, err := settings.Load(path)
			if err != nil {
				return newCommandError("unassign plugin", "loading settings", err, "Fix the reported settings error and try again.")
			}
			if !settings.Unassign(s, args[0], args[1]) {
				return newCommandError("unassign plugin", fmt.Sprintf("removing %s from %s", args[1], args[0]), fmt.Errorf("assignment not found"), "Run 'orbisdb plugins --json' to list assignments.")
			}
			if dryRun {
				return printSettingsDiff(cmd, "unassign plugin", path, s)
			}
			if err := settings.Save(path, s); err != nil {
				return newCommandError("unassign plugin", "saving settings", err, "Check settings file permissions and try again.")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed assignment %s of %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the settings diff without writing the file")
	return cmd
}

// printSettingsDiff shows what Save would change in path.
func printSettingsDiff(cmd *cobra.Command, operation, path string, s *settings.Settings) error {
	before, err := os.ReadFile(path)
	if err != nil {
		return newCommandError(operation, "reading settings", err, "Check the settings path and try again.")
	}
	after, err := settings.Marshal(path, s)
	if err != nil {
		return newCommandError(operation, "encoding settings", err, "Fix the reported settings error and try again.")
	}

	out := diff.Unified(before, after, path, path+" (proposed)")
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No changes")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func schemaFor(pluginID string) ([]variables.Spec, bool) {
	for _, p := range plugins.Builtin() {
		if m := p.Manifest(); m.ID == pluginID {
			return m.Variables, true
		}
	}
	return nil, false
}

// parseVars turns key=value pairs into values. Values that are valid JSON
// keep their JSON type.
func parseVars(pairs []string) (variables.Values, error) {
	out := variables.Values{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (expected key=value)", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

func runAssign(cmd *cobra.Command, root *rootFlags, opts *assignOptions) error {
	path, err := root.requireSettings("assign plugin")
	if err != nil {
		return err
	}
	if len(opts.contexts) == 0 && len(opts.pluginVars) == 0 {
		return newCommandError("assign plugin", "reading flags", fmt.Errorf("nothing to do"), "Pass at least one --context or --plugin-var.")
	}

	schema, ok := schemaFor(opts.pluginID)
	if !ok {
		return newCommandError("assign plugin", fmt.Sprintf("looking up plugin %q", opts.pluginID), fmt.Errorf("plugin is not installed"), "Run 'orbisdb plugins' to list installed plugins.")
	}

	contextVars, err := parseVars(opts.vars)
	if err != nil {
		return newCommandError("assign plugin", "parsing --var", err, "Use key=value.")
	}
	pluginVars, err := parseVars(opts.pluginVars)
	if err != nil {
		return newCommandError("assign plugin", "parsing --plugin-var", err, "Use key=value.")
	}

	s, err := settings.Load(path)
	if err != nil {
		return newCommandError("assign plugin", "loading settings", err, "Fix the reported settings error and try again.")
	}

	if len(pluginVars) > 0 {
		if err := settings.SetPluginVariables(s, schema, opts.pluginID, pluginVars); err != nil {
			return newCommandError("assign plugin", "storing plugin variables", err, "Check the plugin's declared variables with 'orbisdb plugins --json'.")
		}
	}

	var id string
	if len(opts.contexts) > 0 {
		id, err = settings.Assign(s, schema, opts.pluginID, opts.contexts, contextVars)
		if err != nil {
			return newCommandError("assign plugin", "creating the assignment", err, "Check the context ids and the plugin's declared variables.")
		}
	}

	if opts.dryRun {
		return printSettingsDiff(cmd, "assign plugin", path, s)
	}
	if err := settings.Save(path, s); err != nil {
		return newCommandError("assign plugin", "saving settings", err, "Check settings file permissions and try again.")
	}

	if id != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s (uuid %s)\n", opts.pluginID, strings.Join(opts.contexts, " > "), id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Updated variables of %s\n", opts.pluginID)
	}
	return nil
}
