package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/app"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/sink"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/variables"
)

type pluginsOptions struct {
	jsonOutput bool
}

func newPluginsCmd(root *rootFlags) *cobra.Command {
	opts := &pluginsOptions{}

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List installed plugins with their hooks and assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugins(cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

// pluginRow lists plugin-level variables apart from per-context ones.
type pluginRow struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Available        bool     `json:"available"`
	Error            string   `json:"error,omitempty"`
	Hooks            []string `json:"hooks"`
	Routes           []string `json:"routes"`
	PluginVariables  []string `json:"plugin_variables"`
	ContextVariables []string `json:"context_variables"`
	Assignments      int      `json:"assignments"`
}

func runPlugins(cmd *cobra.Command, root *rootFlags, opts *pluginsOptions) error {
	log, err := root.logger(cmd)
	if err != nil {
		return err
	}

	host, err := app.New(context.Background(), app.Options{
		SettingsPath: root.settings(),
		Store:        sink.NewMemoryStore(),
		Logger:       log,
	})
	if err != nil {
		return newCommandError("list plugins", "loading settings", err, "Fix the reported settings error and try again.")
	}
	defer host.Close() //nolint:errcheck

	snap := host.Settings.Current()
	var rows []pluginRow
	for _, d := range host.Registry.Descriptors() {
		rows = append(rows, describePlugin(d, len(snap.Assignments.ForPlugin(d.ID()))))
	}

	if opts.jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{"count": len(rows), "plugins": rows})
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tVERSION\tSTATUS\tHOOKS\tASSIGNMENTS")
	for _, r := range rows {
		status := "available"
		if !r.Available {
			status = "unavailable"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.Version, status, strings.Join(r.Hooks, ","), r.Assignments)
	}
	return writer.Flush()
}

func describePlugin(d *plugin.Descriptor, assignments int) pluginRow {
	row := pluginRow{
		ID:          d.ID(),
		Name:        d.Manifest.DisplayName(),
		Version:     d.Manifest.Version,
		Available:   d.Available,
		Hooks:       []string{},
		Routes:      []string{},
		Assignments: assignments,
	}
	if d.InitErr != nil {
		row.Error = d.InitErr.Error()
	}
	for kind := range d.Hooks {
		row.Hooks = append(row.Hooks, string(kind))
	}
	sort.Strings(row.Hooks)
	for _, r := range d.Routes {
		row.Routes = append(row.Routes, r.Method+" "+r.Path)
	}
	global, perContext := variables.Split(d.Manifest.Variables)
	row.PluginVariables = specIDs(global)
	row.ContextVariables = specIDs(perContext)
	return row
}

func specIDs(specs []variables.Spec) []string {
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.ID)
	}
	return ids
}
