package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugin"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/plugins"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display build information and the compiled-in plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "OrbisDB %s\ncommit: %s\nbuilt: %s\n", version, commit, date)

			kinds := make([]string, 0, len(plugin.Kinds()))
			for _, k := range plugin.Kinds() {
				kinds = append(kinds, string(k))
			}
			fmt.Fprintf(out, "hook kinds: %s\n", strings.Join(kinds, ", "))

			fmt.Fprintln(out, "plugins:")
			for _, p := range plugins.Builtin() {
				m := p.Manifest()
				fmt.Fprintf(out, "  %s %s\n", m.ID, m.Version)
			}
			return nil
		},
	}

	return cmd
}
