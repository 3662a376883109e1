package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/contexttree"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/settings"
)

func newChainCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <context-id>",
		Short: "Print the assignment chain of a context, global first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.requireSettings("resolve chain")
			if err != nil {
				return err
			}
			s, err := settings.Load(path)
			if err != nil {
				return newCommandError("resolve chain", "loading settings", err, "Fix the reported settings error and try again.")
			}

			id := args[0]
			if id != contexttree.GlobalID {
				if _, ok := contexttree.Find(s.Contexts, id); !ok {
					return newCommandError("resolve chain", fmt.Sprintf("looking up context %q", id), fmt.Errorf("context not found"), "Run with a stream_id declared in the contexts tree.")
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(contexttree.ApplicableChain(s.Contexts, id), " > "))
			return nil
		},
	}

	return cmd
}
