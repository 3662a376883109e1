package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/app"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/dispatch"
	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
)

type dispatchOptions struct {
	dataDir string
}

func newDispatchCmd(root *rootFlags) *cobra.Command {
	opts := &dispatchOptions{}

	cmd := &cobra.Command{
		Use:   "dispatch [event-file]",
		Short: "Run one stream event through the plugin hooks and print the outcome",
		Long:  "Reads a stream event as JSON from event-file, or from stdin when the file is omitted or '-', and prints the pass outcome as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return runDispatch(cmd, root, opts, source)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "Badger data directory; empty keeps records in memory")

	return cmd
}

type dispatchOutput struct {
	State           dispatch.State      `json:"state"`
	Record          *model.StreamRecord `json:"record,omitempty"`
	Rejection       *dispatch.Rejection `json:"rejection,omitempty"`
	Errors          []string            `json:"errors,omitempty"`
	SettingsVersion uint64              `json:"settings_version"`
	CorrelationID   string              `json:"correlation_id"`
}

func readEvent(cmd *cobra.Command, source string) (model.StreamEvent, error) {
	var reader io.Reader = cmd.InOrStdin()
	if source != "-" {
		file, err := os.Open(source)
		if err != nil {
			return model.StreamEvent{}, err
		}
		defer file.Close()
		reader = file
	}

	var event model.StreamEvent
	if err := json.NewDecoder(reader).Decode(&event); err != nil {
		return model.StreamEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if event.StreamID == "" {
		return model.StreamEvent{}, fmt.Errorf("event requires a stream_id")
	}
	return event, nil
}

func runDispatch(cmd *cobra.Command, root *rootFlags, opts *dispatchOptions, source string) error {
	event, err := readEvent(cmd, source)
	if err != nil {
		return newCommandError("dispatch", "reading the stream event", err, "Provide a JSON object with at least a stream_id.")
	}

	log, err := root.logger(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	host, err := app.New(ctx, app.Options{
		SettingsPath: root.settings(),
		DataDir:      opts.dataDir,
		Logger:       log,
	})
	if err != nil {
		return newCommandError("dispatch", "starting the host", err, "Check the settings file and data directory.")
	}
	defer host.Close() //nolint:errcheck

	outcome, dispatchErr := host.Dispatcher.Dispatch(ctx, event)

	out := dispatchOutput{
		State:           outcome.State,
		Record:          outcome.Record,
		Rejection:       outcome.Rejection,
		SettingsVersion: outcome.SettingsVersion,
		CorrelationID:   outcome.CorrelationID,
	}
	for _, e := range outcome.Errors {
		out.Errors = append(out.Errors, e.Error())
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return err
	}
	if dispatchErr != nil {
		return newCommandError("dispatch", "persisting the stream", dispatchErr, "Check the data directory.")
	}
	return nil
}
