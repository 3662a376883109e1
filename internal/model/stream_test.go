package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIDOnlyDropsContent(t *testing.T) {
	t.Parallel()

	event := StreamEvent{StreamID: "kjz", Context: "app1", Content: map[string]any{"body": "hi"}}
	reduced := event.IDOnly()

	require.Equal(t, "kjz", reduced.StreamID)
	require.Empty(t, reduced.Context)
	require.Nil(t, reduced.Content)
}

func TestCloneCopiesTopLevelContent(t *testing.T) {
	t.Parallel()

	event := StreamEvent{StreamID: "kjz", Content: map[string]any{"body": "hi"}}
	clone := event.Clone()
	clone.Content["body"] = "changed"

	require.Equal(t, "hi", event.Content["body"])
}

func TestNewStreamRecordDefaultsMetadata(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	rec := NewStreamRecord(StreamEvent{StreamID: "kjz", Context: "app1"}, nil, 7, at)

	require.NotNil(t, rec.Metadata)
	require.Empty(t, rec.Metadata)
	require.Equal(t, uint64(7), rec.SettingsVersion)
	require.Equal(t, time.UTC, rec.IndexedAt.Location())
	require.Equal(t, "app1", rec.Context)
}
