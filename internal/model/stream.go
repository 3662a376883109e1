package model

import (
	"time"
)

// StreamEvent is an inbound stream as delivered by the network client: the
// content of one stream commit together with the context it was indexed under.
type StreamEvent struct {
	StreamID   string         `json:"stream_id" binding:"required"`
	Context    string         `json:"context,omitempty"`
	Model      string         `json:"model,omitempty"`
	Controller string         `json:"controller,omitempty"`
	Content    map[string]any `json:"content"`
}

// IDOnly returns the reduced event handed to stream-id-keyed hooks.
func (e StreamEvent) IDOnly() StreamEvent {
	return StreamEvent{StreamID: e.StreamID}
}

// Clone returns a copy whose content map can be read without racing the
// original. Nested values are shared.
func (e StreamEvent) Clone() StreamEvent {
	out := e
	if e.Content != nil {
		out.Content = make(map[string]any, len(e.Content))
		for k, v := range e.Content {
			out.Content[k] = v
		}
	}
	return out
}

// StreamRecord is the finalized representation handed to the persistence sink.
type StreamRecord struct {
	StreamID        string         `json:"stream_id"`
	Context         string         `json:"context,omitempty"`
	Model           string         `json:"model,omitempty"`
	Controller      string         `json:"controller,omitempty"`
	Content         map[string]any `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	IndexedAt       time.Time      `json:"indexed_at"`
	SettingsVersion uint64         `json:"settings_version"`
}

// NewStreamRecord builds a record from the event and merged metadata.
func NewStreamRecord(event StreamEvent, metadata map[string]any, version uint64, at time.Time) StreamRecord {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return StreamRecord{
		StreamID:        event.StreamID,
		Context:         event.Context,
		Model:           event.Model,
		Controller:      event.Controller,
		Content:         event.Content,
		Metadata:        metadata,
		IndexedAt:       at.UTC(),
		SettingsVersion: version,
	}
}
