package ports

import (
	"context"
	"errors"

	"github.com/OrbisWeb3/orbisdb-sub001/internal/model"
)

// ErrStreamNotFound is returned by StreamClient implementations when the
// requested stream is unknown.
var ErrStreamNotFound = errors.New("stream not found")

// StreamClient is the handle hooks use to look up other streams. One client is
// created per process and passed explicitly into every hook call. It must be
// safe for concurrent use.
type StreamClient interface {
	Load(ctx context.Context, streamID string) (*model.StreamRecord, error)
}

// Sink receives finalized records. Rejected streams never reach it.
// Implementations must be safe for concurrent use because passes run in
// parallel.
type Sink interface {
	Persist(ctx context.Context, record model.StreamRecord) error
}
