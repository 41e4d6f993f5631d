package marketv1

import "context"

// EventSource streams MBO events in feed order.
type EventSource interface {
	// Next returns the next event, or io.EOF at end of stream. Rows that
	// fail to parse are skipped and counted, never surfaced as errors.
	Next(ctx context.Context) (*Event, error)
	// MalformedRows reports how many rows were skipped so far.
	MalformedRows() uint64
	// Close releases the underlying stream.
	Close() error
}

// SnapshotSink receives emitted MBP-10 snapshots in emission order.
type SnapshotSink interface {
	WriteHeader() error
	WriteSnapshot(snapshot *Snapshot) error
	// Flush forces buffered rows out; it is called at least once on
	// driver exit.
	Flush() error
	// Rows reports how many snapshot rows have been written.
	Rows() uint64
}

// SnapshotPublisher mirrors emitted snapshots to a side channel.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot *Snapshot) error
	Close() error
}
