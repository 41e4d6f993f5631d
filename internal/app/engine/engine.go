package engine

import (
	"context"
	"io"
	"time"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/internal/usecase/orderbook"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
)

// Stats summarizes one engine run.
type Stats struct {
	EventsProcessed  uint64         `json:"eventsProcessed"`
	SnapshotsWritten uint64         `json:"snapshotsWritten"`
	SuppressedEvents uint64         `json:"suppressedEvents"`
	MalformedRows    uint64         `json:"malformedRows"`
	Book             orderbook.Stats `json:"book"`
	Elapsed          time.Duration  `json:"elapsed"`
}

// Engine drives the synchronous pipeline: events in feed order through the
// book, emitted snapshots through the sink and the optional mirror.
type Engine struct {
	book      *orderbook.Book
	source    marketv1.EventSource
	sink      marketv1.SnapshotSink
	publisher marketv1.SnapshotPublisher
	logger    logger.Interface
	opts      *Options
	stats     Stats
}

// NewEngine creates an Engine. publisher may be nil when mirroring is
// disabled.
func NewEngine(
	book *orderbook.Book,
	source marketv1.EventSource,
	sink marketv1.SnapshotSink,
	publisher marketv1.SnapshotPublisher,
	log logger.Interface,
	opts *Options,
) *Engine {
	if opts == nil {
		opts = DefaultEngineOptions()
	}

	return &Engine{
		book:      book,
		source:    source,
		sink:      sink,
		publisher: publisher,
		logger:    log,
		opts:      opts,
	}
}

// Run processes the event stream to completion. Per-event anomalies are
// tolerated and counted; only I/O failures abort the run. The sink is
// flushed on every exit path.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	started := time.Now()

	if err := e.sink.WriteHeader(); err != nil {
		return e.finish(started, err)
	}

	for {
		event, err := e.source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return e.finish(started, err)
		}

		e.stats.EventsProcessed++

		before := e.book.Top10()
		outcome := e.book.Apply(event)
		if !outcome.Emit {
			continue
		}

		// The filter exists because deep-book churn is irrelevant to
		// top-of-book consumers; resets and completed trades always pass.
		if !outcome.AlwaysEmit && !e.opts.PermissiveFilter && before == e.book.Top10() {
			e.stats.SuppressedEvents++
			continue
		}

		snapshot := e.book.Snapshot(outcome.Meta, outcome.Action, outcome.Side)
		if err := e.sink.WriteSnapshot(&snapshot); err != nil {
			return e.finish(started, err)
		}
		e.stats.SnapshotsWritten++

		if e.publisher != nil {
			if err := e.publisher.PublishSnapshot(ctx, &snapshot); err != nil {
				// the mirror is best-effort; the CSV row is already durable
				e.logger.Warn("snapshot mirror publish failed",
					logger.Field{Key: "sequence", Value: snapshot.Sequence},
				)
			}
		}
	}

	return e.finish(started, nil)
}

// finish flushes the sink, folds in the reader and book counters and logs
// the run summary.
func (e *Engine) finish(started time.Time, runErr error) (Stats, error) {
	if err := e.sink.Flush(); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			e.logger.Error(err)
		}
	}

	e.stats.MalformedRows = e.source.MalformedRows()
	e.stats.Book = e.book.Stats()
	e.stats.Elapsed = time.Since(started)

	e.logger.Info("run summary",
		logger.Field{Key: "events_processed", Value: e.stats.EventsProcessed},
		logger.Field{Key: "snapshots_written", Value: e.stats.SnapshotsWritten},
		logger.Field{Key: "suppressed_events", Value: e.stats.SuppressedEvents},
		logger.Field{Key: "malformed_rows", Value: e.stats.MalformedRows},
		logger.Field{Key: "duplicate_adds", Value: e.stats.Book.DuplicateAdds},
		logger.Field{Key: "unknown_cancels", Value: e.stats.Book.UnknownCancels},
		logger.Field{Key: "over_cancels", Value: e.stats.Book.OverCancels},
		logger.Field{Key: "empty_level_fills", Value: e.stats.Book.EmptyLevelFills},
		logger.Field{Key: "fill_overflows", Value: e.stats.Book.FillOverflows},
		logger.Field{Key: "abandoned_trades", Value: e.stats.Book.AbandonedTrades},
		logger.Field{Key: "unexpected_events", Value: e.stats.Book.UnexpectedEvents},
		logger.Field{Key: "sequence_regressions", Value: e.stats.Book.SequenceRegressions},
		logger.Field{Key: "elapsed", Value: e.stats.Elapsed.String()},
	)

	if runErr != nil {
		return e.stats, errors.TracerFromError(runErr)
	}
	return e.stats, nil
}
