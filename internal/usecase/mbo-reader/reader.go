package mboreader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
)

// tsLayout is the feed timestamp form: ISO-8601 UTC with nanoseconds.
const tsLayout = time.RFC3339Nano

// required columns; every other column is optional or passthrough.
var requiredColumns = []string{"ts_event", "action", "side", "price", "size", "order_id", "sequence"}

// Reader streams MBO events from a CSV feed.
//
// Columns are resolved by header name, so column order may vary and
// unknown columns are ignored. Rows that fail to parse are skipped with a
// warning and counted; they never abort the stream.
type Reader struct {
	csv       *csv.Reader
	closer    io.Closer
	columns   map[string]int
	malformed uint64
	line      uint64
	logger    logger.Interface
}

// NewReader creates a Reader over src and consumes the header row. A
// missing or incomplete header is an input failure.
func NewReader(src io.Reader, log logger.Interface) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.NewTracer("failed to read feed header").WithCode(errors.InputOpenFailure).Wrap(err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range requiredColumns {
		if _, exists := columns[name]; !exists {
			return nil, errors.NewTracer(fmt.Sprintf("feed header missing column %q", name)).WithCode(errors.InputOpenFailure)
		}
	}

	reader := &Reader{
		csv:     cr,
		columns: columns,
		logger:  log,
		line:    1,
	}
	if closer, ok := src.(io.Closer); ok {
		reader.closer = closer
	}

	return reader, nil
}

// Next returns the next event in feed order, or io.EOF at end of stream.
func (r *Reader) Next(ctx context.Context) (*marketv1.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		r.line++
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				r.skipRow(err)
				continue
			}
			return nil, errors.NewTracer("failed to read feed row").WithCode(errors.InputOpenFailure).Wrap(err)
		}

		event, err := r.parseRecord(record)
		if err != nil {
			r.skipRow(err)
			continue
		}

		return event, nil
	}
}

// MalformedRows reports how many rows were skipped so far.
func (r *Reader) MalformedRows() uint64 {
	return r.malformed
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) skipRow(err error) {
	r.malformed++
	r.logger.Warn("malformed row skipped",
		logger.Field{Key: "line", Value: r.line},
		logger.Field{Key: "error", Value: err.Error()},
	)
}

func (r *Reader) parseRecord(record []string) (*marketv1.Event, error) {
	event := &marketv1.Event{}

	tsEvent, err := time.Parse(tsLayout, r.field(record, "ts_event"))
	if err != nil {
		return nil, fmt.Errorf("ts_event: %w", err)
	}
	event.TsEvent = tsEvent.UnixNano()

	// ts_recv mirrors ts_event when the feed does not carry it
	event.TsRecv = event.TsEvent
	if raw := r.field(record, "ts_recv"); raw != "" {
		tsRecv, err := time.Parse(tsLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("ts_recv: %w", err)
		}
		event.TsRecv = tsRecv.UnixNano()
	}

	action := r.field(record, "action")
	if len(action) != 1 {
		return nil, fmt.Errorf("action: got %q, want a single character", action)
	}
	event.Action = marketv1.Action(action[0])

	side := r.field(record, "side")
	switch side {
	case "":
		event.Side = marketv1.SideNone
	case "B", "A", "N":
		event.Side = marketv1.Side(side[0])
	default:
		return nil, fmt.Errorf("side: got %q, want B, A or N", side)
	}

	if raw := r.field(record, "price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		if math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("price: got %q, want a finite number", raw)
		}
		event.Price = price
	}

	if event.Size, err = r.uintField(record, "size"); err != nil {
		return nil, err
	}
	if event.OrderID, err = r.uintField(record, "order_id"); err != nil {
		return nil, err
	}
	if event.Sequence, err = r.uintField(record, "sequence"); err != nil {
		return nil, err
	}

	if raw := r.field(record, "flags"); raw != "" {
		flags, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("flags: %w", err)
		}
		event.Flags = uint8(flags)
	}

	if raw := r.field(record, "ts_in_delta"); raw != "" {
		delta, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("ts_in_delta: %w", err)
		}
		event.TsInDelta = int32(delta)
	}

	event.Symbol = r.field(record, "symbol")

	return event, nil
}

// field returns the named column's value, or "" when the column is absent.
func (r *Reader) field(record []string, name string) string {
	at, exists := r.columns[name]
	if !exists || at >= len(record) {
		return ""
	}
	return record[at]
}

// uintField parses a non-negative integer column; empty means zero.
func (r *Reader) uintField(record []string, name string) (uint64, error) {
	raw := r.field(record, name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
