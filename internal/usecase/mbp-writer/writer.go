package mbpwriter

import (
	"bufio"
	"io"
	"strconv"
	"time"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/config"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
)

// tsLayout renders timestamps with a fixed nine-digit nanosecond field,
// the same form the feed uses. The trailing Z is a literal: timestamps
// are always UTC.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// defaultBufferSize is used when the configured size is not positive.
const defaultBufferSize = 64 * 1024

// header is the fixed 76-column MBP-10 schema. The leading comma is the
// unnamed row-index column.
const header = ",ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,depth,price,size,flags,ts_in_delta,sequence," +
	"bid_px_00,bid_sz_00,bid_ct_00,ask_px_00,ask_sz_00,ask_ct_00," +
	"bid_px_01,bid_sz_01,bid_ct_01,ask_px_01,ask_sz_01,ask_ct_01," +
	"bid_px_02,bid_sz_02,bid_ct_02,ask_px_02,ask_sz_02,ask_ct_02," +
	"bid_px_03,bid_sz_03,bid_ct_03,ask_px_03,ask_sz_03,ask_ct_03," +
	"bid_px_04,bid_sz_04,bid_ct_04,ask_px_04,ask_sz_04,ask_ct_04," +
	"bid_px_05,bid_sz_05,bid_ct_05,ask_px_05,ask_sz_05,ask_ct_05," +
	"bid_px_06,bid_sz_06,bid_ct_06,ask_px_06,ask_sz_06,ask_ct_06," +
	"bid_px_07,bid_sz_07,bid_ct_07,ask_px_07,ask_sz_07,ask_ct_07," +
	"bid_px_08,bid_sz_08,bid_ct_08,ask_px_08,ask_sz_08,ask_ct_08," +
	"bid_px_09,bid_sz_09,bid_ct_09,ask_px_09,ask_sz_09,ask_ct_09," +
	"symbol,order_id"

// rtype is the MBP-10 record type constant.
const rtype = 10

// Writer serializes snapshots into the fixed MBP-10 CSV schema over a
// buffered stream.
type Writer struct {
	out    *bufio.Writer
	cfg    config.PublisherConfig
	rows   uint64
	row    []byte
	logger logger.Interface
}

// NewWriter creates a Writer over out. bufferSize falls back to 64 KiB
// when not positive.
func NewWriter(out io.Writer, cfg config.PublisherConfig, bufferSize int, log logger.Interface) *Writer {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return &Writer{
		out:    bufio.NewWriterSize(out, bufferSize),
		cfg:    cfg,
		row:    make([]byte, 0, 512),
		logger: log,
	}
}

// WriteHeader writes the schema header row.
func (w *Writer) WriteHeader() error {
	if _, err := w.out.WriteString(header + "\n"); err != nil {
		return errors.NewTracer("failed to write output header").WithCode(errors.OutputFailure).Wrap(err)
	}
	return nil
}

// WriteSnapshot appends one snapshot row. Row indexes start at zero and
// increment per emitted snapshot.
func (w *Writer) WriteSnapshot(snapshot *marketv1.Snapshot) error {
	row := w.row[:0]

	row = strconv.AppendUint(row, w.rows, 10)
	row = append(row, ',')
	row = appendTimestamp(row, snapshot.TsRecv)
	row = append(row, ',')
	row = appendTimestamp(row, snapshot.TsEvent)
	row = append(row, ',')
	row = strconv.AppendInt(row, rtype, 10)
	row = append(row, ',')
	row = strconv.AppendInt(row, int64(w.cfg.PublisherID), 10)
	row = append(row, ',')
	row = strconv.AppendInt(row, int64(w.cfg.InstrumentID), 10)
	row = append(row, ',')
	row = append(row, byte(snapshot.Action), ',', byte(snapshot.Side), ',')
	row = append(row, '0', ',') // depth: per-level attribution is not reconstructed
	row = appendPrice(row, snapshot.Price)
	row = append(row, ',')
	row = strconv.AppendUint(row, snapshot.Size, 10)
	row = append(row, ',')
	row = strconv.AppendUint(row, uint64(snapshot.Flags), 10)
	row = append(row, ',')
	row = strconv.AppendInt(row, int64(snapshot.TsInDelta), 10)
	row = append(row, ',')
	row = strconv.AppendUint(row, snapshot.Sequence, 10)

	for i := 0; i < marketv1.Depth; i++ {
		row = appendLevel(row, snapshot.Book.Bids[i])
		row = appendLevel(row, snapshot.Book.Asks[i])
	}

	row = append(row, ',')
	symbol := snapshot.Symbol
	if symbol == "" {
		symbol = w.cfg.Symbol
	}
	row = append(row, symbol...)
	row = append(row, ',')
	row = strconv.AppendUint(row, snapshot.OrderID, 10)
	row = append(row, '\n')

	w.row = row
	if _, err := w.out.Write(row); err != nil {
		return errors.NewTracer("failed to write snapshot row").WithCode(errors.OutputFailure).Wrap(err)
	}

	w.rows++
	return nil
}

// Flush forces buffered rows out to the underlying stream.
func (w *Writer) Flush() error {
	if err := w.out.Flush(); err != nil {
		return errors.NewTracer("failed to flush output").WithCode(errors.OutputFailure).Wrap(err)
	}
	return nil
}

// Rows reports how many snapshot rows have been written.
func (w *Writer) Rows() uint64 {
	return w.rows
}

// appendLevel appends one ",px,sz,ct" block.
func appendLevel(row []byte, level marketv1.BookLevel) []byte {
	row = append(row, ',')
	row = appendPrice(row, level.Price)
	row = append(row, ',')
	row = strconv.AppendUint(row, level.Size, 10)
	row = append(row, ',')
	row = strconv.AppendUint(row, uint64(level.Count), 10)
	return row
}

// appendPrice renders a price with two fractional digits; zero renders as
// the empty field.
func appendPrice(row []byte, price float64) []byte {
	if price == 0 {
		return row
	}
	return strconv.AppendFloat(row, price, 'f', 2, 64)
}

// appendTimestamp renders nanoseconds since epoch in the feed's ISO-8601
// form.
func appendTimestamp(row []byte, ns int64) []byte {
	return time.Unix(0, ns).UTC().AppendFormat(row, tsLayout)
}
