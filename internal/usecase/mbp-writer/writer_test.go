package mbpwriter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/config"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPublisherConfig() config.PublisherConfig {
	return config.PublisherConfig{
		PublisherID:  2,
		InstrumentID: 1108,
		Symbol:       "ARL",
	}
}

func newTestWriter(t *testing.T, out *bytes.Buffer) *Writer {
	t.Helper()
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)
	return NewWriter(out, testPublisherConfig(), 0, log)
}

func testSnapshot() *marketv1.Snapshot {
	ts, _ := time.Parse(time.RFC3339Nano, "2025-07-17T08:05:03.360677248Z")

	snapshot := &marketv1.Snapshot{
		TsRecv:    ts.UnixNano(),
		TsEvent:   ts.UnixNano(),
		Action:    marketv1.ActionAdd,
		Side:      marketv1.SideBid,
		Price:     5.51,
		Size:      100,
		OrderID:   817593,
		Flags:     130,
		TsInDelta: 165000,
		Sequence:  851012,
	}
	snapshot.Book.Bids[0] = marketv1.BookLevel{Price: 5.51, Size: 100, Count: 1}
	return snapshot
}

func TestWriter_WriteHeader(t *testing.T) {
	var out bytes.Buffer
	writer := newTestWriter(t, &out)

	require.NoError(t, writer.WriteHeader())
	require.NoError(t, writer.Flush())

	line := strings.TrimSuffix(out.String(), "\n")
	fields := strings.Split(line, ",")

	// 14 metadata columns + 60 book columns + symbol + order_id
	assert.Len(t, fields, 76)
	assert.Equal(t, "", fields[0])
	assert.Equal(t, "ts_recv", fields[1])
	assert.Equal(t, "bid_px_00", fields[14])
	assert.Equal(t, "ask_ct_00", fields[19])
	assert.Equal(t, "bid_px_09", fields[68])
	assert.Equal(t, "ask_ct_09", fields[73])
	assert.Equal(t, "symbol", fields[74])
	assert.Equal(t, "order_id", fields[75])
}

func TestWriter_WriteSnapshot(t *testing.T) {
	var out bytes.Buffer
	writer := newTestWriter(t, &out)

	require.NoError(t, writer.WriteSnapshot(testSnapshot()))
	require.NoError(t, writer.Flush())

	line := strings.TrimSuffix(out.String(), "\n")
	fields := strings.Split(line, ",")
	require.Len(t, fields, 76)

	assert.Equal(t, "0", fields[0]) // row index
	assert.Equal(t, "2025-07-17T08:05:03.360677248Z", fields[1])
	assert.Equal(t, "2025-07-17T08:05:03.360677248Z", fields[2])
	assert.Equal(t, "10", fields[3])   // rtype
	assert.Equal(t, "2", fields[4])    // publisher_id
	assert.Equal(t, "1108", fields[5]) // instrument_id
	assert.Equal(t, "A", fields[6])
	assert.Equal(t, "B", fields[7])
	assert.Equal(t, "0", fields[8]) // depth
	assert.Equal(t, "5.51", fields[9])
	assert.Equal(t, "100", fields[10])
	assert.Equal(t, "130", fields[11])
	assert.Equal(t, "165000", fields[12])
	assert.Equal(t, "851012", fields[13])

	// bid level 00 is populated, ask level 00 is empty
	assert.Equal(t, "5.51", fields[14])
	assert.Equal(t, "100", fields[15])
	assert.Equal(t, "1", fields[16])
	assert.Equal(t, "", fields[17])
	assert.Equal(t, "0", fields[18])
	assert.Equal(t, "0", fields[19])

	assert.Equal(t, "ARL", fields[74])
	assert.Equal(t, "817593", fields[75])
}

func TestWriter_RowIndexIncrements(t *testing.T) {
	var out bytes.Buffer
	writer := newTestWriter(t, &out)

	require.NoError(t, writer.WriteSnapshot(testSnapshot()))
	require.NoError(t, writer.WriteSnapshot(testSnapshot()))
	require.NoError(t, writer.WriteSnapshot(testSnapshot()))
	require.NoError(t, writer.Flush())

	assert.Equal(t, uint64(3), writer.Rows())

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "0,"))
	assert.True(t, strings.HasPrefix(lines[1], "1,"))
	assert.True(t, strings.HasPrefix(lines[2], "2,"))
}

func TestWriter_PriceFormatting(t *testing.T) {
	var out bytes.Buffer
	writer := newTestWriter(t, &out)

	snapshot := testSnapshot()
	snapshot.Price = 0 // empty event price field
	snapshot.Book.Bids[0] = marketv1.BookLevel{Price: 100, Size: 7, Count: 2}
	snapshot.Book.Asks[0] = marketv1.BookLevel{Price: 21.333, Size: 1, Count: 1}

	require.NoError(t, writer.WriteSnapshot(snapshot))
	require.NoError(t, writer.Flush())

	fields := strings.Split(strings.TrimSuffix(out.String(), "\n"), ",")
	assert.Equal(t, "", fields[9])        // zero price renders empty
	assert.Equal(t, "100.00", fields[14]) // two fractional digits, always
	assert.Equal(t, "21.33", fields[17])
}

func TestWriter_SymbolFallsBackToConfig(t *testing.T) {
	var out bytes.Buffer
	writer := newTestWriter(t, &out)

	snapshot := testSnapshot()
	snapshot.Symbol = "ESM5"
	require.NoError(t, writer.WriteSnapshot(snapshot))

	snapshot.Symbol = ""
	require.NoError(t, writer.WriteSnapshot(snapshot))
	require.NoError(t, writer.Flush())

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	assert.Contains(t, lines[0], ",ESM5,")
	assert.Contains(t, lines[1], ",ARL,")
}
