package mboreader

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedHeader = "ts_recv,ts_event,rtype,publisher_id,instrument_id,action,side,price,size,channel_id,order_id,flags,ts_in_delta,sequence,symbol\n"

func newTestReader(t *testing.T, feed string) *Reader {
	t.Helper()
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)

	reader, err := NewReader(strings.NewReader(feed), log)
	require.NoError(t, err)
	return reader
}

func TestReader_Next(t *testing.T) {
	feed := feedHeader +
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,B,5.51,100,0,817593,130,165000,851012,ARL\n"

	reader := newTestReader(t, feed)
	event, err := reader.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, marketv1.ActionAdd, event.Action)
	assert.Equal(t, marketv1.SideBid, event.Side)
	assert.Equal(t, 5.51, event.Price)
	assert.Equal(t, uint64(100), event.Size)
	assert.Equal(t, uint64(817593), event.OrderID)
	assert.Equal(t, uint8(130), event.Flags)
	assert.Equal(t, int32(165000), event.TsInDelta)
	assert.Equal(t, uint64(851012), event.Sequence)
	assert.Equal(t, "ARL", event.Symbol)

	expected, err := time.Parse(time.RFC3339Nano, "2025-07-17T08:05:03.360677248Z")
	require.NoError(t, err)
	assert.Equal(t, expected.UnixNano(), event.TsEvent)
	assert.Equal(t, expected.UnixNano(), event.TsRecv)

	_, err = reader.Next(context.Background())
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, uint64(0), reader.MalformedRows())
}

func TestReader_HeaderOrderIndependent(t *testing.T) {
	feed := "sequence,order_id,size,price,side,action,ts_event\n" +
		"7,42,10,9.99,A,C,2025-07-17T08:05:03.360677248Z\n"

	reader := newTestReader(t, feed)
	event, err := reader.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, marketv1.ActionCancel, event.Action)
	assert.Equal(t, marketv1.SideAsk, event.Side)
	assert.Equal(t, 9.99, event.Price)
	assert.Equal(t, uint64(7), event.Sequence)
	// ts_recv mirrors ts_event when the feed does not carry it
	assert.Equal(t, event.TsEvent, event.TsRecv)
}

func TestReader_MissingRequiredColumn(t *testing.T) {
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)

	_, err = NewReader(strings.NewReader("ts_event,action,side\n"), log)
	require.Error(t, err)
	assert.Equal(t, errors.InputOpenFailure, errors.CodeOf(err))
}

func TestReader_EmptyInput(t *testing.T) {
	log, err := logger.NewLogger(logger.WithLoggingLevel(logger.ErrorLevel))
	require.NoError(t, err)

	_, err = NewReader(strings.NewReader(""), log)
	require.Error(t, err)
	assert.Equal(t, errors.InputOpenFailure, errors.CodeOf(err))
}

func TestReader_MalformedRowsSkipped(t *testing.T) {
	feed := feedHeader +
		"not-a-timestamp,not-a-timestamp,160,2,1108,A,B,5.51,100,0,1,0,0,1,ARL\n" + // bad timestamp
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,B,abc,100,0,2,0,0,2,ARL\n" + // bad price
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,X,5.51,100,0,3,0,0,3,ARL\n" + // bad side
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,AA,B,5.51,100,0,4,0,0,4,ARL\n" + // bad action
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,A,B,5.51,100,0,5,0,0,5,ARL\n" // good

	reader := newTestReader(t, feed)
	event, err := reader.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(5), event.OrderID)
	assert.Equal(t, uint64(4), reader.MalformedRows())

	_, err = reader.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestReader_EmptyOptionalFields(t *testing.T) {
	feed := feedHeader +
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,R,N,,0,0,0,,,0,\n"

	reader := newTestReader(t, feed)
	event, err := reader.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, marketv1.ActionReset, event.Action)
	assert.Equal(t, marketv1.SideNone, event.Side)
	assert.Equal(t, 0.0, event.Price)
	assert.Equal(t, uint64(0), event.Size)
	assert.Equal(t, uint8(0), event.Flags)
	assert.Equal(t, int32(0), event.TsInDelta)
	assert.Equal(t, "", event.Symbol)
}

func TestReader_UnknownActionPassedThrough(t *testing.T) {
	// unknown single-char actions reach the core, which ignores them
	feed := feedHeader +
		"2025-07-17T08:05:03.360677248Z,2025-07-17T08:05:03.360677248Z,160,2,1108,M,B,5.51,100,0,1,0,0,1,ARL\n"

	reader := newTestReader(t, feed)
	event, err := reader.Next(context.Background())

	require.NoError(t, err)
	assert.Equal(t, marketv1.Action('M'), event.Action)
	assert.False(t, event.Action.IsValid())
}

func TestReader_ContextCancelled(t *testing.T) {
	reader := newTestReader(t, feedHeader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reader.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
