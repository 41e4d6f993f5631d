package marketv1

// Depth is the number of price levels per side exposed by a snapshot.
const Depth = 10

// BookLevel is one aggregated price level: price, total resting size and
// resident order count. A zero value marks an absent level.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  uint64  `json:"size"`
	Count uint32  `json:"count"`
}

// Top10Image is the fixed-size capture of the top ten levels per side used
// for change detection. It is a comparable value type: == compares all
// sixty scalars element-wise. Prices must never be NaN; the feed reader
// rejects NaN upstream.
type Top10Image struct {
	Bids [Depth]BookLevel `json:"bids"`
	Asks [Depth]BookLevel `json:"asks"`
}

// Snapshot is one emitted MBP-10 row: the metadata of the triggering event
// plus the post-event top-10 book payload.
type Snapshot struct {
	TsRecv    int64   `json:"tsRecv"`
	TsEvent   int64   `json:"tsEvent"`
	Action    Action  `json:"action"`
	Side      Side    `json:"side"`
	Price     float64 `json:"price"`
	Size      uint64  `json:"size"`
	OrderID   uint64  `json:"orderID"`
	Flags     uint8   `json:"flags"`
	TsInDelta int32   `json:"tsInDelta"`
	Sequence  uint64  `json:"sequence"`
	Symbol    string  `json:"symbol,omitempty"`

	Book Top10Image `json:"book"`
}
