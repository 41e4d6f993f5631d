package orderbookv1

import (
	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
)

// Order represents a single resting order tracked by the book.
//
// The per-order index holds orders by id only; the owning level is reached
// through side + price, never through a back-pointer.
type Order struct {
	ID    uint64        `json:"id"`
	Price float64       `json:"price"`
	Size  uint64        `json:"size"`
	Side  marketv1.Side `json:"side"`
}

// NewOrder creates a new resting order.
func NewOrder(id uint64, price float64, size uint64, side marketv1.Side) *Order {
	return &Order{
		ID:    id,
		Price: price,
		Size:  size,
		Side:  side,
	}
}

// IsBid checks if the order rests on the bid side.
func (o *Order) IsBid() bool {
	return o.Side == marketv1.SideBid
}

// IsAsk checks if the order rests on the ask side.
func (o *Order) IsAsk() bool {
	return o.Side == marketv1.SideAsk
}

// IsFilled checks if the order has no remaining size.
func (o *Order) IsFilled() bool {
	return o.Size == 0
}
