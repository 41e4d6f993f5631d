package orderbookv1

import "sort"

// Ladder is one side of the book: price levels kept in best-first order.
// Bids are descending by price, asks ascending. Price comparisons are
// exact equality on the parsed representation.
type Ladder struct {
	levels     map[float64]*Level
	prices     []float64 // best-first
	descending bool
}

// NewLadder creates an empty side. descending is true for the bid side.
func NewLadder(descending bool) *Ladder {
	return &Ladder{
		levels:     make(map[float64]*Level),
		descending: descending,
	}
}

// Get returns the level at price, or nil.
func (d *Ladder) Get(price float64) *Level {
	return d.levels[price]
}

// GetOrCreate returns the level at price, creating and ranking it when
// absent.
func (d *Ladder) GetOrCreate(price float64) *Level {
	if level, exists := d.levels[price]; exists {
		return level
	}

	level := NewLevel(price)
	d.levels[price] = level

	at := d.rank(price)
	d.prices = append(d.prices, 0)
	copy(d.prices[at+1:], d.prices[at:])
	d.prices[at] = price

	return level
}

// Remove deletes the level at price.
func (d *Ladder) Remove(price float64) {
	if _, exists := d.levels[price]; !exists {
		return
	}

	delete(d.levels, price)

	at := d.rank(price)
	if at < len(d.prices) && d.prices[at] == price {
		d.prices = append(d.prices[:at], d.prices[at+1:]...)
	}
}

// rank returns the position price holds (or would hold) in best-first order.
func (d *Ladder) rank(price float64) int {
	if d.descending {
		return sort.Search(len(d.prices), func(i int) bool {
			return d.prices[i] <= price
		})
	}
	return sort.Search(len(d.prices), func(i int) bool {
		return d.prices[i] >= price
	})
}

// Best returns the best level, or nil when the side is empty.
func (d *Ladder) Best() *Level {
	if len(d.prices) == 0 {
		return nil
	}
	return d.levels[d.prices[0]]
}

// Top returns up to n best levels in ranking order.
func (d *Ladder) Top(n int) []*Level {
	if n > len(d.prices) {
		n = len(d.prices)
	}

	top := make([]*Level, 0, n)
	for _, price := range d.prices[:n] {
		top = append(top, d.levels[price])
	}
	return top
}

// Len returns the number of levels on the side.
func (d *Ladder) Len() int {
	return len(d.prices)
}

// Clear removes every level.
func (d *Ladder) Clear() {
	d.levels = make(map[float64]*Level)
	d.prices = d.prices[:0]
}
