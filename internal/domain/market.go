package domain

import "time"

// Quote is a market's current top-of-book snapshot for one symbol.
type Quote struct {
	Market    string
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64
	Timestamp time.Time
}

// Spread returns the gross spread between ask and bid as a percentage of the ask.
func (q Quote) Spread() float64 {
	if q.Ask <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / q.Ask * 100
}

// PriceLevel is a single price+volume entry on one side of an order book.
type PriceLevel struct {
	Price  float64
	Volume float64
}

// OrderBookSnapshot holds both sides of a market's order book,
// best price first on each side.
type OrderBookSnapshot struct {
	Market    string
	Symbol    string
	Bids      []PriceLevel // highest first
	Asks      []PriceLevel // lowest first
	Timestamp time.Time
}

// BestBid returns the top bid price, or 0 if the side is empty.
func (s OrderBookSnapshot) BestBid() float64 {
	if len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 if the side is empty.
func (s OrderBookSnapshot) BestAsk() float64 {
	if len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}
