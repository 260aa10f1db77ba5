package domain

import (
	"strconv"
	"time"
)

// Ladder es el snapshot del libro de órdenes de un token en un instante.
// Inmutable una vez construido: el feed lo entrega por valor y nadie lo muta.
type Ladder struct {
	TokenID   string
	Bids      []BookLevel // ordenados mayor a menor precio
	Asks      []BookLevel // ordenados menor a mayor precio
	Timestamp time.Time
}

// BookLevel es un nivel de precio en el ladder.
type BookLevel struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el lado está vacío.
func (l Ladder) BestBid() float64 {
	if len(l.Bids) == 0 {
		return 0
	}
	return l.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el lado está vacío.
func (l Ladder) BestAsk() float64 {
	if len(l.Asks) == 0 {
		return 0
	}
	return l.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (l Ladder) Midpoint() float64 {
	bid := l.BestBid()
	ask := l.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Validate rejects malformed snapshots: empty books, crossed books
// (best bid > best ask), unsorted sides, or duplicate price levels.
// A ladder that fails validation is dropped, not acted on.
func (l Ladder) Validate() error {
	if len(l.Bids) == 0 && len(l.Asks) == 0 {
		return ErrEmptyLadder
	}
	for i := 1; i < len(l.Bids); i++ {
		if l.Bids[i].Price >= l.Bids[i-1].Price {
			return ErrCrossedBook
		}
	}
	for i := 1; i < len(l.Asks); i++ {
		if l.Asks[i].Price <= l.Asks[i-1].Price {
			return ErrCrossedBook
		}
	}
	if len(l.Bids) > 0 && len(l.Asks) > 0 && l.BestBid() > l.BestAsk() {
		return ErrCrossedBook
	}
	return nil
}

// AskDepthShares devuelve el volumen total de asks en shares.
func (l Ladder) AskDepthShares() float64 {
	var total float64
	for _, a := range l.Asks {
		total += a.Size
	}
	return total
}

// BidDepthShares devuelve el volumen total de bids en shares.
func (l Ladder) BidDepthShares() float64 {
	var total float64
	for _, b := range l.Bids {
		total += b.Size
	}
	return total
}

// ParsePrice convierte un string de precio a float64.
// Usado en el mapping de la API.
func ParsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
