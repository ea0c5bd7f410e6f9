// Package types holds small value types shared across modules.
package types

// ID identifies a courier or an order.
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Money is an integer amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string
}
