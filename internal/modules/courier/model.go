// Package courier exposes the read side of the courier directory plus the
// busy-flag claim used when an order is committed. Account management of
// couriers belongs to another subsystem; this core only consumes it.
package courier

import "dispatch/internal/types"

// Courier carries the attributes dispatch needs to filter and score.
type Courier struct {
	ID             types.ID
	Name           string
	Online         bool
	Approved       bool
	Blocked        bool
	Busy           bool
	AcceptanceRate float64  // 0..100
	Rating         *float64 // 0..5, nil while unrated
	TotalOrders    int
}

// Eligible reports whether the courier may receive offers at all.
func (c Courier) Eligible() bool {
	return c.Online && c.Approved && !c.Blocked && !c.Busy
}
