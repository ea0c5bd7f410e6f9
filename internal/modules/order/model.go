// Package order owns the dispatchable order aggregate and its status
// machine. Assignment-relevant fields are written exclusively through the
// conditional store operations here.
package order

import (
	"time"

	"dispatch/internal/types"
)

type Status string

const (
	StatusSearching    Status = "searching"
	StatusOffered      Status = "offered"
	StatusAssigned     Status = "assigned"
	StatusUnassignable Status = "unassignable"
	StatusCancelled    Status = "cancelled"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Order is a delivery order from the dispatch core's point of view.
// SearchRadiusM, MaxOffers and OfferTimeout are per-order overrides; zero
// values fall back to the configured defaults.
type Order struct {
	ID            types.ID
	Pickup        types.Point
	Payout        types.Money
	Priority      Priority
	SearchRadiusM float64
	MaxOffers     int
	OfferTimeout  time.Duration

	Status           Status
	StatusVersion    int
	OfferedCourierID *types.ID
	CourierID        *types.ID

	CreatedAt  time.Time
	OfferedAt  *time.Time
	AssignedAt *time.Time
	ClosedAt   *time.Time
}

// AllowedTransitions represents the dispatch state flow as code. An offered
// order may be re-offered to the next candidate, which is why offered maps
// to itself.
var AllowedTransitions = map[Status][]Status{
	StatusSearching: {StatusOffered, StatusAssigned, StatusUnassignable, StatusCancelled},
	StatusOffered:   {StatusOffered, StatusAssigned, StatusSearching, StatusUnassignable, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further dispatch activity may touch the order.
func (s Status) Terminal() bool {
	return s == StatusAssigned || s == StatusUnassignable || s == StatusCancelled
}
