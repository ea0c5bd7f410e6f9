// Package dispatch matches searching orders to nearby couriers: it ranks
// geo-filtered candidates and runs the sequential offer state machine.
package dispatch

import (
	"dispatch/internal/modules/courier"
	"dispatch/internal/types"
)

type Outcome string

const (
	// OutcomeAssigned means a courier was committed for the order.
	OutcomeAssigned Outcome = "assigned"
	// OutcomePending means the offer cycle is running in the background;
	// callers must not treat this as an error.
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoCandidates Reason = "no eligible candidates"
	ReasonExhausted    Reason = "all candidates declined or timed out"
	ReasonCancelled    Reason = "order cancelled"
	ReasonConflict     Reason = "concurrent dispatch attempt in progress"
	ReasonDownstream   Reason = "downstream error"
)

// Result is the structured outcome of a dispatch attempt.
type Result struct {
	Outcome   Outcome  `json:"outcome"`
	CourierID types.ID `json:"courier_id,omitempty"`
	Reason    Reason   `json:"reason,omitempty"`
}

func assigned(id types.ID) Result {
	return Result{Outcome: OutcomeAssigned, CourierID: id}
}

func failed(reason Reason) Result {
	return Result{Outcome: OutcomeFailed, Reason: reason}
}

// ScoredCandidate is a ranked courier for one dispatch attempt. Derived and
// ephemeral; never persisted.
type ScoredCandidate struct {
	CourierID types.ID
	DistanceM float64
	Score     float64
	Courier   courier.Courier
}
