package dispatch

import (
	"sort"

	"dispatch/internal/config"
	"dispatch/internal/modules/courier"
	"dispatch/internal/modules/location"
	"dispatch/internal/types"
)

const (
	maxRating     = 5.0
	neutralRating = 2.5
	// experienceCap bounds the completed-orders contribution so veterans
	// don't drown out every other factor.
	experienceCap = 500.0
)

// Scorer converts geo-filtered couriers into a ranked preference order.
// Pure: no I/O, fixed inputs give a fixed ranking.
type Scorer struct {
	policy config.ScoringConfig
}

func NewScorer(policy config.ScoringConfig) Scorer {
	return Scorer{policy: policy}
}

// Rank filters out ineligible couriers, scores the rest against the order's
// search radius and sorts descending by score. Ties break by ascending
// distance, then courier id, so rankings are reproducible.
func (s Scorer) Rank(radiusM float64, nearby []location.Nearby, directory map[types.ID]courier.Courier) []ScoredCandidate {
	if radiusM <= 0 {
		radiusM = location.DefaultRadiusM
	}

	out := make([]ScoredCandidate, 0, len(nearby))
	for _, n := range nearby {
		c, ok := directory[n.CourierID]
		if !ok || !c.Eligible() {
			continue
		}
		out = append(out, ScoredCandidate{
			CourierID: n.CourierID,
			DistanceM: n.DistanceM,
			Score:     s.score(n.DistanceM, radiusM, c),
			Courier:   c,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].DistanceM != out[j].DistanceM {
			return out[i].DistanceM < out[j].DistanceM
		}
		return out[i].CourierID < out[j].CourierID
	})
	return out
}

func (s Scorer) score(distM, radiusM float64, c courier.Courier) float64 {
	closeness := 1 - distM/radiusM
	if closeness < 0 {
		closeness = 0
	}

	// A courier nobody has rated yet scores the midpoint, not zero.
	rating := neutralRating
	if c.Rating != nil {
		rating = *c.Rating
	}

	experience := float64(c.TotalOrders)
	if experience > experienceCap {
		experience = experienceCap
	}

	return s.policy.DistanceWeight*closeness +
		s.policy.AcceptanceWeight*(c.AcceptanceRate/100) +
		s.policy.RatingWeight*(rating/maxRating) +
		s.policy.ExperienceWeight*(experience/experienceCap)
}
