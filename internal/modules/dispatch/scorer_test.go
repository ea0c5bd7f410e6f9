package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/config"
	"dispatch/internal/modules/courier"
	"dispatch/internal/modules/location"
	"dispatch/internal/types"
)

func testPolicy() config.ScoringConfig {
	return config.ScoringConfig{
		DistanceWeight:   0.45,
		AcceptanceWeight: 0.30,
		RatingWeight:     0.20,
		ExperienceWeight: 0.05,
	}
}

func eligibleCourier(id string) courier.Courier {
	r := 4.0
	return courier.Courier{
		ID:             types.ID(id),
		Online:         true,
		Approved:       true,
		AcceptanceRate: 80,
		Rating:         &r,
		TotalOrders:    100,
	}
}

func TestRankOrdersByDistanceWhenOtherFactorsEqual(t *testing.T) {
	// Five equal couriers at 0, 200, 800, 2000 and 4500 meters from the
	// pickup: ranking must match ascending distance exactly.
	distances := []float64{2000, 0, 4500, 200, 800}
	nearby := make([]location.Nearby, 0, len(distances))
	directory := make(map[types.ID]courier.Courier)
	for i, d := range distances {
		id := types.ID([]string{"c_a", "c_b", "c_c", "c_d", "c_e"}[i])
		nearby = append(nearby, location.Nearby{CourierID: id, DistanceM: d})
		directory[id] = eligibleCourier(string(id))
	}

	ranked := NewScorer(testPolicy()).Rank(5000, nearby, directory)

	require.Len(t, ranked, 5)
	want := []types.ID{"c_b", "c_d", "c_e", "c_a", "c_c"} // 0, 200, 800, 2000, 4500
	for i, id := range want {
		assert.Equal(t, id, ranked[i].CourierID, "position %d", i)
	}
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i].Score, ranked[i-1].Score)
	}
}

func TestRankMonotonicity(t *testing.T) {
	// Strictly closer, better acceptance, better rating must never rank
	// lower.
	better := eligibleCourier("c_better")
	better.AcceptanceRate = 95
	worse := eligibleCourier("c_worse")
	worse.AcceptanceRate = 60
	lowRating := 3.0
	worse.Rating = &lowRating

	ranked := NewScorer(testPolicy()).Rank(5000,
		[]location.Nearby{
			{CourierID: "c_worse", DistanceM: 3000},
			{CourierID: "c_better", DistanceM: 500},
		},
		map[types.ID]courier.Courier{"c_better": better, "c_worse": worse},
	)

	require.Len(t, ranked, 2)
	assert.Equal(t, types.ID("c_better"), ranked[0].CourierID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankFiltersIneligibleCouriers(t *testing.T) {
	offline := eligibleCourier("c_offline")
	offline.Online = false
	blocked := eligibleCourier("c_blocked")
	blocked.Blocked = true
	unapproved := eligibleCourier("c_unapproved")
	unapproved.Approved = false
	busy := eligibleCourier("c_busy")
	busy.Busy = true
	ok := eligibleCourier("c_ok")

	directory := map[types.ID]courier.Courier{
		"c_offline": offline, "c_blocked": blocked,
		"c_unapproved": unapproved, "c_busy": busy, "c_ok": ok,
	}
	nearby := []location.Nearby{
		{CourierID: "c_offline", DistanceM: 10},
		{CourierID: "c_blocked", DistanceM: 20},
		{CourierID: "c_unapproved", DistanceM: 30},
		{CourierID: "c_busy", DistanceM: 40},
		{CourierID: "c_unknown", DistanceM: 50}, // not in the directory
		{CourierID: "c_ok", DistanceM: 4999},
	}

	ranked := NewScorer(testPolicy()).Rank(5000, nearby, directory)

	require.Len(t, ranked, 1)
	assert.Equal(t, types.ID("c_ok"), ranked[0].CourierID)
}

func TestRankMissingRatingScoresAsMidpoint(t *testing.T) {
	rated := eligibleCourier("c_rated")
	mid := 2.5
	rated.Rating = &mid
	unrated := eligibleCourier("c_unrated")
	unrated.Rating = nil

	nearby := []location.Nearby{
		{CourierID: "c_rated", DistanceM: 100},
		{CourierID: "c_unrated", DistanceM: 100},
	}
	ranked := NewScorer(testPolicy()).Rank(5000, nearby,
		map[types.ID]courier.Courier{"c_rated": rated, "c_unrated": unrated})

	require.Len(t, ranked, 2)
	assert.InDelta(t, ranked[0].Score, ranked[1].Score, 1e-12,
		"a missing rating must score like the 2.5 midpoint, not like zero")
}

func TestRankDeterministicTieBreaks(t *testing.T) {
	// Identical couriers at identical distances: order falls back to the
	// courier id so repeated runs agree.
	nearby := []location.Nearby{
		{CourierID: "c_z", DistanceM: 300},
		{CourierID: "c_a", DistanceM: 300},
		{CourierID: "c_m", DistanceM: 300},
	}
	directory := map[types.ID]courier.Courier{
		"c_z": eligibleCourier("c_z"),
		"c_a": eligibleCourier("c_a"),
		"c_m": eligibleCourier("c_m"),
	}

	scorer := NewScorer(testPolicy())
	first := scorer.Rank(5000, nearby, directory)
	require.Len(t, first, 3)
	assert.Equal(t, types.ID("c_a"), first[0].CourierID)
	assert.Equal(t, types.ID("c_m"), first[1].CourierID)
	assert.Equal(t, types.ID("c_z"), first[2].CourierID)

	for i := 0; i < 10; i++ {
		again := scorer.Rank(5000, nearby, directory)
		assert.Equal(t, first, again)
	}
}

func TestRankBeyondRadiusClosenessFloorsAtZero(t *testing.T) {
	far := eligibleCourier("c_far")
	near := eligibleCourier("c_near")

	ranked := NewScorer(testPolicy()).Rank(1000,
		[]location.Nearby{
			{CourierID: "c_far", DistanceM: 2500},
			{CourierID: "c_near", DistanceM: 100},
		},
		map[types.ID]courier.Courier{"c_far": far, "c_near": near},
	)

	require.Len(t, ranked, 2)
	assert.Equal(t, types.ID("c_near"), ranked[0].CourierID)
	assert.GreaterOrEqual(t, ranked[1].Score, 0.0)
}
