// Package location maintains the live courier position index and its
// durable history: Redis GEO holds the latest position per courier, the
// write-back queue ships every report to Postgres asynchronously.
package location

import (
	"time"

	"dispatch/internal/types"
)

// Position is a single courier position report. The index keeps only the
// latest one per courier; the history table keeps all of them.
type Position struct {
	CourierID  types.ID
	Point      types.Point
	CapturedAt time.Time
}

// Nearby is one geo query hit, normalized at the adapter boundary.
type Nearby struct {
	CourierID types.ID
	DistanceM float64
}
