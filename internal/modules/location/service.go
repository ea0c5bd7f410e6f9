package location

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/types"
)

// Service is the courier-facing position API: cache write first, durable
// write queued behind it.
type Service struct {
	index *GeoIndex
	queue *WriteBackQueue
	log   *slog.Logger
}

func NewService(index *GeoIndex, queue *WriteBackQueue, log *slog.Logger) *Service {
	return &Service{
		index: index,
		queue: queue,
		log:   log.With("component", "location"),
	}
}

// Report records a position. The index write happens synchronously so the
// new position is visible to radius queries before this call returns; the
// history write is queued. An unreachable index degrades to best-effort and
// never fails the reporting path.
func (s *Service) Report(ctx context.Context, pos Position) {
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = time.Now().UTC()
	}
	if err := s.index.Upsert(ctx, pos.CourierID, pos.Point); err != nil {
		s.log.Warn("geo index upsert failed, continuing",
			"courier_id", pos.CourierID, "error", err)
	}
	s.queue.Enqueue(pos)
}

// Offline removes the courier from the live index. Best-effort: a failed
// removal is logged, and the entry ages out on the next report cycle anyway.
func (s *Service) Offline(ctx context.Context, id types.ID) {
	if err := s.index.Remove(ctx, id); err != nil {
		s.log.Warn("geo index remove failed", "courier_id", id, "error", err)
	}
}
