package dispatch

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/modules/courier"
	"dispatch/internal/modules/location"
	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

// GeoQuerier is the slice of the geospatial index the orchestrator reads.
type GeoQuerier interface {
	QueryRadius(ctx context.Context, pt types.Point, radiusM float64) ([]location.Nearby, error)
}

// CourierDirectory provides eligibility attributes and the busy-flag claim.
type CourierDirectory interface {
	GetByIDs(ctx context.Context, ids []types.ID) (map[types.ID]courier.Courier, error)
	Claim(ctx context.Context, id types.ID) (bool, error)
	Release(ctx context.Context, id types.ID) error
}

// OrderStore is the conditional-update contract against the order record.
type OrderStore interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	MarkOffered(ctx context.Context, id, courierID types.ID, version int) (bool, error)
	AssignFromOffer(ctx context.Context, id, courierID types.ID, version int) (bool, error)
	AssignDirect(ctx context.Context, id, courierID types.ID, version int) (bool, error)
	Close(ctx context.Context, id types.ID, to order.Status, version int) (bool, error)
}

// Service is the dispatch orchestrator. Per order the negotiation is
// single-threaded; different orders proceed independently.
type Service struct {
	geo      GeoQuerier
	couriers CourierDirectory
	orders   OrderStore
	scorer   Scorer
	offers   *offerRegistry
	cfg      config.DispatchConfig
	log      *slog.Logger
}

func NewService(
	geo GeoQuerier,
	couriers CourierDirectory,
	orders OrderStore,
	scorer Scorer,
	cfg config.DispatchConfig,
	log *slog.Logger,
) *Service {
	return &Service{
		geo:      geo,
		couriers: couriers,
		orders:   orders,
		scorer:   scorer,
		offers:   newOfferRegistry(),
		cfg:      cfg,
		log:      log.With("component", "dispatch"),
	}
}

// Dispatch routes one attempt by priority: HIGH orders take the direct
// fast path, everything else runs the sequential offer cycle.
func (s *Service) Dispatch(ctx context.Context, orderID types.ID) Result {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		s.log.Warn("dispatch: order load failed", "order_id", orderID, "error", err)
		return failed(ReasonDownstream)
	}
	if o.Priority == order.PriorityHigh {
		return s.AutoAssignOrder(ctx, orderID)
	}
	return s.AssignOrder(ctx, orderID)
}

// DispatchAsync starts a dispatch attempt in the background and reports the
// pending outcome immediately.
func (s *Service) DispatchAsync(orderID types.ID) Result {
	go func() {
		res := s.Dispatch(context.Background(), orderID)
		s.log.Info("background dispatch finished",
			"order_id", orderID, "outcome", res.Outcome,
			"courier_id", res.CourierID, "reason", res.Reason)
	}()
	return Result{Outcome: OutcomePending}
}

// RespondToOffer delivers a courier's accept/decline for the outstanding
// offer. Stale responses (after timeout, cancellation or a committed
// assignment) are rejected and logged, never escalated.
func (s *Service) RespondToOffer(orderID, courierID types.ID, accepted bool) error {
	err := s.offers.respond(orderID, courierID, accepted)
	if err != nil {
		s.log.Warn("offer response lost the race",
			"order_id", orderID, "courier_id", courierID, "accepted", accepted)
	}
	return err
}

// AssignOrder runs the full sequential offer cycle for one order:
// geo query → score/rank → offer, one candidate at a time, each behind its
// own timeout → atomic commit of the first valid acceptance.
func (s *Service) AssignOrder(ctx context.Context, orderID types.ID) Result {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return failed(ReasonDownstream)
	}
	switch o.Status {
	case order.StatusCancelled:
		return failed(ReasonCancelled)
	case order.StatusAssigned:
		return assigned(*o.CourierID)
	case order.StatusSearching:
	default:
		return failed(ReasonConflict)
	}

	ranked := s.rankCandidates(ctx, o)
	if len(ranked) == 0 {
		// Not a fault: the order stays searching and a later attempt may
		// find couriers. Index unavailability lands here too.
		return failed(ReasonNoCandidates)
	}
	if limit := s.maxOffers(o); len(ranked) > limit {
		ranked = ranked[:limit]
	}

	timeout := s.offerTimeout(o)
	for _, cand := range ranked {
		res, next := s.offerTo(ctx, orderID, cand.CourierID, timeout)
		if !next {
			return res
		}
	}

	// Ranked list exhausted without an acceptance.
	if o, err = s.orders.Get(ctx, orderID); err == nil && !o.Status.Terminal() {
		if ok, err := s.orders.Close(ctx, orderID, order.StatusUnassignable, o.StatusVersion); err != nil || !ok {
			s.log.Warn("could not mark order unassignable", "order_id", orderID, "error", err)
		}
	}
	return failed(ReasonExhausted)
}

// offerTo runs a single offer iteration. next=true means move on to the
// following candidate.
func (s *Service) offerTo(ctx context.Context, orderID, courierID types.ID, timeout time.Duration) (Result, bool) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return failed(ReasonDownstream), false
	}
	switch o.Status {
	case order.StatusCancelled:
		return failed(ReasonCancelled), false
	case order.StatusAssigned:
		return assigned(*o.CourierID), false
	case order.StatusUnassignable:
		return failed(ReasonConflict), false
	}

	// Register the rendezvous before the offered state becomes visible so
	// a response can never arrive ahead of the registry entry.
	offer, ok := s.offers.put(orderID, courierID)
	if !ok {
		return failed(ReasonConflict), false
	}

	ok, err = s.orders.MarkOffered(ctx, orderID, courierID, o.StatusVersion)
	if err != nil {
		s.offers.remove(orderID, offer)
		return failed(ReasonDownstream), false
	}
	if !ok {
		// Someone else transitioned the order under us. Re-read to report
		// the true cause: a cancellation or a committed assignment is not
		// just a competing negotiation.
		s.offers.remove(orderID, offer)
		if cur, err := s.orders.Get(ctx, orderID); err == nil {
			switch cur.Status {
			case order.StatusCancelled:
				return failed(ReasonCancelled), false
			case order.StatusAssigned:
				return assigned(*cur.CourierID), false
			}
		}
		return failed(ReasonConflict), false
	}

	timer := time.NewTimer(timeout)
	defer func() {
		timer.Stop()
		s.offers.remove(orderID, offer)
	}()

	select {
	case resp := <-offer.ch:
		if !resp.accepted {
			return Result{}, true
		}
		return s.commitAcceptance(ctx, orderID, courierID)
	case <-timer.C:
		s.log.Info("offer timed out", "order_id", orderID, "courier_id", courierID)
		return Result{}, true
	case <-ctx.Done():
		return failed(ReasonDownstream), false
	}
}

// commitAcceptance claims the courier and commits the order in one logical
// operation. The courier claim comes first so a second dispatch cycle can
// no longer match them; if the order commit then loses, the claim is
// rolled back.
func (s *Service) commitAcceptance(ctx context.Context, orderID, courierID types.ID) (Result, bool) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return failed(ReasonDownstream), false
	}
	switch o.Status {
	case order.StatusCancelled:
		return failed(ReasonCancelled), false
	case order.StatusAssigned:
		return assigned(*o.CourierID), false
	}

	claimed, err := s.couriers.Claim(ctx, courierID)
	if err != nil {
		return failed(ReasonDownstream), false
	}
	if !claimed {
		// Courier went busy or offline since ranking; treat as a decline.
		return Result{}, true
	}

	ok, err := s.orders.AssignFromOffer(ctx, orderID, courierID, o.StatusVersion)
	if err != nil {
		_ = s.couriers.Release(ctx, courierID)
		return failed(ReasonDownstream), false
	}
	if !ok {
		_ = s.couriers.Release(ctx, courierID)
		s.log.Warn("acceptance rejected by commit guard",
			"order_id", orderID, "courier_id", courierID)
		return Result{}, true
	}
	return assigned(courierID), false
}

// AutoAssignOrder is the HIGH-priority fast path: no offer, no timeout,
// direct conditional commit to the best-ranked eligible candidate.
func (s *Service) AutoAssignOrder(ctx context.Context, orderID types.ID) Result {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return failed(ReasonDownstream)
	}
	switch o.Status {
	case order.StatusCancelled:
		return failed(ReasonCancelled)
	case order.StatusAssigned:
		return assigned(*o.CourierID)
	case order.StatusSearching:
	default:
		return failed(ReasonConflict)
	}

	ranked := s.rankCandidates(ctx, o)
	if len(ranked) == 0 {
		return failed(ReasonNoCandidates)
	}

	for _, cand := range ranked {
		claimed, err := s.couriers.Claim(ctx, cand.CourierID)
		if err != nil {
			return failed(ReasonDownstream)
		}
		if !claimed {
			continue
		}
		ok, err := s.orders.AssignDirect(ctx, orderID, cand.CourierID, o.StatusVersion)
		if err != nil {
			_ = s.couriers.Release(ctx, cand.CourierID)
			return failed(ReasonDownstream)
		}
		if !ok {
			// The order moved while we were claiming: assigned elsewhere,
			// cancelled, or picked up by a concurrent attempt.
			_ = s.couriers.Release(ctx, cand.CourierID)
			if cur, err := s.orders.Get(ctx, orderID); err == nil {
				switch cur.Status {
				case order.StatusAssigned:
					return assigned(*cur.CourierID)
				case order.StatusCancelled:
					return failed(ReasonCancelled)
				}
			}
			return failed(ReasonConflict)
		}
		return assigned(cand.CourierID)
	}
	return failed(ReasonExhausted)
}

// rankCandidates queries the geo index around the pickup point and scores
// the hits. Index unavailability degrades to an empty candidate set.
func (s *Service) rankCandidates(ctx context.Context, o *order.Order) []ScoredCandidate {
	radius := o.SearchRadiusM
	if radius <= 0 {
		radius = s.cfg.DefaultRadiusM
	}

	nearby, err := s.geo.QueryRadius(ctx, o.Pickup, radius)
	if err != nil {
		s.log.Warn("geo index unavailable, treating as no candidates",
			"order_id", o.ID, "error", err)
		return nil
	}
	if len(nearby) == 0 {
		return nil
	}

	ids := make([]types.ID, len(nearby))
	for i, n := range nearby {
		ids[i] = n.CourierID
	}
	directory, err := s.couriers.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("courier directory lookup failed",
			"order_id", o.ID, "error", err)
		return nil
	}

	return s.scorer.Rank(radius, nearby, directory)
}

func (s *Service) maxOffers(o *order.Order) int {
	if o.MaxOffers > 0 {
		return o.MaxOffers
	}
	if s.cfg.MaxOffers > 0 {
		return s.cfg.MaxOffers
	}
	return 5
}

func (s *Service) offerTimeout(o *order.Order) time.Duration {
	if o.OfferTimeout > 0 {
		return o.OfferTimeout
	}
	if s.cfg.OfferTimeout > 0 {
		return s.cfg.OfferTimeout
	}
	return 30 * time.Second
}
