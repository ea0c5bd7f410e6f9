package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/types"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("order state conflict")
)

// Draft is the inbound "new order needs a courier" trigger. Radius, offer
// count and timeout are optional overrides.
type Draft struct {
	Pickup        types.Point
	Payout        types.Money
	Priority      Priority
	SearchRadiusM float64
	MaxOffers     int
	OfferTimeout  time.Duration
}

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Create registers a dispatchable order in the searching state.
func (s *Service) Create(ctx context.Context, d Draft) (*Order, error) {
	if d.Pickup.Lat < -90 || d.Pickup.Lat > 90 || d.Pickup.Lng < -180 || d.Pickup.Lng > 180 {
		return nil, ErrBadRequest
	}
	switch d.Priority {
	case PriorityHigh, PriorityNormal, PriorityLow:
	case "":
		d.Priority = PriorityNormal
	default:
		return nil, ErrBadRequest
	}

	o := &Order{
		ID:            types.ID(uuid.NewString()),
		Pickup:        d.Pickup,
		Payout:        d.Payout,
		Priority:      d.Priority,
		SearchRadiusM: d.SearchRadiusM,
		MaxOffers:     d.MaxOffers,
		OfferTimeout:  d.OfferTimeout,
		Status:        StatusSearching,
		StatusVersion: 0,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// Cancel moves an in-flight order to the terminal cancelled state. An offer
// timer that is still running for this order expires as a no-op afterwards:
// every conditional transition out of offered fails once the row is
// cancelled.
func (s *Service) Cancel(ctx context.Context, id types.ID) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrInvalidState
	}
	ok, err := s.store.Close(ctx, id, StatusCancelled, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}
