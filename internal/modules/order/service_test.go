package order

import (
	"context"
	"errors"
	"testing"

	"dispatch/internal/types"
)

// Validation happens before the store is touched, so a nil store is enough
// for the rejection paths.
func TestCreateRejectsBadInput(t *testing.T) {
	svc := NewService(nil)

	cases := []struct {
		name  string
		draft Draft
	}{
		{"latitude out of range", Draft{Pickup: types.Point{Lat: 91, Lng: 0}}},
		{"latitude below range", Draft{Pickup: types.Point{Lat: -90.5, Lng: 0}}},
		{"longitude out of range", Draft{Pickup: types.Point{Lat: 0, Lng: 181}}},
		{"longitude below range", Draft{Pickup: types.Point{Lat: 0, Lng: -180.1}}},
		{"unknown priority", Draft{
			Pickup:   types.Point{Lat: 40.7, Lng: -74.0},
			Priority: Priority("urgent"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.draft); !errors.Is(err, ErrBadRequest) {
				t.Errorf("expected ErrBadRequest, got %v", err)
			}
		})
	}
}
