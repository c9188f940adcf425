package app

import (
	"context"
	"time"

	"tripsmith/internal/domain"
)

// cachedPlaceDetails is a cache-aside read of a full place record, shared by
// the planner's hotel resolution and the edit resolver's swap path. counts
// may be nil.
func cachedPlaceDetails(ctx context.Context, places domain.PlaceProvider, cache domain.Cache, placeID string, fields []string, counts *callCounts) (*domain.PlaceDetails, error) {
	key := placeKey(placeID)
	if e, ok := cacheGet[placeEntry](ctx, cache, key); ok {
		if counts != nil {
			counts.cacheHits.Add(1)
		}
		d := e.Details
		return &d, nil
	}
	if counts != nil {
		counts.maps.Add(1)
	}
	d, err := places.PlaceDetails(ctx, placeID, fields)
	if err != nil {
		return nil, err
	}
	cachePut(ctx, cache, key, placeEntry{
		Details:   *d,
		Version:   cacheSchemaVersion,
		ExpiresAt: time.Now().Add(placeDetailsTTL),
	}, placeDetailsTTL)
	return d, nil
}
