package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-polyline"

	"tripsmith/internal/domain"
)

const transferMode = "driving"

// LogisticsService computes the transfer legs between a day's consecutive
// stops and atomically replaces the day's persisted transfer set.
type LogisticsService struct {
	places domain.PlaceProvider
	cache  domain.Cache
	repo   domain.TripRepository
}

func NewLogisticsService(places domain.PlaceProvider, cache domain.Cache, repo domain.TripRepository) *LogisticsService {
	return &LogisticsService{places: places, cache: cache, repo: repo}
}

// ComputeDay builds transfers for each consecutive item pair that has both a
// resolved place id and coordinates; pairs missing either are skipped, no
// transfer is synthesized across the gap. The day's prior transfer set is
// replaced wholesale. counts may be nil.
func (s *LogisticsService) ComputeDay(ctx context.Context, day *domain.TripDay, counts *callCounts) error {
	transfers := make([]domain.Transfer, 0, len(day.Items))
	seen := make(map[string]bool)

	for i := 0; i+1 < len(day.Items); i++ {
		from, to := day.Items[i], day.Items[i+1]
		if from.PlaceID == nil || to.PlaceID == nil ||
			from.PlaceData.Geo == nil || to.PlaceData.Geo == nil {
			continue
		}
		// one transfer per ordered pair, mirroring uq_transfer_pair
		pair := *from.PlaceID + ">" + *to.PlaceID
		if seen[pair] {
			continue
		}

		bucket := bucketForSlot(from.Slot)
		key := routeKey(*from.PlaceID, *to.PlaceID, transferMode, bucket)

		var etaMin int
		var path string
		if e, ok := cacheGet[routeEntry](ctx, s.cache, key); ok {
			etaMin, path = e.EtaMin, e.Polyline
			if counts != nil {
				counts.cacheHits.Add(1)
			}
		} else {
			if counts != nil {
				counts.matrix.Add(1)
			}
			var err error
			etaMin, err = s.places.RouteDuration(ctx, *from.PlaceData.Geo, *to.PlaceData.Geo, transferMode)
			if err != nil {
				log.Warn().Err(err).
					Str("from", from.PlaceName).Str("to", to.PlaceName).
					Msg("route duration lookup failed, skipping transfer")
				continue
			}
			if path, err = s.places.RoutePath(ctx, *from.PlaceData.Geo, *to.PlaceData.Geo, transferMode); err != nil {
				// eta without a path is still useful
				log.Warn().Err(err).Str("from", from.PlaceName).Msg("route path lookup failed")
				path = ""
			}
			cachePut(ctx, s.cache, key, routeEntry{
				EtaMin:    etaMin,
				Polyline:  path,
				Version:   cacheSchemaVersion,
				ExpiresAt: time.Now().Add(routeTTL),
			}, routeTTL)
		}

		t := domain.Transfer{
			DayID:       day.ID,
			FromPlaceID: *from.PlaceID,
			ToPlaceID:   *to.PlaceID,
			Mode:        transferMode,
			EtaMin:      etaMin,
		}
		if path != "" {
			p := path
			t.Polyline = &p
			if km, ok := polylineDistanceKm(path); ok {
				t.DistanceKm = &km
			}
		}
		transfers = append(transfers, t)
		seen[pair] = true
	}

	if err := s.repo.ReplaceTransfers(ctx, day.ID, transfers); err != nil {
		return fmt.Errorf("replace transfers for day %d: %w", day.DayNumber, err)
	}
	return nil
}

// polylineDistanceKm decodes an encoded polyline and sums the great-circle
// length of its segments.
func polylineDistanceKm(encoded string) (float64, bool) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil || len(coords) < 2 {
		return 0, false
	}
	var km float64
	for i := 1; i < len(coords); i++ {
		km += haversineKm(coords[i-1][0], coords[i-1][1], coords[i][0], coords[i][1])
	}
	return math.Round(km*10) / 10, true
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const r = 6371.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * r * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
