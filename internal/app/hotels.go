package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tripsmith/internal/domain"
)

// HotelRanker scores every candidate hotel against the day-by-day activity
// centroids and selects the single best one.
type HotelRanker struct {
	places domain.PlaceProvider
	cache  domain.Cache
	repo   domain.TripRepository
}

func NewHotelRanker(places domain.PlaceProvider, cache domain.Cache, repo domain.TripRepository) *HotelRanker {
	return &HotelRanker{places: places, cache: cache, repo: repo}
}

var budgetToPrice = map[domain.BudgetBand]int{
	domain.BudgetLow:    1,
	domain.BudgetMedium: 2,
	domain.BudgetHigh:   3,
	domain.BudgetLuxury: 4,
}

// Rank persists score, reason and per-day distances on every hotel and marks
// the highest-scoring one selected (ties: first seen wins). counts may be nil.
func (r *HotelRanker) Rank(ctx context.Context, tripID string, hotels []domain.Hotel, days []domain.TripDay, budget domain.BudgetBand, counts *callCounts) (*domain.Hotel, error) {
	if len(hotels) == 0 {
		return nil, nil
	}

	centroids := dayCentroids(days)

	targetPrice, ok := budgetToPrice[budget]
	if !ok {
		targetPrice = 2
	}

	var best *domain.Hotel
	var bestScore float64
	for i := range hotels {
		h := &hotels[i]
		if h.Geo == nil {
			continue
		}

		distances := make(map[string]int, len(centroids))
		for dayKey, c := range centroids {
			min, err := r.centroidMinutes(ctx, h, c, counts)
			if err != nil {
				log.Warn().Err(err).Str("hotel", h.Name).Str("day", dayKey).Msg("centroid distance lookup failed")
				continue
			}
			distances[dayKey] = min
		}

		avgMinutes := 30.0 // default when no distance could be computed
		if len(distances) > 0 {
			sum := 0
			for _, m := range distances {
				sum += m
			}
			avgMinutes = float64(sum) / float64(len(distances))
		}

		distanceScore := math.Max(0, 1-avgMinutes/60)

		hotelPrice := 2
		if h.PriceLevel != nil {
			hotelPrice = *h.PriceLevel
		}
		priceScore := math.Max(0, 1-math.Abs(float64(targetPrice-hotelPrice))/3)

		rating := 3.0
		if h.Rating != nil {
			rating = *h.Rating
		}
		ratingScore := rating / 5

		score := 0.4*distanceScore + 0.3*priceScore + 0.3*ratingScore
		reason := scoreReason(avgMinutes, targetPrice, hotelPrice, h.Rating)

		if err := r.repo.UpdateHotelScore(ctx, h.ID, score, reason, distances); err != nil {
			log.Warn().Err(err).Str("hotel", h.Name).Msg("persist hotel score failed")
			continue
		}
		h.Score = &score
		h.Reason = &reason
		h.DistanceToDayCentroid = distances

		if best == nil || score > bestScore {
			best, bestScore = h, score
		}
	}

	if best == nil {
		return nil, nil
	}
	if err := r.repo.SetSelectedHotel(ctx, tripID, best.ID); err != nil {
		return nil, fmt.Errorf("select hotel: %w", err)
	}
	best.IsSelected = true
	log.Info().Str("hotel", best.Name).Float64("score", bestScore).Msg("selected best hotel")
	return best, nil
}

// centroidMinutes resolves hotel-to-centroid driving minutes through the
// route cache. This is a lookup only; no Transfer record is written.
func (r *HotelRanker) centroidMinutes(ctx context.Context, h *domain.Hotel, c domain.LatLng, counts *callCounts) (int, error) {
	// hotel departures happen in the morning
	key := routeKey(h.PlaceID, centroidKey(c), transferMode, "08-12")
	if e, ok := cacheGet[routeEntry](ctx, r.cache, key); ok {
		if counts != nil {
			counts.cacheHits.Add(1)
		}
		return e.EtaMin, nil
	}
	if counts != nil {
		counts.matrix.Add(1)
	}
	min, err := r.places.RouteDuration(ctx, *h.Geo, c, transferMode)
	if err != nil {
		return 0, err
	}
	cachePut(ctx, r.cache, key, routeEntry{
		EtaMin:    min,
		Version:   cacheSchemaVersion,
		ExpiresAt: time.Now().Add(routeTTL),
	}, routeTTL)
	return min, nil
}

// dayCentroids averages the coordinates of each day's geocoded activities.
// Days with none contribute no centroid.
func dayCentroids(days []domain.TripDay) map[string]domain.LatLng {
	out := make(map[string]domain.LatLng, len(days))
	for _, d := range days {
		var sumLat, sumLng float64
		n := 0
		for _, it := range d.Items {
			if it.Kind != domain.KindActivity || it.PlaceData.Geo == nil {
				continue
			}
			sumLat += it.PlaceData.Geo.Lat
			sumLng += it.PlaceData.Geo.Lng
			n++
		}
		if n > 0 {
			out[fmt.Sprintf("day%d", d.DayNumber)] = domain.LatLng{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}
		}
	}
	return out
}

func scoreReason(avgMinutes float64, targetPrice, hotelPrice int, rating *float64) string {
	var reasons []string
	if avgMinutes < 15 {
		reasons = append(reasons, "Very close to planned activities")
	} else if avgMinutes < 25 {
		reasons = append(reasons, "Good proximity to activities")
	}
	switch diff := targetPrice - hotelPrice; {
	case diff == 0:
		reasons = append(reasons, "Perfect match for your budget")
	case diff == 1 || diff == -1:
		reasons = append(reasons, "Within budget range")
	}
	if rating != nil {
		if *rating >= 4.5 {
			reasons = append(reasons, "Excellent guest ratings")
		} else if *rating >= 4.0 {
			reasons = append(reasons, "Great guest reviews")
		}
	}
	if len(reasons) == 0 {
		return "Good option for your trip"
	}
	return strings.Join(reasons, "; ")
}
