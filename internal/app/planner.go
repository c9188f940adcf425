package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"tripsmith/internal/adapters/observability"
	"tripsmith/internal/domain"
)

// TimezoneFinder resolves an IANA timezone id from coordinates. Satisfied by
// tzf.DefaultFinder.
type TimezoneFinder interface {
	GetTimezoneName(lng, lat float64) string
}

const (
	maxActivityCandidates   = 15
	maxRestaurantCandidates = 10
	maxHotelCandidates      = 5
	maxDurationEstimates    = 10
	maxAlternatives         = 3
)

var hotelDetailFields = []string{
	"name", "formatted_address", "geometry", "rating",
	"user_ratings_total", "price_level", "formatted_phone_number",
	"website", "photos",
}

// PlannerService is the generation orchestrator. One Generate call takes a
// draft trip with an intent all the way to an active trip with persisted
// days, items, transfers, hotels, notices and copy.
type PlannerService struct {
	repo      domain.TripRepository
	places    domain.PlaceProvider
	cache     domain.Cache
	llm       domain.Completer
	durations *DurationService
	logistics *LogisticsService
	hotels    *HotelRanker
	presenter *Presenter
	tz        TimezoneFinder
	model     string
	fanOut    int64
}

func NewPlannerService(
	repo domain.TripRepository,
	places domain.PlaceProvider,
	cache domain.Cache,
	llm domain.Completer,
	durations *DurationService,
	logistics *LogisticsService,
	hotels *HotelRanker,
	presenter *Presenter,
	tz TimezoneFinder,
	model string,
	fanOut int,
) *PlannerService {
	if fanOut < 1 {
		fanOut = 1
	}
	return &PlannerService{
		repo:      repo,
		places:    places,
		cache:     cache,
		llm:       llm,
		durations: durations,
		logistics: logistics,
		hotels:    hotels,
		presenter: presenter,
		tz:        tz,
		model:     model,
		fanOut:    int64(fanOut),
	}
}

// candidatePools holds the ranked search results the schedule is built from.
type candidatePools struct {
	activities  []domain.PlaceSummary
	restaurants []domain.PlaceSummary
	hotels      []domain.PlaceSummary
}

type scheduleEntry struct {
	Slot        string               `json:"slot"`
	Kind        string               `json:"kind"`
	MealType    string               `json:"meal_type,omitempty"`
	PlaceName   string               `json:"place_name"`
	PlaceID     string               `json:"place_id,omitempty"`
	DurationMin domain.DurationRange `json:"estimated_duration_min"`
}

type scheduleDay struct {
	DayNumber int             `json:"day_number"`
	Date      string          `json:"date"`
	Summary   string          `json:"summary"`
	Timeline  []scheduleEntry `json:"timeline"`
}

// Generate runs the full pipeline for one draft trip. The draft -> generating
// transition is claimed with a fresh run token; losing the claim returns
// domain.ErrConflict. A schedule that cannot be parsed is the single fatal
// mid-pipeline failure: the trip is returned to draft so the caller can retry
// generation wholesale. Everything else degrades per item.
func (s *PlannerService) Generate(ctx context.Context, tripID string) error {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("load trip %s: %w", tripID, err)
	}
	if trip.Intent == nil {
		return fmt.Errorf("trip %s has no intent", tripID)
	}
	intent := trip.Intent

	runID := uuid.NewString()
	claimed, err := s.repo.ClaimGeneration(ctx, tripID, runID)
	if err != nil {
		return fmt.Errorf("claim generation for %s: %w", tripID, err)
	}
	if !claimed {
		return fmt.Errorf("trip %s is not in draft: %w", tripID, domain.ErrConflict)
	}

	logger := log.With().Str("trip", tripID).Str("run", runID).Logger()
	started := time.Now()
	counts := &callCounts{}

	city := intent.Destinations[0].City
	numDays := intent.Days()
	logger.Info().Str("city", city).Int("days", numDays).Msg("generation started")

	pools, err := s.searchCandidates(ctx, city, counts)
	if err != nil {
		observability.ObserveStep("search_candidates", "failed")
		_ = s.repo.AbortGeneration(ctx, tripID)
		return fmt.Errorf("search candidates for %s: %w", city, err)
	}
	observability.ObserveStep("search_candidates", "ok")

	s.persistHotels(ctx, tripID, pools.hotels, counts, logger)

	activityDurations := s.estimateDurations(ctx, intent, pools.activities, counts, logger)

	days, err := s.requestSchedule(ctx, intent, city, numDays, pools, activityDurations, counts)
	if err != nil {
		observability.ObserveStep("schedule", "failed")
		if aerr := s.repo.AbortGeneration(ctx, tripID); aerr != nil {
			logger.Error().Err(aerr).Msg("abort after schedule failure failed")
		}
		return fmt.Errorf("schedule generation: %w", err)
	}
	observability.ObserveStep("schedule", "ok")

	persisted, err := s.persistSchedule(ctx, tripID, intent, city, days, pools, activityDurations, logger)
	if err != nil {
		observability.ObserveStep("persist", "failed")
		_ = s.repo.AbortGeneration(ctx, tripID)
		return fmt.Errorf("persist schedule: %w", err)
	}
	observability.ObserveStep("persist", "ok")

	logisticsClean := true
	for i := range persisted {
		if err := s.logistics.ComputeDay(ctx, &persisted[i], counts); err != nil {
			logger.Warn().Err(err).Int("day", persisted[i].DayNumber).Msg("logistics failed for day")
			logisticsClean = false
			continue
		}
	}
	if logisticsClean {
		observability.ObserveStep("logistics", "ok")
	} else {
		observability.ObserveStep("logistics", "degraded")
	}

	storedHotels, err := s.repo.ListHotels(ctx, tripID)
	if err != nil {
		logger.Warn().Err(err).Msg("list hotels failed, skipping ranking")
		observability.ObserveStep("rank_hotels", "degraded")
	} else if _, err := s.hotels.Rank(ctx, tripID, storedHotels, persisted, intent.BudgetBand, counts); err != nil {
		logger.Warn().Err(err).Msg("hotel ranking failed")
		observability.ObserveStep("rank_hotels", "degraded")
	} else {
		observability.ObserveStep("rank_hotels", "ok")
	}

	full, err := s.repo.GetTripFull(ctx, tripID)
	if err != nil {
		_ = s.repo.AbortGeneration(ctx, tripID)
		return fmt.Errorf("reload trip %s: %w", tripID, err)
	}

	report := Validate(full)
	observability.ObserveStep("validate", "ok")
	logger.Info().Bool("valid", report.Valid).Int("notices", len(report.Notices)).Msg(report.Summary)

	if err := s.presenter.Enhance(ctx, full, counts); err != nil {
		logger.Warn().Err(err).Msg("presenter pass failed")
		observability.ObserveStep("present", "degraded")
	} else {
		observability.ObserveStep("present", "ok")
	}

	sources, debug := counts.snapshot()
	if err := s.repo.FinishGeneration(ctx, tripID, sources, debug, append(report.Notices, report.Hints...)); err != nil {
		return fmt.Errorf("finish generation for %s: %w", tripID, err)
	}

	logger.Info().
		Dur("took", time.Since(started)).
		Int("maps_calls", sources.MapsCalls).
		Int("gpt_calls", sources.GPTCalls).
		Int("matrix_calls", sources.MatrixCalls).
		Int("cache_hits", debug.CacheHits).
		Msg("generation complete")
	return nil
}

func (s *PlannerService) searchCandidates(ctx context.Context, city string, counts *callCounts) (*candidatePools, error) {
	search := func(query string, limit int) ([]domain.PlaceSummary, error) {
		counts.maps.Add(1)
		res, err := s.places.SearchPlaces(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(res) > limit {
			res = res[:limit]
		}
		return res, nil
	}

	activities, err := search("tourist attractions in "+city, maxActivityCandidates)
	if err != nil {
		return nil, fmt.Errorf("activity search: %w", err)
	}
	restaurants, err := search("best restaurants in "+city, maxRestaurantCandidates)
	if err != nil {
		return nil, fmt.Errorf("restaurant search: %w", err)
	}
	hotels, err := search("hotels in "+city, maxHotelCandidates)
	if err != nil {
		return nil, fmt.Errorf("hotel search: %w", err)
	}
	return &candidatePools{activities: activities, restaurants: restaurants, hotels: hotels}, nil
}

// persistHotels resolves full detail records for every hotel candidate and
// stores them unscored. One failed lookup drops that hotel only.
func (s *PlannerService) persistHotels(ctx context.Context, tripID string, candidates []domain.PlaceSummary, counts *callCounts, logger zerolog.Logger) {
	saved := 0
	for _, c := range candidates {
		details, err := cachedPlaceDetails(ctx, s.places, s.cache, c.PlaceID, hotelDetailFields, counts)
		if err != nil {
			logger.Warn().Err(err).Str("hotel", c.Name).Msg("hotel details lookup failed")
			continue
		}
		h := &domain.Hotel{
			TripID:       tripID,
			PlaceID:      details.PlaceID,
			Name:         details.Name,
			Address:      details.Address,
			Geo:          details.Geo,
			Rating:       details.Rating,
			RatingsTotal: details.RatingsTotal,
			PriceLevel:   details.PriceLevel,
			Phone:        details.Phone,
			Website:      details.Website,
			Photos:       details.Photos,
		}
		if err := s.repo.InsertHotel(ctx, h); err != nil {
			logger.Warn().Err(err).Str("hotel", c.Name).Msg("persist hotel failed")
			continue
		}
		saved++
	}
	if saved < len(candidates) {
		observability.ObserveStep("persist_hotels", "degraded")
	} else {
		observability.ObserveStep("persist_hotels", "ok")
	}
	logger.Info().Int("saved", saved).Int("candidates", len(candidates)).Msg("hotel candidates persisted")
}

// estimateDurations fans out duration estimation over the top activity
// candidates, bounded by the configured parallelism. Failures fall back to
// the default range; the returned map always has an entry per attempted name.
func (s *PlannerService) estimateDurations(ctx context.Context, intent *domain.TripIntent, activities []domain.PlaceSummary, counts *callCounts, logger zerolog.Logger) map[string]domain.DurationRange {
	subset := activities
	if len(subset) > maxDurationEstimates {
		subset = subset[:maxDurationEstimates]
	}

	out := make(map[string]domain.DurationRange, len(subset))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(s.fanOut)

	for _, a := range subset {
		a := a
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			placeType := "tourist attraction"
			if len(a.Types) > 0 {
				placeType = a.Types[0]
			}
			est, err := s.durations.Estimate(ctx, EstimateRequest{
				PlaceID:   a.PlaceID,
				PlaceName: a.Name,
				PlaceType: placeType,
				Pace:      intent.Pace,
				Interests: intent.Interests,
				Date:      intent.StartDate,
			})

			rng := DefaultDuration
			switch {
			case err != nil:
				logger.Warn().Err(err).Str("place", a.Name).Msg("duration estimate failed, using default")
			case est.Source == domain.DurationFromCache:
				counts.cacheHits.Add(1)
				rng = est.DurationMin
			default:
				counts.gpt.Add(1)
				rng = est.DurationMin
			}

			mu.Lock()
			out[a.Name] = rng
			mu.Unlock()
		}()
	}
	wg.Wait()

	observability.ObserveStep("estimate_durations", "ok")
	return out
}

func (s *PlannerService) requestSchedule(ctx context.Context, intent *domain.TripIntent, city string, numDays int, pools *candidatePools, durations map[string]domain.DurationRange, counts *callCounts) ([]scheduleDay, error) {
	annotated := make([]string, 0, len(pools.activities))
	for _, a := range pools.activities {
		rng, ok := durations[a.Name]
		if !ok {
			rng = DefaultDuration
		}
		annotated = append(annotated, fmt.Sprintf("%s (%d-%d min)", a.Name, rng[0], rng[1]))
	}
	restaurantNames := make([]string, 0, len(pools.restaurants))
	for _, r := range pools.restaurants {
		restaurantNames = append(restaurantNames, r.Name)
	}

	system := fmt.Sprintf(`You are a travel planner. Create a %d-day itinerary for %s.

Trip details:
- Travelers: %d
- Budget: %s
- Interests: %s
- Pace: %s

Available activities (with estimated durations):
%s
Available restaurants: %s

Create a balanced daily schedule with:
- Morning activity (09:00-12:00)
- Lunch (12:00-14:00)
- Afternoon activity (14:00-17:00)
- Dinner (19:00-21:00)
- Optional evening activity

Only use activities and restaurants from the lists above.

Return ONLY valid JSON array of days:
[{
  "day_number": 1,
  "date": "YYYY-MM-DD",
  "summary": "Brief day summary",
  "timeline": [{
    "slot": "morning",
    "kind": "activity",
    "place_name": "Activity name from list",
    "estimated_duration_min": [120, 180]
  }, {
    "slot": "afternoon",
    "kind": "meal",
    "meal_type": "lunch",
    "place_name": "Restaurant name",
    "estimated_duration_min": [60, 90]
  }]
}]`,
		numDays, city,
		intent.Travelers,
		orDefault(string(intent.BudgetBand), "medium"),
		orDefault(strings.Join(intent.Interests, ", "), "general tourism"),
		orDefault(string(intent.Pace), "moderate"),
		strings.Join(annotated, ", "),
		strings.Join(restaurantNames, ", "),
	)

	counts.gpt.Add(1)
	out, err := s.llm.Complete(ctx, domain.Completion{
		Model:     s.model,
		MaxTokens: 4000,
		Messages:  []domain.ChatMessage{{Role: "system", Content: system}},
	})
	if err != nil {
		return nil, err
	}

	var days []scheduleDay
	if jerr := json.Unmarshal([]byte(stripCodeFence(out)), &days); jerr != nil || len(days) == 0 {
		return nil, fmt.Errorf("schedule completion: %w", domain.ErrParse)
	}
	return days, nil
}

// persistSchedule writes one TripDay per schedule day and its items in
// order_index order. Place identity is resolved by exact name match against
// the candidate pools; an unmatched name becomes an item without a place_id,
// never a generation failure. Any item the model scheduled without a
// place_id collects alternatives, including ones later resolved by name.
func (s *PlannerService) persistSchedule(ctx context.Context, tripID string, intent *domain.TripIntent, city string, days []scheduleDay, pools *candidatePools, durations map[string]domain.DurationRange, logger zerolog.Logger) ([]domain.TripDay, error) {
	tzid := s.resolveTZ(pools)
	numDays := intent.Days()

	persisted := make([]domain.TripDay, 0, len(days))
	for _, sd := range days {
		if sd.DayNumber < 1 || sd.DayNumber > numDays {
			logger.Warn().Int("day", sd.DayNumber).Msg("schedule day out of range, skipped")
			continue
		}
		day := domain.TripDay{
			TripID:    tripID,
			DayNumber: sd.DayNumber,
			Date:      intent.StartDate.AddDate(0, 0, sd.DayNumber-1),
			City:      city,
			TZID:      tzid,
		}
		if sd.Summary != "" {
			summary := sd.Summary
			day.Summary = &summary
		}
		if err := s.repo.InsertDay(ctx, &day); err != nil {
			return nil, fmt.Errorf("insert day %d: %w", sd.DayNumber, err)
		}

		for i, entry := range sd.Timeline {
			item := s.buildItem(day.ID, entry, i, pools, durations)
			if err := s.repo.InsertItem(ctx, item); err != nil {
				logger.Warn().Err(err).Str("item", entry.PlaceName).Msg("persist item failed")
				continue
			}
			if entry.PlaceID == "" {
				alts := alternativesFor(item, pools)
				if len(alts) > 0 {
					if err := s.repo.InsertAlternatives(ctx, item.ID, alts); err != nil {
						logger.Warn().Err(err).Str("item", item.PlaceName).Msg("persist alternatives failed")
					} else {
						item.Alternatives = alts
					}
				}
			}
			day.Items = append(day.Items, *item)
		}
		persisted = append(persisted, day)
	}
	return persisted, nil
}

func (s *PlannerService) buildItem(dayID int64, entry scheduleEntry, orderIndex int, pools *candidatePools, durations map[string]domain.DurationRange) *domain.TimelineItem {
	kind := domain.ItemKind(entry.Kind)
	if kind != domain.KindMeal {
		kind = domain.KindActivity
	}

	item := &domain.TimelineItem{
		DayID:      dayID,
		Slot:       normalizeSlot(entry.Slot),
		Kind:       kind,
		PlaceName:  entry.PlaceName,
		OrderIndex: orderIndex,
	}
	if kind == domain.KindMeal {
		meal := orDefault(entry.MealType, "lunch")
		item.MealType = &meal
	}

	pool := pools.activities
	if kind == domain.KindMeal {
		pool = pools.restaurants
	}
	if c := findCandidate(pool, entry.PlaceName); c != nil {
		id := c.PlaceID
		item.PlaceID = &id
		item.PlaceName = c.Name
		item.PlaceData = domain.PlaceData{
			Rating:       c.Rating,
			RatingsTotal: c.RatingsTotal,
			Address:      c.Address,
			Geo:          c.Geo,
		}
	}

	switch {
	case entry.DurationMin[1] > 0:
		item.Duration = entry.DurationMin
		item.DurationSource = domain.DurationFromModel
	case kind == domain.KindActivity:
		if rng, ok := durations[item.PlaceName]; ok {
			item.Duration = rng
			item.DurationSource = domain.DurationFromCache
		} else {
			item.Duration = DefaultDuration
			item.DurationSource = domain.DurationFromDefault
		}
	default:
		item.Duration = domain.DurationRange{60, 90}
		item.DurationSource = domain.DurationFromDefault
	}
	return item
}

// alternativesFor picks up to three same-kind candidates, excluding the
// place the item resolved to.
func alternativesFor(item *domain.TimelineItem, pools *candidatePools) []domain.Alternative {
	pool := pools.activities
	if item.Kind == domain.KindMeal {
		pool = pools.restaurants
	}
	alts := make([]domain.Alternative, 0, maxAlternatives)
	for _, c := range pool {
		if strings.EqualFold(c.Name, item.PlaceName) {
			continue
		}
		if item.PlaceID != nil && c.PlaceID == *item.PlaceID {
			continue
		}
		alts = append(alts, domain.Alternative{
			PlaceID:      c.PlaceID,
			PlaceName:    c.Name,
			OrderIndex:   len(alts),
			Rating:       c.Rating,
			RatingsTotal: c.RatingsTotal,
			Address:      c.Address,
		})
		if len(alts) == maxAlternatives {
			break
		}
	}
	return alts
}

func findCandidate(pool []domain.PlaceSummary, name string) *domain.PlaceSummary {
	for i := range pool {
		if strings.EqualFold(pool[i].Name, name) {
			return &pool[i]
		}
	}
	return nil
}

func normalizeSlot(s string) domain.Slot {
	switch domain.Slot(strings.ToLower(s)) {
	case domain.SlotMorning, domain.SlotAfternoon, domain.SlotEvening, domain.SlotNight:
		return domain.Slot(strings.ToLower(s))
	default:
		return domain.SlotAfternoon
	}
}

// resolveTZ picks the timezone of the first geocoded candidate; without one
// Date stays a bare civil date anchored to UTC.
func (s *PlannerService) resolveTZ(pools *candidatePools) string {
	if s.tz == nil {
		return "UTC"
	}
	for _, set := range [][]domain.PlaceSummary{pools.activities, pools.restaurants, pools.hotels} {
		for _, c := range set {
			if c.Geo != nil {
				if name := s.tz.GetTimezoneName(c.Geo.Lng, c.Geo.Lat); name != "" {
					return name
				}
			}
		}
	}
	return "UTC"
}
