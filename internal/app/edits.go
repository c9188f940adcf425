package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"tripsmith/internal/domain"
)

// EditService applies free-text edit requests to an existing itinerary. The
// target-matching policy is deliberately loose: an item matches on a
// case-insensitive name fragment OR on slot equality, so one request can hit
// several items; the match count is reported back to the caller.
type EditService struct {
	repo   domain.TripRepository
	places domain.PlaceProvider
	llm    domain.Completer
	cache  domain.Cache
	model  string
}

func NewEditService(repo domain.TripRepository, places domain.PlaceProvider, llm domain.Completer, cache domain.Cache, model string) *EditService {
	return &EditService{repo: repo, places: places, llm: llm, cache: cache, model: model}
}

type EditResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Matched int    `json:"matched"`
}

type editIntent struct {
	Action       string `json:"action"`
	TargetDay    *int   `json:"target_day"`
	TargetSlot   string `json:"target_slot"`
	ItemToChange string `json:"item_to_change"`
	NewItem      string `json:"new_item"`
	SearchQuery  string `json:"search_query"`
	Reasoning    string `json:"reasoning"`
}

var clarifyResult = EditResult{
	Success: false,
	Message: "I understand you want to make changes, but I need more details. Can you be more specific?",
}

// Apply classifies the request and mutates matched items. Transfers are not
// recomputed and the trip is not re-validated afterwards; callers re-run
// those passes if they care.
func (s *EditService) Apply(ctx context.Context, tripID, request string) (EditResult, error) {
	trip, err := s.repo.GetTripFull(ctx, tripID)
	if err != nil {
		return EditResult{}, err
	}

	intent, err := s.classify(ctx, trip, request)
	if err != nil {
		log.Warn().Err(err).Str("trip", tripID).Msg("edit intent unparseable")
		return clarifyResult, nil
	}
	log.Info().Str("trip", tripID).Str("action", intent.Action).Msg("resolved edit intent")

	switch intent.Action {
	case "swap":
		if intent.SearchQuery == "" {
			return clarifyResult, nil
		}
		return s.swap(ctx, trip, intent)
	case "remove":
		return s.remove(ctx, trip, intent)
	default:
		// add / extend_duration / move are not handled yet
		return clarifyResult, nil
	}
}

func (s *EditService) classify(ctx context.Context, trip *domain.Trip, request string) (*editIntent, error) {
	type daySummary struct {
		Day   int      `json:"day"`
		Date  string   `json:"date"`
		Items []string `json:"items"`
	}
	summary := make([]daySummary, 0, len(trip.Days))
	for _, d := range trip.Days {
		ds := daySummary{Day: d.DayNumber, Date: d.Date.Format("2006-01-02")}
		for _, it := range d.Items {
			ds.Items = append(ds.Items, fmt.Sprintf("%s: %s", it.Slot, it.PlaceName))
		}
		summary = append(summary, ds)
	}
	summaryJSON, _ := json.MarshalIndent(summary, "", "  ")

	prompt := fmt.Sprintf(`You are a trip editing assistant. Parse user edit requests and identify:
- What to change (activity, meal, hotel, time)
- Which day (or "all days", "day 2", "tomorrow", etc.)
- What specifically to change to
- Type of edit: swap, remove, add, extend_duration, move_to_different_time

Current trip summary:
%s

User request: "%s"

Return JSON:
{
  "action": "swap|remove|add|extend_duration|move",
  "target_day": number or null for all,
  "target_slot": "morning|afternoon|evening|night",
  "item_to_change": "current item name",
  "new_item": "replacement or null",
  "search_query": "what to search for",
  "reasoning": "brief explanation"
}`, summaryJSON, request)

	out, err := s.llm.Complete(ctx, domain.Completion{
		Model:     s.model,
		MaxTokens: 500,
		Messages:  []domain.ChatMessage{{Role: "system", Content: prompt}},
	})
	if err != nil {
		return nil, err
	}
	var intent editIntent
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &intent); err != nil {
		return nil, fmt.Errorf("edit intent: %w", domain.ErrParse)
	}
	return &intent, nil
}

// matchedItems collects every item in scope that matches by name fragment or
// slot. Both tests are skipped when their field is empty.
func matchedItems(trip *domain.Trip, intent *editIntent) []*domain.TimelineItem {
	fragment := strings.ToLower(intent.ItemToChange)
	var out []*domain.TimelineItem
	for di := range trip.Days {
		day := &trip.Days[di]
		if intent.TargetDay != nil && day.DayNumber != *intent.TargetDay {
			continue
		}
		for ii := range day.Items {
			it := &day.Items[ii]
			byName := fragment != "" && strings.Contains(strings.ToLower(it.PlaceName), fragment)
			bySlot := intent.TargetSlot != "" && string(it.Slot) == intent.TargetSlot
			if byName || bySlot {
				out = append(out, it)
			}
		}
	}
	return out
}

func (s *EditService) swap(ctx context.Context, trip *domain.Trip, intent *editIntent) (EditResult, error) {
	results, err := s.places.SearchPlaces(ctx, intent.SearchQuery)
	if err != nil || len(results) == 0 {
		return EditResult{}, fmt.Errorf("no alternatives found for %q", intent.SearchQuery)
	}
	replacement := results[0]

	details, err := cachedPlaceDetails(ctx, s.places, s.cache, replacement.PlaceID, []string{"name", "formatted_address", "geometry", "rating", "opening_hours"}, nil)
	if err != nil {
		return EditResult{}, fmt.Errorf("details for replacement %s: %w", replacement.PlaceID, err)
	}

	matched := matchedItems(trip, intent)
	for _, it := range matched {
		pid := details.PlaceID
		if err := s.repo.UpdateItemPlace(ctx, it.ID, &pid, details.Name, details.Data()); err != nil {
			log.Warn().Err(err).Str("item", it.PlaceName).Msg("swap update failed")
			continue
		}
		log.Info().Str("from", it.PlaceName).Str("to", details.Name).Msg("swapped timeline item")
	}

	return EditResult{
		Success: true,
		Message: fmt.Sprintf("I've replaced %s with %s. %s", intent.ItemToChange, details.Name, intent.Reasoning),
		Matched: len(matched),
	}, nil
}

func (s *EditService) remove(ctx context.Context, trip *domain.Trip, intent *editIntent) (EditResult, error) {
	matched := matchedItems(trip, intent)
	for _, it := range matched {
		if err := s.repo.DeleteItem(ctx, it.ID); err != nil {
			log.Warn().Err(err).Str("item", it.PlaceName).Msg("remove failed")
			continue
		}
		log.Info().Str("item", it.PlaceName).Msg("removed timeline item")
	}
	return EditResult{
		Success: true,
		Message: fmt.Sprintf("I've removed %s from your itinerary.", intent.ItemToChange),
		Matched: len(matched),
	}, nil
}
