package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"tripsmith/internal/domain"
)

// Presenter backfills human-readable copy: a short summary per day and
// description/micro-copy/tip per timeline item. Items that already carry
// both description and micro-copy are skipped, which makes a repeat pass a
// no-op.
type Presenter struct {
	llm   domain.Completer
	repo  domain.TripRepository
	model string
}

func NewPresenter(llm domain.Completer, repo domain.TripRepository, model string) *Presenter {
	return &Presenter{llm: llm, repo: repo, model: model}
}

// Enhance mutates persisted copy in place. Per-day and per-item failures are
// logged and skipped; counts may be nil.
func (p *Presenter) Enhance(ctx context.Context, trip *domain.Trip, counts *callCounts) error {
	country := ""
	if trip.Intent != nil && len(trip.Intent.Destinations) > 0 {
		country = trip.Intent.Destinations[0].Country
	}
	interests := "general tourism"
	if trip.Intent != nil && len(trip.Intent.Interests) > 0 {
		interests = strings.Join(trip.Intent.Interests, ", ")
	}

	for di := range trip.Days {
		day := &trip.Days[di]

		if day.Summary == nil || *day.Summary == "" {
			if summary, err := p.daySummary(ctx, day, counts); err != nil {
				log.Warn().Err(err).Int("day", day.DayNumber).Msg("day summary generation failed")
			} else if summary != "" {
				if err := p.repo.UpdateDaySummary(ctx, day.ID, summary); err != nil {
					log.Warn().Err(err).Int("day", day.DayNumber).Msg("persist day summary failed")
				} else {
					day.Summary = &summary
				}
			}
		}

		for ii := range day.Items {
			item := &day.Items[ii]
			if item.PlaceData.Description != nil && item.PlaceData.MicroCopy != nil {
				continue
			}
			copyData := p.itemCopy(ctx, item, day, country, interests, counts)
			item.PlaceData.Merge(copyData)
			if err := p.repo.UpdateItemPlaceData(ctx, item.ID, item.PlaceData); err != nil {
				log.Warn().Err(err).Str("item", item.PlaceName).Msg("persist item copy failed")
			}
		}
	}
	return nil
}

func (p *Presenter) daySummary(ctx context.Context, day *domain.TripDay, counts *callCounts) (string, error) {
	names := lo.Map(day.Items, func(it domain.TimelineItem, _ int) string { return it.PlaceName })
	prompt := fmt.Sprintf(`Create a brief, engaging 1-sentence summary for Day %d in %s.
Activities: %s
Keep it under 100 characters, exciting, and travel-focused.`, day.DayNumber, day.City, strings.Join(names, ", "))

	if counts != nil {
		counts.gpt.Add(1)
	}
	out, err := p.llm.Complete(ctx, domain.Completion{
		Model: p.model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: "You are a travel content writer. Write concise, engaging copy."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// itemCopy asks the model for item copy and falls back to deterministic
// templates when the call or parse fails.
func (p *Presenter) itemCopy(ctx context.Context, item *domain.TimelineItem, day *domain.TripDay, country, interests string, counts *callCounts) domain.PlaceData {
	meal := ""
	if item.MealType != nil {
		meal = fmt.Sprintf(" (%s)", *item.MealType)
	}
	prompt := fmt.Sprintf(`Create engaging micro-copy for this %s:
Name: %s
Type: %s%s
Time: %s
Context: Day %d in %s, %s
Traveler interests: %s

Return a JSON object with:
{
  "description": "2-3 sentence engaging description (max 200 chars)",
  "micro_copy": "Short punchy tagline (max 60 chars)",
  "tip": "Quick insider tip (max 100 chars, optional)"
}`, item.Kind, item.PlaceName, item.Kind, meal, item.Slot, day.DayNumber, day.City, orDefault(country, "destination"), interests)

	if counts != nil {
		counts.gpt.Add(1)
	}
	var parsed struct {
		Description string `json:"description"`
		MicroCopy   string `json:"micro_copy"`
		Tip         string `json:"tip"`
	}
	out, err := p.llm.Complete(ctx, domain.Completion{
		Model: p.model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: "You are a travel copywriter. Return only valid JSON, no markdown."},
			{Role: "user", Content: prompt},
		},
	})
	if err == nil {
		err = json.Unmarshal([]byte(stripCodeFence(out)), &parsed)
	}
	if err != nil || parsed.Description == "" {
		log.Warn().Err(err).Str("item", item.PlaceName).Msg("item copy unparseable, using fallback")
		return fallbackCopy(item)
	}

	data := domain.PlaceData{Description: &parsed.Description}
	if parsed.MicroCopy != "" {
		data.MicroCopy = &parsed.MicroCopy
	}
	if parsed.Tip != "" {
		data.Tip = &parsed.Tip
	}
	return data
}

func fallbackCopy(item *domain.TimelineItem) domain.PlaceData {
	desc := fmt.Sprintf("Experience %s", item.PlaceName)
	micro := "Must-see attraction"
	if item.Kind == domain.KindMeal {
		micro = "Great dining spot"
	}
	return domain.PlaceData{Description: &desc, MicroCopy: &micro}
}
