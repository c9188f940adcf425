package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tripsmith/internal/domain"
)

// DefaultDuration is the degraded fallback when no estimate can be obtained.
var DefaultDuration = domain.DurationRange{120, 180}

type EstimateRequest struct {
	PlaceID    string
	PlaceName  string
	PlaceType  string
	Pace       domain.Pace
	Interests  []string
	Date       time.Time
	WebsiteURL *string
}

// DurationService answers "how long do visitors spend here" for one place
// and traveler profile, caching model estimates for 30 days.
type DurationService struct {
	llm   domain.Completer
	cache domain.Cache
	model string
}

func NewDurationService(llm domain.Completer, cache domain.Cache, model string) *DurationService {
	return &DurationService{llm: llm, cache: cache, model: model}
}

// Estimate returns a cached or model-sourced duration estimate. A completion
// that cannot be decoded surfaces as domain.ErrParse; callers fall back to
// DefaultDuration and keep going.
func (s *DurationService) Estimate(ctx context.Context, req EstimateRequest) (domain.DurationEstimate, error) {
	season := seasonOf(req.Date)
	profile := profileKey(req.Pace, req.Interests)
	key := durationKey(req.PlaceID, profile, season)

	if e, ok := cacheGet[durationEntry](ctx, s.cache, key); ok {
		return domain.DurationEstimate{
			DurationMin: e.DurationMin,
			Confidence:  e.Confidence,
			Assumptions: e.Assumptions,
			Risks:       e.Risks,
			Source:      domain.DurationFromCache,
		}, nil
	}

	out, err := s.llm.Complete(ctx, domain.Completion{
		Model:     s.model,
		MaxTokens: 500,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: s.systemPrompt(req, season)},
			{Role: "user", Content: fmt.Sprintf("Estimate duration for: %s (%s)", req.PlaceName, orDefault(req.PlaceType, "tourist attraction"))},
		},
	})
	if err != nil {
		return domain.DurationEstimate{}, err
	}

	var parsed struct {
		DurationMin domain.DurationRange `json:"duration_min"`
		Confidence  float64              `json:"confidence"`
		Assumptions []string             `json:"assumptions"`
		Risks       []string             `json:"risks"`
		Evidence    []string             `json:"evidence_snippets"`
	}
	if jerr := json.Unmarshal([]byte(stripCodeFence(out)), &parsed); jerr != nil || parsed.DurationMin[1] == 0 {
		log.Warn().Str("place", req.PlaceName).Msg("duration estimate unparseable")
		return domain.DurationEstimate{}, fmt.Errorf("duration estimate for %s: %w", req.PlaceName, domain.ErrParse)
	}

	cachePut(ctx, s.cache, key, durationEntry{
		DurationMin: parsed.DurationMin,
		Confidence:  parsed.Confidence,
		Assumptions: parsed.Assumptions,
		Risks:       parsed.Risks,
		Version:     cacheSchemaVersion,
		ExpiresAt:   time.Now().Add(durationTTL),
	}, durationTTL)

	return domain.DurationEstimate{
		DurationMin: parsed.DurationMin,
		Confidence:  parsed.Confidence,
		Assumptions: parsed.Assumptions,
		Risks:       parsed.Risks,
		Evidence:    parsed.Evidence,
		Source:      domain.DurationFromModel,
	}, nil
}

func (s *DurationService) systemPrompt(req EstimateRequest, season string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a duration estimation expert for tourist activities.

Estimate how long visitors typically spend at a location based on:
- Place type (museum, park, restaurant, attraction, etc.)
- User pace: %s (relaxed = +30%%, moderate = baseline, active = -20%%)
- Season: %s (affects crowds and weather)
- User interests: %s
`, orDefault(string(req.Pace), "moderate"), season, orDefault(strings.Join(req.Interests, ", "), "general tourism"))
	if req.WebsiteURL != nil && *req.WebsiteURL != "" {
		fmt.Fprintf(&b, "- Official website: %s\n", *req.WebsiteURL)
	}
	b.WriteString(`
Consider:
- Queue/entry time
- Core experience time
- Optional extensions (gift shop, cafe, extra exhibits)
- Typical visitor patterns

Return ONLY valid JSON:
{
  "duration_min": [min_minutes, max_minutes],
  "confidence": 0.XX (0-1 scale),
  "assumptions": ["key assumption 1", "key assumption 2"],
  "risks": ["potential delay 1", "potential delay 2"],
  "evidence_snippets": ["fact from website or knowledge"]
}`)
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
