package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"tripsmith/internal/domain"
)

// IntakeService runs the conversational front door: it extracts a structured
// trip intent from free-text turns and creates the draft trip once enough
// information has been gathered. Conversation state lives in-process with a
// TTL; losing it only restarts the conversation.
type IntakeService struct {
	repo     domain.TripRepository
	llm      domain.Completer
	sessions *gocache.Cache
	model    string
}

func NewIntakeService(repo domain.TripRepository, llm domain.Completer, model string, sessionTTL time.Duration) *IntakeService {
	return &IntakeService{
		repo:     repo,
		llm:      llm,
		sessions: gocache.New(sessionTTL, 10*time.Minute),
		model:    model,
	}
}

type IntakeResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	TripID    string `json:"trip_id,omitempty"`
}

type extractedIntent struct {
	Destinations        []domain.Destination `json:"destinations"`
	StartDate           string               `json:"start_date"`
	EndDate             string               `json:"end_date"`
	Travelers           int                  `json:"travelers"`
	BudgetBand          string               `json:"budget_band"`
	Interests           []string             `json:"interests"`
	DietaryRestrictions []string             `json:"dietary_restrictions"`
	AccessibilityNeeds  []string             `json:"accessibility_needs"`
	Pace                string               `json:"pace"`
}

type intakeReply struct {
	Message       string           `json:"message"`
	ReadyToCreate bool             `json:"ready_to_create"`
	ExtractedData *extractedIntent `json:"extracted_data"`
}

// Chat processes one conversational turn. It returns a continuation message
// until the classifier decides the intent is complete, then creates the
// draft trip and returns its id.
func (s *IntakeService) Chat(ctx context.Context, sessionID, userID, message string) (IntakeResult, error) {
	if userID == "" {
		return IntakeResult{}, fmt.Errorf("user id is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := s.history(sessionID)

	reply, err := s.classify(ctx, history, message)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("intake classification failed")
		// degraded continuation rather than a dead end
		reply = &intakeReply{Message: "Sorry, I didn't catch that. Could you tell me where and when you'd like to travel?"}
	}

	history = append(history,
		domain.ChatMessage{Role: "user", Content: message},
		domain.ChatMessage{Role: "assistant", Content: reply.Message},
	)
	s.sessions.SetDefault(sessionID, history)

	if !reply.ReadyToCreate || reply.ExtractedData == nil {
		return IntakeResult{SessionID: sessionID, Message: reply.Message}, nil
	}

	trip, err := s.createTrip(ctx, userID, reply.ExtractedData)
	if err != nil {
		return IntakeResult{}, err
	}
	s.sessions.Delete(sessionID)

	return IntakeResult{
		SessionID: sessionID,
		Message:   "Great! I'm creating your itinerary now. This will take a moment...",
		TripID:    trip.ID,
	}, nil
}

func (s *IntakeService) history(sessionID string) []domain.ChatMessage {
	if v, ok := s.sessions.Get(sessionID); ok {
		if h, ok := v.([]domain.ChatMessage); ok {
			return h
		}
	}
	return nil
}

func (s *IntakeService) classify(ctx context.Context, history []domain.ChatMessage, message string) (*intakeReply, error) {
	var convo strings.Builder
	for _, m := range history {
		fmt.Fprintf(&convo, "%s: %s\n", m.Role, m.Content)
	}

	system := fmt.Sprintf(`You are a travel planning assistant. Your job is to:
1. Gather trip information through natural conversation
2. Extract: destination(s), dates, number of travelers, budget level, interests, dietary restrictions, accessibility needs, and pace preference
3. Once you have enough information, indicate readiness to create the trip

Required information:
- Destination (city and country)
- Travel dates (start and end)
- Number of travelers
- Budget level (low/medium/high/luxury)

Optional but helpful:
- Interests (beaches, museums, food, adventure, etc.)
- Dietary restrictions
- Accessibility needs
- Pace (relaxed/moderate/active)

Previous conversation:
%s

Respond in JSON format:
{
  "message": "Your conversational response to the user",
  "ready_to_create": true/false,
  "extracted_data": {
    "destinations": [{"city": "", "country": ""}],
    "start_date": "YYYY-MM-DD",
    "end_date": "YYYY-MM-DD",
    "travelers": number,
    "budget_band": "medium",
    "interests": [],
    "dietary_restrictions": [],
    "accessibility_needs": [],
    "pace": "moderate"
  }
}`, convo.String())

	out, err := s.llm.Complete(ctx, domain.Completion{
		Model:     s.model,
		MaxTokens: 1000,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return nil, err
	}
	var reply intakeReply
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &reply); err != nil {
		return nil, fmt.Errorf("intake reply: %w", domain.ErrParse)
	}
	return &reply, nil
}

func (s *IntakeService) createTrip(ctx context.Context, userID string, x *extractedIntent) (*domain.Trip, error) {
	if len(x.Destinations) == 0 {
		return nil, fmt.Errorf("extracted intent has no destinations")
	}
	start, err := time.Parse("2006-01-02", x.StartDate)
	if err != nil {
		return nil, fmt.Errorf("bad start date %q: %w", x.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", x.EndDate)
	if err != nil {
		return nil, fmt.Errorf("bad end date %q: %w", x.EndDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date precedes start date")
	}

	runID := uuid.NewString()
	trip := &domain.Trip{
		ID:         uuid.NewString(),
		UserID:     userID,
		RunID:      &runID,
		Title:      fmt.Sprintf("Trip to %s", x.Destinations[0].City),
		Status:     domain.StatusDraft,
		Visibility: "private",
		Locale:     "en-US",
	}
	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}

	intent := &domain.TripIntent{
		TripID:              trip.ID,
		Destinations:        x.Destinations,
		StartDate:           start,
		EndDate:             end,
		Travelers:           max(x.Travelers, 1),
		BudgetBand:          domain.BudgetBand(orDefault(x.BudgetBand, string(domain.BudgetMedium))),
		Interests:           x.Interests,
		DietaryRestrictions: x.DietaryRestrictions,
		AccessibilityNeeds:  x.AccessibilityNeeds,
		Pace:                domain.Pace(orDefault(x.Pace, string(domain.PaceModerate))),
	}
	if err := s.repo.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	trip.Intent = intent

	log.Info().Str("trip", trip.ID).Str("city", x.Destinations[0].City).Msg("trip created from intake")
	return trip, nil
}
