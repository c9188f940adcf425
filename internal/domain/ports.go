package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a lost generation claim (trip no longer in draft).
	ErrConflict = errors.New("conflict")
	// ErrParse signals a model completion that could not be decoded into the
	// expected JSON shape.
	ErrParse = errors.New("unparseable completion")
)

// TripRepository is the persistence port for the trip aggregate.
type TripRepository interface {
	// Intake writes
	CreateTrip(ctx context.Context, t *Trip) error
	CreateIntent(ctx context.Context, in *TripIntent) error

	// Generation lifecycle. ClaimGeneration performs a guarded
	// draft -> generating transition keyed by a run token and reports
	// whether this caller won the claim.
	ClaimGeneration(ctx context.Context, tripID, runID string) (bool, error)
	FinishGeneration(ctx context.Context, tripID string, sources CallCounts, debug GenerationDebug, notices []string) error
	AbortGeneration(ctx context.Context, tripID string) error

	// Reads
	GetTrip(ctx context.Context, id string) (*Trip, error)     // trip + intent
	GetTripFull(ctx context.Context, id string) (*Trip, error) // + days, items, transfers, hotels

	// Day / timeline writes
	InsertDay(ctx context.Context, d *TripDay) error
	InsertItem(ctx context.Context, it *TimelineItem) error
	InsertAlternatives(ctx context.Context, itemID int64, alts []Alternative) error
	UpdateDaySummary(ctx context.Context, dayID int64, summary string) error
	UpdateItemPlace(ctx context.Context, itemID int64, placeID *string, placeName string, data PlaceData) error
	UpdateItemPlaceData(ctx context.Context, itemID int64, data PlaceData) error
	DeleteItem(ctx context.Context, itemID int64) error

	// Transfers: full-day replacement is atomic (delete + insert in one tx).
	ReplaceTransfers(ctx context.Context, dayID int64, ts []Transfer) error

	// Hotels
	InsertHotel(ctx context.Context, h *Hotel) error
	ListHotels(ctx context.Context, tripID string) ([]Hotel, error)
	UpdateHotelScore(ctx context.Context, hotelID int64, score float64, reason string, distances map[string]int) error
	SetSelectedHotel(ctx context.Context, tripID string, hotelID int64) error
}

// PlaceProvider wraps the geocoded place search / detail / routing
// capability (Google Maps in production).
type PlaceProvider interface {
	SearchPlaces(ctx context.Context, query string) ([]PlaceSummary, error)
	PlaceDetails(ctx context.Context, placeID string, fields []string) (*PlaceDetails, error)
	// RouteDuration returns travel minutes between two points.
	RouteDuration(ctx context.Context, origin, dest LatLng, mode string) (int, error)
	// RoutePath returns an encoded overview polyline for the leg.
	RoutePath(ctx context.Context, origin, dest LatLng, mode string) (string, error)
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Completion struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int64
}

// Completer is the language-model completion port. Callers parse the
// returned text themselves and decide whether a parse failure is fatal.
type Completer interface {
	Complete(ctx context.Context, req Completion) (string, error)
}

// Cache is the TTL key-value port shared by every pipeline component.
// A Get on a missing or expired entry reports found=false.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
