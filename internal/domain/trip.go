package domain

import "time"

type TripStatus string

const (
	StatusDraft      TripStatus = "draft"
	StatusGenerating TripStatus = "generating"
	StatusActive     TripStatus = "active"
)

type BudgetBand string

const (
	BudgetLow    BudgetBand = "low"
	BudgetMedium BudgetBand = "medium"
	BudgetHigh   BudgetBand = "high"
	BudgetLuxury BudgetBand = "luxury"
)

type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PaceActive   Pace = "active"
)

type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
	SlotNight     Slot = "night"
)

type ItemKind string

const (
	KindActivity ItemKind = "activity"
	KindMeal     ItemKind = "meal"
)

type DurationSource string

const (
	DurationFromModel   DurationSource = "gpt_estimate"
	DurationFromCache   DurationSource = "cache"
	DurationFromDefault DurationSource = "default"
)

type Destination struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// TripIntent is created once by the intake classifier and is immutable
// afterwards except through an explicit edit.
type TripIntent struct {
	TripID              string
	Destinations        []Destination
	StartDate           time.Time // date-only, UTC midnight
	EndDate             time.Time
	Travelers           int
	BudgetBand          BudgetBand
	Interests           []string
	DietaryRestrictions []string
	AccessibilityNeeds  []string
	Pace                Pace
}

// Days returns the trip length in days, inclusive of both endpoints.
func (in TripIntent) Days() int {
	return int(in.EndDate.Sub(in.StartDate).Hours()/24) + 1
}

type Trip struct {
	ID         string
	UserID     string
	RunID      *string
	Title      string
	Status     TripStatus
	Visibility string
	Locale     string
	Intent     *TripIntent
	Days       []TripDay
	Hotels     []Hotel
	Notices    []string
	Sources    *CallCounts
	Debug      *GenerationDebug
}

// CallCounts is the per-generation telemetry persisted on the trip.
type CallCounts struct {
	MapsCalls   int `json:"maps_calls"`
	GPTCalls    int `json:"gpt_calls"`
	MatrixCalls int `json:"matrix_calls"`
}

type GenerationDebug struct {
	CacheHits int `json:"cache_hits"`
	Version   int `json:"version"`
}

type TripDay struct {
	ID        int64
	TripID    string
	DayNumber int
	Date      time.Time
	City      string
	TZID      string
	Summary   *string
	Items     []TimelineItem
	Transfers []Transfer
}

// DurationRange is a [min,max] estimate in minutes. The two-element order is
// authoritative and survives persistence round trips unchanged.
type DurationRange [2]int

type TimelineItem struct {
	ID             int64
	DayID          int64
	Slot           Slot
	Kind           ItemKind
	MealType       *string
	PlaceID        *string
	PlaceName      string
	Duration       DurationRange
	DurationSource DurationSource
	PlaceData      PlaceData
	OrderIndex     int
	Alternatives   []Alternative
}

// Alternative is a ranked substitute candidate for a timeline item. It
// carries a lightweight place record only, never a full PlaceData bag.
type Alternative struct {
	ID           int64
	ItemID       int64
	PlaceID      string
	PlaceName    string
	OrderIndex   int
	Rating       *float64
	RatingsTotal *int
	Address      *string
}

type Transfer struct {
	ID          int64
	DayID       int64
	FromPlaceID string
	ToPlaceID   string
	Mode        string
	EtaMin      int
	Polyline    *string
	DistanceKm  *float64
}

type Photo struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
}

// PlaceData is the typed enrichment record attached to timeline items.
// Every field is optional; Merge fills gaps without clobbering values that
// are already present.
type PlaceData struct {
	Rating       *float64 `json:"rating,omitempty"`
	RatingsTotal *int     `json:"user_ratings_total,omitempty"`
	Address      *string  `json:"formatted_address,omitempty"`
	Geo          *LatLng  `json:"geo,omitempty"`
	Description  *string  `json:"description,omitempty"`
	MicroCopy    *string  `json:"micro_copy,omitempty"`
	Tip          *string  `json:"tip,omitempty"`
	Photos       []Photo  `json:"photos,omitempty"`
}

// Merge copies fields from in that are absent on the receiver.
func (d *PlaceData) Merge(in PlaceData) {
	if d.Rating == nil {
		d.Rating = in.Rating
	}
	if d.RatingsTotal == nil {
		d.RatingsTotal = in.RatingsTotal
	}
	if d.Address == nil {
		d.Address = in.Address
	}
	if d.Geo == nil {
		d.Geo = in.Geo
	}
	if d.Description == nil {
		d.Description = in.Description
	}
	if d.MicroCopy == nil {
		d.MicroCopy = in.MicroCopy
	}
	if d.Tip == nil {
		d.Tip = in.Tip
	}
	if len(d.Photos) == 0 {
		d.Photos = in.Photos
	}
}

type Hotel struct {
	ID           int64
	TripID       string
	PlaceID      string
	Name         string
	Address      *string
	Geo          *LatLng
	Rating       *float64
	RatingsTotal *int
	PriceLevel   *int
	Phone        *string
	Website      *string
	Photos       []Photo
	IsSelected   bool
	Score        *float64
	Reason       *string
	// distance in driving minutes per day key ("day1", "day2", ...)
	DistanceToDayCentroid map[string]int
}
