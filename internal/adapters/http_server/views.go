package httpserver

import (
	"tripsmith/internal/domain"
)

// Response shapes. The domain aggregate is mapped explicitly so persistence
// details never leak into the API by accident.

type TripView struct {
	ID         string                  `json:"id"`
	Title      string                  `json:"title"`
	Status     string                  `json:"status"`
	Visibility string                  `json:"visibility"`
	Locale     string                  `json:"locale"`
	Intent     *IntentView             `json:"intent,omitempty"`
	Days       []DayView               `json:"days"`
	Hotels     []HotelView             `json:"hotels"`
	Notices    []string                `json:"notices,omitempty"`
	Sources    *domain.CallCounts      `json:"sources,omitempty"`
	Debug      *domain.GenerationDebug `json:"debug,omitempty"`
}

type IntentView struct {
	Destinations []domain.Destination `json:"destinations"`
	StartDate    string               `json:"start_date"`
	EndDate      string               `json:"end_date"`
	Travelers    int                  `json:"travelers"`
	BudgetBand   string               `json:"budget_band"`
	Interests    []string             `json:"interests,omitempty"`
	Pace         string               `json:"pace"`
}

type DayView struct {
	DayNumber int            `json:"day_number"`
	Date      string         `json:"date"`
	City      string         `json:"city"`
	TZID      string         `json:"tzid"`
	Summary   *string        `json:"summary,omitempty"`
	Timeline  []ItemView     `json:"timeline"`
	Transfers []TransferView `json:"transfers"`
}

type ItemView struct {
	ID             int64             `json:"id"`
	Slot           string            `json:"slot"`
	Kind           string            `json:"kind"`
	MealType       *string           `json:"meal_type,omitempty"`
	PlaceID        *string           `json:"place_id"`
	PlaceName      string            `json:"place_name"`
	DurationMin    [2]int            `json:"estimated_duration_min"`
	DurationSource string            `json:"duration_source"`
	PlaceData      domain.PlaceData  `json:"place_data"`
	OrderIndex     int               `json:"order_index"`
	Alternatives   []AlternativeView `json:"alternatives,omitempty"`
}

type AlternativeView struct {
	PlaceID      string   `json:"place_id"`
	PlaceName    string   `json:"place_name"`
	OrderIndex   int      `json:"order_index"`
	Rating       *float64 `json:"rating,omitempty"`
	RatingsTotal *int     `json:"user_ratings_total,omitempty"`
	Address      *string  `json:"address,omitempty"`
}

type TransferView struct {
	FromPlaceID string   `json:"from_place_id"`
	ToPlaceID   string   `json:"to_place_id"`
	Mode        string   `json:"mode"`
	EtaMin      int      `json:"eta_min"`
	Polyline    *string  `json:"polyline,omitempty"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

type HotelView struct {
	PlaceID      string         `json:"place_id"`
	Name         string         `json:"name"`
	Address      *string        `json:"address,omitempty"`
	Geo          *domain.LatLng `json:"geo,omitempty"`
	Rating       *float64       `json:"rating,omitempty"`
	RatingsTotal *int           `json:"user_ratings_total,omitempty"`
	PriceLevel   *int           `json:"price_level,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Website      *string        `json:"website,omitempty"`
	Photos       []domain.Photo `json:"photos,omitempty"`
	IsSelected   bool           `json:"is_selected"`
	Score        *float64       `json:"score,omitempty"`
	Reason       *string        `json:"reason,omitempty"`
	Distances    map[string]int `json:"distance_to_day_centroid,omitempty"`
}

const dateLayout = "2006-01-02"

func tripView(t *domain.Trip) TripView {
	v := TripView{
		ID:         t.ID,
		Title:      t.Title,
		Status:     string(t.Status),
		Visibility: t.Visibility,
		Locale:     t.Locale,
		Days:       make([]DayView, 0, len(t.Days)),
		Hotels:     make([]HotelView, 0, len(t.Hotels)),
		Notices:    t.Notices,
		Sources:    t.Sources,
		Debug:      t.Debug,
	}
	if t.Intent != nil {
		v.Intent = &IntentView{
			Destinations: t.Intent.Destinations,
			StartDate:    t.Intent.StartDate.Format(dateLayout),
			EndDate:      t.Intent.EndDate.Format(dateLayout),
			Travelers:    t.Intent.Travelers,
			BudgetBand:   string(t.Intent.BudgetBand),
			Interests:    t.Intent.Interests,
			Pace:         string(t.Intent.Pace),
		}
	}
	for _, d := range t.Days {
		v.Days = append(v.Days, dayView(d))
	}
	for _, h := range t.Hotels {
		v.Hotels = append(v.Hotels, hotelView(h))
	}
	return v
}

func dayView(d domain.TripDay) DayView {
	dv := DayView{
		DayNumber: d.DayNumber,
		Date:      d.Date.Format(dateLayout),
		City:      d.City,
		TZID:      d.TZID,
		Summary:   d.Summary,
		Timeline:  make([]ItemView, 0, len(d.Items)),
		Transfers: make([]TransferView, 0, len(d.Transfers)),
	}
	for _, it := range d.Items {
		iv := ItemView{
			ID:             it.ID,
			Slot:           string(it.Slot),
			Kind:           string(it.Kind),
			MealType:       it.MealType,
			PlaceID:        it.PlaceID,
			PlaceName:      it.PlaceName,
			DurationMin:    it.Duration,
			DurationSource: string(it.DurationSource),
			PlaceData:      it.PlaceData,
			OrderIndex:     it.OrderIndex,
		}
		for _, a := range it.Alternatives {
			iv.Alternatives = append(iv.Alternatives, AlternativeView{
				PlaceID:      a.PlaceID,
				PlaceName:    a.PlaceName,
				OrderIndex:   a.OrderIndex,
				Rating:       a.Rating,
				RatingsTotal: a.RatingsTotal,
				Address:      a.Address,
			})
		}
		dv.Timeline = append(dv.Timeline, iv)
	}
	for _, tr := range d.Transfers {
		dv.Transfers = append(dv.Transfers, TransferView{
			FromPlaceID: tr.FromPlaceID,
			ToPlaceID:   tr.ToPlaceID,
			Mode:        tr.Mode,
			EtaMin:      tr.EtaMin,
			Polyline:    tr.Polyline,
			DistanceKm:  tr.DistanceKm,
		})
	}
	return dv
}

func hotelView(h domain.Hotel) HotelView {
	return HotelView{
		PlaceID:      h.PlaceID,
		Name:         h.Name,
		Address:      h.Address,
		Geo:          h.Geo,
		Rating:       h.Rating,
		RatingsTotal: h.RatingsTotal,
		PriceLevel:   h.PriceLevel,
		Phone:        h.Phone,
		Website:      h.Website,
		Photos:       h.Photos,
		IsSelected:   h.IsSelected,
		Score:        h.Score,
		Reason:       h.Reason,
		Distances:    h.DistanceToDayCentroid,
	}
}
