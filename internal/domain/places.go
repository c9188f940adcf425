package domain

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceSummary is one ranked text-search result.
type PlaceSummary struct {
	PlaceID      string
	Name         string
	Types        []string
	Rating       *float64
	RatingsTotal *int
	PriceLevel   *int
	Address      *string
	Geo          *LatLng
}

// PlaceDetails is the full record behind a place id.
type PlaceDetails struct {
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
}

// Data returns the enrichment view of the details record.
func (d PlaceDetails) Data() PlaceData {
	return PlaceData{
		Rating:       d.Rating,
		RatingsTotal: d.RatingsTotal,
		Address:      d.Address,
		Geo:          d.Geo,
		Photos:       d.Photos,
	}
}

// DurationEstimate is the duration estimator's result for one place and
// traveler profile.
type DurationEstimate struct {
	DurationMin DurationRange  `json:"duration_min"`
	Confidence  float64        `json:"confidence"`
	Assumptions []string       `json:"assumptions,omitempty"`
	Risks       []string       `json:"risks,omitempty"`
	Evidence    []string       `json:"evidence_snippets,omitempty"`
	Source      DurationSource `json:"source"`
}
