package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"tripsmith/internal/domain"
)

// ---- helpers ----

func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

// ---- fakes ----

// fakeCache is an in-memory byte store. TTL is ignored on purpose: expiry is
// the entry envelope's job, which is exactly what the tests exercise.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	c.sets++
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeCompleter replays canned completions in order and records every
// request. When the queue runs dry the last reply repeats.
type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.Completion) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(req.Messages) > 0 {
		f.prompts = append(f.prompts, req.Messages[0].Content)
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", fmt.Errorf("fakeCompleter: no reply queued")
	}
	out := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return out, nil
}

// fakePlaces serves canned search results and details, with fixed routes.
type fakePlaces struct {
	mu          sync.Mutex
	search      map[string][]domain.PlaceSummary
	details     map[string]*domain.PlaceDetails
	etaMin      int
	pathEncoded string

	searchCalls int
	detailCalls int
	routeCalls  int
	pathCalls   int
}

func newFakePlaces() *fakePlaces {
	return &fakePlaces{
		search:  map[string][]domain.PlaceSummary{},
		details: map[string]*domain.PlaceDetails{},
		etaMin:  12,
	}
}

func (f *fakePlaces) SearchPlaces(_ context.Context, query string) ([]domain.PlaceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	res, ok := f.search[query]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return res, nil
}

func (f *fakePlaces) PlaceDetails(_ context.Context, placeID string, _ []string) (*domain.PlaceDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[placeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakePlaces) RouteDuration(_ context.Context, _, _ domain.LatLng, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routeCalls++
	return f.etaMin, nil
}

func (f *fakePlaces) RoutePath(_ context.Context, _, _ domain.LatLng, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathCalls++
	return f.pathEncoded, nil
}

// fakeRepo keeps the whole aggregate in memory.
type fakeRepo struct {
	mu     sync.Mutex
	nextID int64

	trips   map[string]*domain.Trip
	intents map[string]*domain.TripIntent
	days    map[string][]*domain.TripDay // trip id -> days
	hotels  map[string][]*domain.Hotel

	summaryUpdates int
	placeDataSaves int

	replaceTransfersErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		trips:   map[string]*domain.Trip{},
		intents: map[string]*domain.TripIntent{},
		days:    map[string][]*domain.TripDay{},
		hotels:  map[string][]*domain.Hotel{},
	}
}

func (r *fakeRepo) id() int64 { r.nextID++; return r.nextID }

func (r *fakeRepo) CreateTrip(_ context.Context, t *domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.trips[t.ID] = &cp
	return nil
}

func (r *fakeRepo) CreateIntent(_ context.Context, in *domain.TripIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *in
	r.intents[in.TripID] = &cp
	return nil
}

func (r *fakeRepo) ClaimGeneration(_ context.Context, tripID, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[tripID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != domain.StatusDraft {
		return false, nil
	}
	t.Status = domain.StatusGenerating
	t.RunID = &runID
	return true, nil
}

func (r *fakeRepo) FinishGeneration(_ context.Context, tripID string, sources domain.CallCounts, debug domain.GenerationDebug, notices []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[tripID]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.StatusActive
	t.Sources = &sources
	t.Debug = &debug
	t.Notices = notices
	return nil
}

func (r *fakeRepo) AbortGeneration(_ context.Context, tripID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trips[tripID]; ok && t.Status == domain.StatusGenerating {
		t.Status = domain.StatusDraft
	}
	return nil
}

func (r *fakeRepo) GetTrip(_ context.Context, id string) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	if in, ok := r.intents[id]; ok {
		icp := *in
		cp.Intent = &icp
	}
	return &cp, nil
}

func (r *fakeRepo) GetTripFull(ctx context.Context, id string) (*domain.Trip, error) {
	t, err := r.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.days[id] {
		dcp := *d
		dcp.Items = append([]domain.TimelineItem(nil), d.Items...)
		sort.Slice(dcp.Items, func(i, j int) bool { return dcp.Items[i].OrderIndex < dcp.Items[j].OrderIndex })
		dcp.Transfers = append([]domain.Transfer(nil), d.Transfers...)
		t.Days = append(t.Days, dcp)
	}
	sort.Slice(t.Days, func(i, j int) bool { return t.Days[i].DayNumber < t.Days[j].DayNumber })
	for _, h := range r.hotels[id] {
		t.Hotels = append(t.Hotels, *h)
	}
	return t, nil
}

func (r *fakeRepo) InsertDay(_ context.Context, d *domain.TripDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.id()
	cp := *d
	r.days[d.TripID] = append(r.days[d.TripID], &cp)
	return nil
}

func (r *fakeRepo) findDay(dayID int64) *domain.TripDay {
	for _, days := range r.days {
		for _, d := range days {
			if d.ID == dayID {
				return d
			}
		}
	}
	return nil
}

func (r *fakeRepo) InsertItem(_ context.Context, it *domain.TimelineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.findDay(it.DayID)
	if d == nil {
		return domain.ErrNotFound
	}
	it.ID = r.id()
	d.Items = append(d.Items, *it)
	return nil
}

func (r *fakeRepo) InsertAlternatives(_ context.Context, itemID int64, alts []domain.Alternative) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, days := range r.days {
		for _, d := range days {
			for i := range d.Items {
				if d.Items[i].ID == itemID {
					d.Items[i].Alternatives = append([]domain.Alternative(nil), alts...)
					return nil
				}
			}
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) UpdateDaySummary(_ context.Context, dayID int64, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.findDay(dayID)
	if d == nil {
		return domain.ErrNotFound
	}
	d.Summary = &summary
	r.summaryUpdates++
	return nil
}

func (r *fakeRepo) UpdateItemPlace(_ context.Context, itemID int64, placeID *string, placeName string, data domain.PlaceData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, days := range r.days {
		for _, d := range days {
			for i := range d.Items {
				if d.Items[i].ID == itemID {
					d.Items[i].PlaceID = placeID
					d.Items[i].PlaceName = placeName
					d.Items[i].PlaceData = data
					return nil
				}
			}
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) UpdateItemPlaceData(_ context.Context, itemID int64, data domain.PlaceData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, days := range r.days {
		for _, d := range days {
			for i := range d.Items {
				if d.Items[i].ID == itemID {
					d.Items[i].PlaceData = data
					r.placeDataSaves++
					return nil
				}
			}
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) DeleteItem(_ context.Context, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, days := range r.days {
		for _, d := range days {
			for i := range d.Items {
				if d.Items[i].ID == itemID {
					d.Items = append(d.Items[:i], d.Items[i+1:]...)
					return nil
				}
			}
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) ReplaceTransfers(_ context.Context, dayID int64, ts []domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceTransfersErr != nil {
		return r.replaceTransfersErr
	}
	d := r.findDay(dayID)
	if d == nil {
		return domain.ErrNotFound
	}
	d.Transfers = nil
	for i := range ts {
		ts[i].ID = r.id()
		ts[i].DayID = dayID
		d.Transfers = append(d.Transfers, ts[i])
	}
	return nil
}

func (r *fakeRepo) InsertHotel(_ context.Context, h *domain.Hotel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.ID = r.id()
	cp := *h
	r.hotels[h.TripID] = append(r.hotels[h.TripID], &cp)
	return nil
}

func (r *fakeRepo) ListHotels(_ context.Context, tripID string) ([]domain.Hotel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Hotel, 0, len(r.hotels[tripID]))
	for _, h := range r.hotels[tripID] {
		out = append(out, *h)
	}
	return out, nil
}

func (r *fakeRepo) UpdateHotelScore(_ context.Context, hotelID int64, score float64, reason string, distances map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, hs := range r.hotels {
		for _, h := range hs {
			if h.ID == hotelID {
				h.Score = &score
				h.Reason = &reason
				h.DistanceToDayCentroid = distances
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) SetSelectedHotel(_ context.Context, tripID string, hotelID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for _, h := range r.hotels[tripID] {
		h.IsSelected = h.ID == hotelID
		if h.IsSelected {
			found = true
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.TripRepository = (*fakeRepo)(nil)
var _ domain.Cache = (*fakeCache)(nil)
var _ domain.Completer = (*fakeCompleter)(nil)
var _ domain.PlaceProvider = (*fakePlaces)(nil)
