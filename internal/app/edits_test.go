package app

import (
	"context"
	"testing"
	"time"

	"tripsmith/internal/domain"
)

func seedEditableTrip(t *testing.T, repo *fakeRepo) {
	t.Helper()
	ctx := context.Background()
	_ = repo.CreateTrip(ctx, &domain.Trip{ID: "trip-1", Status: domain.StatusActive, Title: "Trip to Lisbon"})

	day1 := &domain.TripDay{TripID: "trip-1", DayNumber: 1, Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), City: "Lisbon"}
	day2 := &domain.TripDay{TripID: "trip-1", DayNumber: 2, Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), City: "Lisbon"}
	for _, d := range []*domain.TripDay{day1, day2} {
		if err := repo.InsertDay(ctx, d); err != nil {
			t.Fatalf("InsertDay: %v", err)
		}
	}

	items := []struct {
		day  *domain.TripDay
		slot domain.Slot
		name string
	}{
		{day1, domain.SlotMorning, "Oceanário"},
		{day1, domain.SlotAfternoon, "Tram 28 Ride"},
		{day2, domain.SlotMorning, "City Museum"},
		{day2, domain.SlotAfternoon, "City Museum Annex"},
		{day2, domain.SlotEvening, "Fado Show"},
	}
	for i, seed := range items {
		pid := seed.name
		it := &domain.TimelineItem{
			DayID:      seed.day.ID,
			Slot:       seed.slot,
			Kind:       domain.KindActivity,
			PlaceID:    &pid,
			PlaceName:  seed.name,
			OrderIndex: i,
		}
		if err := repo.InsertItem(ctx, it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}
}

func TestEdits_RemoveMatchesBySubstring(t *testing.T) {
	repo := newFakeRepo()
	seedEditableTrip(t, repo)

	llm := &fakeCompleter{replies: []string{
		`{"action":"remove","target_day":2,"item_to_change":"museum","reasoning":"user wants it gone"}`,
	}}
	svc := NewEditService(repo, newFakePlaces(), llm, newFakeCache(), "test-model")

	res, err := svc.Apply(context.Background(), "trip-1", "remove the museum on day 2")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	// loose matching: both "City Museum" and "City Museum Annex" go
	if res.Matched != 2 {
		t.Fatalf("matched = %d, want 2", res.Matched)
	}

	trip, _ := repo.GetTripFull(context.Background(), "trip-1")
	names := []string{}
	for _, d := range trip.Days {
		for _, it := range d.Items {
			names = append(names, it.PlaceName)
		}
	}
	for _, n := range names {
		if n == "City Museum" || n == "City Museum Annex" {
			t.Fatalf("item %q survived removal (remaining: %v)", n, names)
		}
	}
	if len(names) != 3 {
		t.Fatalf("remaining items = %v", names)
	}
}

func TestEdits_RemoveMatchesBySlotAcrossDay(t *testing.T) {
	repo := newFakeRepo()
	seedEditableTrip(t, repo)

	// no name fragment: slot equality matches every morning item in scope
	llm := &fakeCompleter{replies: []string{
		`{"action":"remove","target_day":null,"target_slot":"morning","item_to_change":"","reasoning":""}`,
	}}
	svc := NewEditService(repo, newFakePlaces(), llm, newFakeCache(), "test-model")

	res, err := svc.Apply(context.Background(), "trip-1", "clear my mornings")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Matched != 2 {
		t.Fatalf("matched = %d, want 2 (one morning per day)", res.Matched)
	}
}

func TestEdits_SwapReplacesEveryMatch(t *testing.T) {
	repo := newFakeRepo()
	seedEditableTrip(t, repo)

	places := newFakePlaces()
	places.search["aquarium lisbon"] = []domain.PlaceSummary{{PlaceID: "gm-new", Name: "Lisbon Aquarium"}}
	places.details["gm-new"] = &domain.PlaceDetails{
		PlaceID: "gm-new",
		Name:    "Lisbon Aquarium",
		Geo:     &domain.LatLng{Lat: 38.76, Lng: -9.09},
		Rating:  pfloat(4.7),
	}

	llm := &fakeCompleter{replies: []string{
		`{"action":"swap","target_day":1,"item_to_change":"Oceanário","search_query":"aquarium lisbon","reasoning":"similar attraction"}`,
	}}
	svc := NewEditService(repo, places, llm, newFakeCache(), "test-model")

	res, err := svc.Apply(context.Background(), "trip-1", "swap the oceanarium for an aquarium")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.Success || res.Matched != 1 {
		t.Fatalf("result = %+v", res)
	}

	trip, _ := repo.GetTripFull(context.Background(), "trip-1")
	found := false
	for _, it := range trip.Days[0].Items {
		if it.PlaceName == "Lisbon Aquarium" {
			found = true
			if it.PlaceID == nil || *it.PlaceID != "gm-new" {
				t.Fatalf("swap kept old place id: %+v", it)
			}
			if it.PlaceData.Rating == nil || *it.PlaceData.Rating != 4.7 {
				t.Fatalf("swap lost place data: %+v", it.PlaceData)
			}
		}
	}
	if !found {
		t.Fatal("replacement item not found")
	}
}

func TestEdits_UnhandledActionAsksToClarify(t *testing.T) {
	repo := newFakeRepo()
	seedEditableTrip(t, repo)

	llm := &fakeCompleter{replies: []string{
		`{"action":"extend_duration","target_day":1,"item_to_change":"Oceanário"}`,
	}}
	svc := NewEditService(repo, newFakePlaces(), llm, newFakeCache(), "test-model")

	res, err := svc.Apply(context.Background(), "trip-1", "give me more time at the oceanarium")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success {
		t.Fatalf("unhandled action reported success: %+v", res)
	}
}

func TestEdits_UnparseableIntentAsksToClarify(t *testing.T) {
	repo := newFakeRepo()
	seedEditableTrip(t, repo)

	llm := &fakeCompleter{replies: []string{"sure, happy to help!"}}
	svc := NewEditService(repo, newFakePlaces(), llm, newFakeCache(), "test-model")

	res, err := svc.Apply(context.Background(), "trip-1", "do something")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Success {
		t.Fatalf("unparseable intent reported success: %+v", res)
	}
}
