package app

import (
	"context"
	"testing"
	"time"

	"tripsmith/internal/domain"
)

func seedPresentableTrip(t *testing.T, repo *fakeRepo, withCopy bool) *domain.Trip {
	t.Helper()
	ctx := context.Background()
	_ = repo.CreateTrip(ctx, &domain.Trip{ID: "trip-1", Status: domain.StatusGenerating})
	_ = repo.CreateIntent(ctx, &domain.TripIntent{
		TripID:       "trip-1",
		Destinations: []domain.Destination{{City: "Lisbon", Country: "Portugal"}},
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Interests:    []string{"food"},
	})

	day := &domain.TripDay{TripID: "trip-1", DayNumber: 1, Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), City: "Lisbon"}
	if err := repo.InsertDay(ctx, day); err != nil {
		t.Fatalf("InsertDay: %v", err)
	}

	item := &domain.TimelineItem{
		DayID: day.ID, Slot: domain.SlotMorning, Kind: domain.KindActivity,
		PlaceID: pstr("a"), PlaceName: "Castelo", OrderIndex: 0,
		PlaceData: domain.PlaceData{Rating: pfloat(4.6)},
	}
	if withCopy {
		item.PlaceData.Description = pstr("Historic castle overlooking the city.")
		item.PlaceData.MicroCopy = pstr("Lisbon's crown")
	}
	if err := repo.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	trip, err := repo.GetTripFull(ctx, "trip-1")
	if err != nil {
		t.Fatalf("GetTripFull: %v", err)
	}
	return trip
}

func TestPresenter_FillsSummaryAndCopy(t *testing.T) {
	repo := newFakeRepo()
	trip := seedPresentableTrip(t, repo, false)

	llm := &fakeCompleter{replies: []string{
		"Castles, tiles and seafood in old Lisbon",
		`{"description":"A medieval fortress with sweeping views.","micro_copy":"Views for days","tip":"Go at opening time"}`,
	}}
	p := NewPresenter(llm, repo, "test-model")

	if err := p.Enhance(context.Background(), trip, nil); err != nil {
		t.Fatalf("Enhance: %v", err)
	}

	got, _ := repo.GetTripFull(context.Background(), "trip-1")
	day := got.Days[0]
	if day.Summary == nil || *day.Summary != "Castles, tiles and seafood in old Lisbon" {
		t.Fatalf("summary = %v", day.Summary)
	}
	pd := day.Items[0].PlaceData
	if pd.Description == nil || pd.MicroCopy == nil || pd.Tip == nil {
		t.Fatalf("copy not filled: %+v", pd)
	}
	// pre-existing enrichment survives the merge
	if pd.Rating == nil || *pd.Rating != 4.6 {
		t.Fatalf("merge clobbered rating: %+v", pd)
	}
}

func TestPresenter_SkipsEnrichedItems(t *testing.T) {
	repo := newFakeRepo()
	trip := seedPresentableTrip(t, repo, true)
	summary := "Done already"
	trip.Days[0].Summary = &summary
	_ = repo.UpdateDaySummary(context.Background(), trip.Days[0].ID, summary)
	repo.summaryUpdates = 0
	repo.placeDataSaves = 0

	llm := &fakeCompleter{}
	p := NewPresenter(llm, repo, "test-model")

	if err := p.Enhance(context.Background(), trip, nil); err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("model calls = %d for fully enriched trip, want 0", llm.calls)
	}
	if repo.summaryUpdates != 0 || repo.placeDataSaves != 0 {
		t.Fatalf("writes: summaries=%d placeData=%d, want 0/0", repo.summaryUpdates, repo.placeDataSaves)
	}
}

func TestPresenter_FallbackCopyOnBadJSON(t *testing.T) {
	repo := newFakeRepo()
	trip := seedPresentableTrip(t, repo, false)
	summary := "Prefilled"
	trip.Days[0].Summary = &summary

	llm := &fakeCompleter{replies: []string{"I love this castle! Here is some prose instead of JSON."}}
	p := NewPresenter(llm, repo, "test-model")

	if err := p.Enhance(context.Background(), trip, nil); err != nil {
		t.Fatalf("Enhance: %v", err)
	}

	got, _ := repo.GetTripFull(context.Background(), "trip-1")
	pd := got.Days[0].Items[0].PlaceData
	if pd.Description == nil || *pd.Description != "Experience Castelo" {
		t.Fatalf("fallback description = %v", pd.Description)
	}
	if pd.MicroCopy == nil || *pd.MicroCopy != "Must-see attraction" {
		t.Fatalf("fallback micro copy = %v", pd.MicroCopy)
	}
}

func TestPresenter_MealFallbackCopy(t *testing.T) {
	item := &domain.TimelineItem{Kind: domain.KindMeal, PlaceName: "Ramiro"}
	pd := fallbackCopy(item)
	if *pd.MicroCopy != "Great dining spot" {
		t.Fatalf("meal fallback = %q", *pd.MicroCopy)
	}
}
