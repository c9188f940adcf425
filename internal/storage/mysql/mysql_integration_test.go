//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"tripsmith/internal/domain"
	mysqlrepo "tripsmith/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pint(i int) *int           { return &i }
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=tripsmith",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "tripsmith")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func seedTrip(t *testing.T, ctx context.Context, repo *mysqlrepo.Repo, id string) *domain.Trip {
	t.Helper()
	trip := &domain.Trip{
		ID:         id,
		UserID:     "user-1",
		Title:      "Trip to Lisbon",
		Status:     domain.StatusDraft,
		Visibility: "private",
		Locale:     "en-US",
	}
	if err := repo.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	intent := &domain.TripIntent{
		TripID:       id,
		Destinations: []domain.Destination{{City: "Lisbon", Country: "Portugal"}},
		StartDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		Travelers:    2,
		BudgetBand:   domain.BudgetMedium,
		Interests:    []string{"food", "museums"},
		Pace:         domain.PaceModerate,
	}
	if err := repo.CreateIntent(ctx, intent); err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	return trip
}

// ---------- the tests ----------
func TestRepo_MySQL_TripLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	seedTrip(t, ctx, repo, "11111111-1111-1111-1111-111111111111")

	// Only the first claim on a draft trip wins.
	ok, err := repo.ClaimGeneration(ctx, "11111111-1111-1111-1111-111111111111", "run-a")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.ClaimGeneration(ctx, "11111111-1111-1111-1111-111111111111", "run-b")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("second claim should lose")
	}

	day := &domain.TripDay{
		TripID:    "11111111-1111-1111-1111-111111111111",
		DayNumber: 1,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		City:      "Lisbon",
		TZID:      "Europe/Lisbon",
	}
	if err := repo.InsertDay(ctx, day); err != nil {
		t.Fatalf("InsertDay: %v", err)
	}
	if day.ID == 0 {
		t.Fatal("InsertDay did not set id")
	}

	item := &domain.TimelineItem{
		DayID:          day.ID,
		Slot:           domain.SlotMorning,
		Kind:           domain.KindActivity,
		PlaceID:        pstr("gm-castle"),
		PlaceName:      "Castelo de São Jorge",
		Duration:       domain.DurationRange{90, 150},
		DurationSource: domain.DurationFromModel,
		PlaceData: domain.PlaceData{
			Rating: pfloat(4.6),
			Geo:    &domain.LatLng{Lat: 38.7139, Lng: -9.1335},
		},
		OrderIndex: 0,
	}
	if err := repo.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if err := repo.InsertAlternatives(ctx, item.ID, []domain.Alternative{
		{PlaceID: "gm-se", PlaceName: "Sé de Lisboa", OrderIndex: 0, Rating: pfloat(4.5)},
	}); err != nil {
		t.Fatalf("InsertAlternatives: %v", err)
	}

	if err := repo.FinishGeneration(ctx, "11111111-1111-1111-1111-111111111111",
		domain.CallCounts{MapsCalls: 3, GPTCalls: 2, MatrixCalls: 1},
		domain.GenerationDebug{CacheHits: 4, Version: 1},
		[]string{"Dia 1: poucas refeições planejadas (0)"},
	); err != nil {
		t.Fatalf("FinishGeneration: %v", err)
	}

	got, err := repo.GetTripFull(ctx, "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("GetTripFull: %v", err)
	}
	if got.Status != domain.StatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
	if got.Intent == nil || got.Intent.Days() != 3 {
		t.Fatalf("intent days = %+v", got.Intent)
	}
	if len(got.Days) != 1 || len(got.Days[0].Items) != 1 {
		t.Fatalf("days = %+v", got.Days)
	}
	// the [min,max] range survives the round trip in order
	if got.Days[0].Items[0].Duration != (domain.DurationRange{90, 150}) {
		t.Fatalf("duration = %v", got.Days[0].Items[0].Duration)
	}
	if len(got.Days[0].Items[0].Alternatives) != 1 {
		t.Fatalf("alternatives = %+v", got.Days[0].Items[0].Alternatives)
	}
	if got.Sources == nil || got.Sources.MapsCalls != 3 {
		t.Fatalf("sources = %+v", got.Sources)
	}
	if len(got.Notices) != 1 {
		t.Fatalf("notices = %v", got.Notices)
	}
}

func TestRepo_MySQL_TransfersAndHotels(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	seedTrip(t, ctx, repo, "22222222-2222-2222-2222-222222222222")

	day := &domain.TripDay{
		TripID:    "22222222-2222-2222-2222-222222222222",
		DayNumber: 1,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		City:      "Lisbon",
		TZID:      "Europe/Lisbon",
	}
	if err := repo.InsertDay(ctx, day); err != nil {
		t.Fatalf("InsertDay: %v", err)
	}

	first := []domain.Transfer{
		{DayID: day.ID, FromPlaceID: "a", ToPlaceID: "b", Mode: "driving", EtaMin: 12},
		{DayID: day.ID, FromPlaceID: "b", ToPlaceID: "c", Mode: "driving", EtaMin: 25, Polyline: pstr("abc"), DistanceKm: pfloat(4.2)},
	}
	if err := repo.ReplaceTransfers(ctx, day.ID, first); err != nil {
		t.Fatalf("ReplaceTransfers: %v", err)
	}

	// recompute replaces, never appends
	second := []domain.Transfer{
		{DayID: day.ID, FromPlaceID: "a", ToPlaceID: "b", Mode: "driving", EtaMin: 14},
	}
	if err := repo.ReplaceTransfers(ctx, day.ID, second); err != nil {
		t.Fatalf("ReplaceTransfers again: %v", err)
	}

	full, err := repo.GetTripFull(ctx, "22222222-2222-2222-2222-222222222222")
	if err != nil {
		t.Fatalf("GetTripFull: %v", err)
	}
	if len(full.Days[0].Transfers) != 1 || full.Days[0].Transfers[0].EtaMin != 14 {
		t.Fatalf("transfers = %+v", full.Days[0].Transfers)
	}

	h1 := &domain.Hotel{
		TripID:     "22222222-2222-2222-2222-222222222222",
		PlaceID:    "gm-h1",
		Name:       "Hotel Alfama",
		Geo:        &domain.LatLng{Lat: 38.71, Lng: -9.13},
		Rating:     pfloat(4.4),
		PriceLevel: pint(2),
		Photos:     []domain.Photo{{URL: "https://example.com/p.jpg"}},
	}
	h2 := &domain.Hotel{
		TripID:  "22222222-2222-2222-2222-222222222222",
		PlaceID: "gm-h2",
		Name:    "Hotel Baixa",
		Geo:     &domain.LatLng{Lat: 38.71, Lng: -9.14},
	}
	for _, h := range []*domain.Hotel{h1, h2} {
		if err := repo.InsertHotel(ctx, h); err != nil {
			t.Fatalf("InsertHotel %s: %v", h.Name, err)
		}
	}

	if err := repo.UpdateHotelScore(ctx, h1.ID, 0.82, "Perfect match for your budget", map[string]int{"day1": 9}); err != nil {
		t.Fatalf("UpdateHotelScore: %v", err)
	}
	if err := repo.SetSelectedHotel(ctx, "22222222-2222-2222-2222-222222222222", h1.ID); err != nil {
		t.Fatalf("SetSelectedHotel: %v", err)
	}
	// flipping selection leaves exactly one selected
	if err := repo.SetSelectedHotel(ctx, "22222222-2222-2222-2222-222222222222", h2.ID); err != nil {
		t.Fatalf("SetSelectedHotel flip: %v", err)
	}

	hotels, err := repo.ListHotels(ctx, "22222222-2222-2222-2222-222222222222")
	if err != nil {
		t.Fatalf("ListHotels: %v", err)
	}
	selected := 0
	for _, h := range hotels {
		if h.IsSelected {
			selected++
			if h.PlaceID != "gm-h2" {
				t.Fatalf("selected = %s, want gm-h2", h.PlaceID)
			}
		}
	}
	if selected != 1 {
		t.Fatalf("selected count = %d, want 1", selected)
	}
}
