package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tripsmith/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// valJSON marshals v for a nullable JSON column; nil-ish values become NULL.
func valJSON(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) CreateTrip(ctx context.Context, t *domain.Trip) error {
	_, err := r.db.ExecContext(ctx, insertTripSQL,
		t.ID,
		t.UserID,
		valStr(t.RunID),
		t.Title,
		string(t.Status),
		t.Visibility,
		t.Locale,
	)
	return err
}

func (r *Repo) CreateIntent(ctx context.Context, in *domain.TripIntent) error {
	_, err := r.db.ExecContext(ctx, insertIntentSQL,
		in.TripID,
		valJSON(in.Destinations),
		in.StartDate.Format("2006-01-02"),
		in.EndDate.Format("2006-01-02"),
		in.Travelers,
		string(in.BudgetBand),
		valJSON(in.Interests),
		valJSON(in.DietaryRestrictions),
		valJSON(in.AccessibilityNeeds),
		string(in.Pace),
	)
	return err
}

func (r *Repo) ClaimGeneration(ctx context.Context, tripID, runID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, claimGenerationSQL, runID, tripID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repo) FinishGeneration(ctx context.Context, tripID string, sources domain.CallCounts, debug domain.GenerationDebug, notices []string) error {
	res, err := r.db.ExecContext(ctx, finishGenerationSQL,
		valJSON(sources),
		valJSON(debug),
		valJSON(notices),
		tripID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %s not generating: %w", tripID, domain.ErrConflict)
	}
	return nil
}

func (r *Repo) AbortGeneration(ctx context.Context, tripID string) error {
	_, err := r.db.ExecContext(ctx, abortGenerationSQL, tripID)
	return err
}

func (r *Repo) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	row := r.db.QueryRowContext(ctx, getTripSQL, id)

	var t domain.Trip
	var runID sql.NullString
	var sourcesJSON, debugJSON, noticesJSON []byte
	var destJSON, interestsJSON, dietJSON, accessJSON []byte
	var startDate, endDate sql.NullTime
	var travelers sql.NullInt64
	var budget, pace sql.NullString

	if err := row.Scan(
		&t.ID, &t.UserID, &runID, &t.Title, &t.Status, &t.Visibility, &t.Locale,
		&sourcesJSON, &debugJSON, &noticesJSON,
		&destJSON, &startDate, &endDate, &travelers, &budget,
		&interestsJSON, &dietJSON, &accessJSON, &pace,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if runID.Valid {
		s := runID.String
		t.RunID = &s
	}
	if len(sourcesJSON) > 0 {
		var cc domain.CallCounts
		if json.Unmarshal(sourcesJSON, &cc) == nil {
			t.Sources = &cc
		}
	}
	if len(debugJSON) > 0 {
		var d domain.GenerationDebug
		if json.Unmarshal(debugJSON, &d) == nil {
			t.Debug = &d
		}
	}
	_ = json.Unmarshal(noticesJSON, &t.Notices)

	if startDate.Valid { // intent row exists
		in := domain.TripIntent{
			TripID:    t.ID,
			StartDate: startDate.Time,
			EndDate:   endDate.Time,
			Travelers: int(travelers.Int64),
		}
		if budget.Valid {
			in.BudgetBand = domain.BudgetBand(budget.String)
		}
		if pace.Valid {
			in.Pace = domain.Pace(pace.String)
		}
		_ = json.Unmarshal(destJSON, &in.Destinations)
		_ = json.Unmarshal(interestsJSON, &in.Interests)
		_ = json.Unmarshal(dietJSON, &in.DietaryRestrictions)
		_ = json.Unmarshal(accessJSON, &in.AccessibilityNeeds)
		t.Intent = &in
	}
	return &t, nil
}

func (r *Repo) GetTripFull(ctx context.Context, id string) (*domain.Trip, error) {
	t, err := r.GetTrip(ctx, id)
	if err != nil {
		return nil, err
	}

	days, err := r.listDays(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range days {
		if days[i].Items, err = r.listItems(ctx, days[i].ID); err != nil {
			return nil, err
		}
		if days[i].Transfers, err = r.listTransfers(ctx, days[i].ID); err != nil {
			return nil, err
		}
	}
	t.Days = days

	if t.Hotels, err = r.ListHotels(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repo) InsertDay(ctx context.Context, d *domain.TripDay) error {
	res, err := r.db.ExecContext(ctx, insertDaySQL,
		d.TripID,
		d.DayNumber,
		d.Date.Format("2006-01-02"),
		d.City,
		d.TZID,
		valStr(d.Summary),
	)
	if err != nil {
		return err
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) InsertItem(ctx context.Context, it *domain.TimelineItem) error {
	res, err := r.db.ExecContext(ctx, insertItemSQL,
		it.DayID,
		string(it.Slot),
		string(it.Kind),
		valStr(it.MealType),
		valStr(it.PlaceID),
		it.PlaceName,
		it.Duration[0],
		it.Duration[1],
		string(it.DurationSource),
		valJSON(it.PlaceData),
		it.OrderIndex,
	)
	if err != nil {
		return err
	}
	it.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) InsertAlternatives(ctx context.Context, itemID int64, alts []domain.Alternative) error {
	for i := range alts {
		res, err := r.db.ExecContext(ctx, insertAlternativeSQL,
			itemID,
			alts[i].PlaceID,
			alts[i].PlaceName,
			alts[i].OrderIndex,
			valF64(alts[i].Rating),
			valInt(alts[i].RatingsTotal),
			valStr(alts[i].Address),
		)
		if err != nil {
			return err
		}
		alts[i].ItemID = itemID
		alts[i].ID, _ = res.LastInsertId()
	}
	return nil
}

func (r *Repo) UpdateDaySummary(ctx context.Context, dayID int64, summary string) error {
	_, err := r.db.ExecContext(ctx, updateDaySummarySQL, summary, dayID)
	return err
}

func (r *Repo) UpdateItemPlace(ctx context.Context, itemID int64, placeID *string, placeName string, data domain.PlaceData) error {
	_, err := r.db.ExecContext(ctx, updateItemPlaceSQL, valStr(placeID), placeName, valJSON(data), itemID)
	return err
}

func (r *Repo) UpdateItemPlaceData(ctx context.Context, itemID int64, data domain.PlaceData) error {
	_, err := r.db.ExecContext(ctx, updateItemPlaceDataSQL, valJSON(data), itemID)
	return err
}

func (r *Repo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := r.db.ExecContext(ctx, deleteItemSQL, itemID)
	return err
}

// ReplaceTransfers swaps a day's whole transfer set in one transaction so
// readers never see a partially-updated day.
func (r *Repo) ReplaceTransfers(ctx context.Context, dayID int64, ts []domain.Transfer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteTransfersSQL, dayID); err != nil {
		return err
	}
	for i := range ts {
		res, err := tx.ExecContext(ctx, insertTransferSQL,
			dayID,
			ts[i].FromPlaceID,
			ts[i].ToPlaceID,
			ts[i].Mode,
			ts[i].EtaMin,
			valStr(ts[i].Polyline),
			valF64(ts[i].DistanceKm),
		)
		if err != nil {
			return err
		}
		ts[i].DayID = dayID
		ts[i].ID, _ = res.LastInsertId()
	}
	return tx.Commit()
}

func (r *Repo) InsertHotel(ctx context.Context, h *domain.Hotel) error {
	var lat, lng any
	if h.Geo != nil {
		lat, lng = h.Geo.Lat, h.Geo.Lng
	}
	res, err := r.db.ExecContext(ctx, insertHotelSQL,
		h.TripID,
		h.PlaceID,
		h.Name,
		valStr(h.Address),
		lat, lng,
		valF64(h.Rating),
		valInt(h.RatingsTotal),
		valInt(h.PriceLevel),
		valStr(h.Phone),
		valStr(h.Website),
		valJSON(h.Photos),
	)
	if err != nil {
		return err
	}
	h.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListHotels(ctx context.Context, tripID string) ([]domain.Hotel, error) {
	rows, err := r.db.QueryContext(ctx, listHotelsSQL, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		var address, phone, website, reason sql.NullString
		var lat, lng, rating, score sql.NullFloat64
		var ratingsTotal, priceLevel sql.NullInt64
		var photosJSON, distancesJSON []byte

		if err := rows.Scan(
			&h.ID, &h.TripID, &h.PlaceID, &h.Name, &address, &lat, &lng,
			&rating, &ratingsTotal, &priceLevel, &phone, &website,
			&photosJSON, &h.IsSelected, &score, &reason, &distancesJSON,
		); err != nil {
			return nil, err
		}
		if address.Valid {
			s := address.String
			h.Address = &s
		}
		if lat.Valid && lng.Valid {
			h.Geo = &domain.LatLng{Lat: lat.Float64, Lng: lng.Float64}
		}
		if rating.Valid {
			f := rating.Float64
			h.Rating = &f
		}
		if ratingsTotal.Valid {
			n := int(ratingsTotal.Int64)
			h.RatingsTotal = &n
		}
		if priceLevel.Valid {
			n := int(priceLevel.Int64)
			h.PriceLevel = &n
		}
		if phone.Valid {
			s := phone.String
			h.Phone = &s
		}
		if website.Valid {
			s := website.String
			h.Website = &s
		}
		if score.Valid {
			f := score.Float64
			h.Score = &f
		}
		if reason.Valid {
			s := reason.String
			h.Reason = &s
		}
		_ = json.Unmarshal(photosJSON, &h.Photos)
		_ = json.Unmarshal(distancesJSON, &h.DistanceToDayCentroid)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateHotelScore(ctx context.Context, hotelID int64, score float64, reason string, distances map[string]int) error {
	_, err := r.db.ExecContext(ctx, updateHotelScoreSQL, score, reason, valJSON(distances), hotelID)
	return err
}

// SetSelectedHotel flips selection atomically: everything off, then exactly
// one on.
func (r *Repo) SetSelectedHotel(ctx context.Context, tripID string, hotelID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deselectHotelsSQL, tripID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, selectHotelSQL, hotelID, tripID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

func (r *Repo) listDays(ctx context.Context, tripID string) ([]domain.TripDay, error) {
	rows, err := r.db.QueryContext(ctx, listDaysSQL, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TripDay
	for rows.Next() {
		var d domain.TripDay
		var date time.Time
		var summary sql.NullString
		if err := rows.Scan(&d.ID, &d.TripID, &d.DayNumber, &date, &d.City, &d.TZID, &summary); err != nil {
			return nil, err
		}
		d.Date = date
		if summary.Valid {
			s := summary.String
			d.Summary = &s
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) listItems(ctx context.Context, dayID int64) ([]domain.TimelineItem, error) {
	rows, err := r.db.QueryContext(ctx, listItemsSQL, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimelineItem
	for rows.Next() {
		var it domain.TimelineItem
		var mealType, placeID sql.NullString
		var placeDataJSON []byte
		if err := rows.Scan(
			&it.ID, &it.DayID, &it.Slot, &it.Kind, &mealType, &placeID, &it.PlaceName,
			&it.Duration[0], &it.Duration[1], &it.DurationSource, &placeDataJSON, &it.OrderIndex,
		); err != nil {
			return nil, err
		}
		if mealType.Valid {
			s := mealType.String
			it.MealType = &s
		}
		if placeID.Valid {
			s := placeID.String
			it.PlaceID = &s
		}
		_ = json.Unmarshal(placeDataJSON, &it.PlaceData)
		if it.Alternatives, err = r.listAlternatives(ctx, it.ID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) listAlternatives(ctx context.Context, itemID int64) ([]domain.Alternative, error) {
	rows, err := r.db.QueryContext(ctx, listAlternativesSQL, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alternative
	for rows.Next() {
		var a domain.Alternative
		var rating sql.NullFloat64
		var ratingsTotal sql.NullInt64
		var address sql.NullString
		if err := rows.Scan(&a.ID, &a.ItemID, &a.PlaceID, &a.PlaceName, &a.OrderIndex, &rating, &ratingsTotal, &address); err != nil {
			return nil, err
		}
		if rating.Valid {
			f := rating.Float64
			a.Rating = &f
		}
		if ratingsTotal.Valid {
			n := int(ratingsTotal.Int64)
			a.RatingsTotal = &n
		}
		if address.Valid {
			s := address.String
			a.Address = &s
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) listTransfers(ctx context.Context, dayID int64) ([]domain.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, listTransfersSQL, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var polyline sql.NullString
		var distanceKm sql.NullFloat64
		if err := rows.Scan(&t.ID, &t.DayID, &t.FromPlaceID, &t.ToPlaceID, &t.Mode, &t.EtaMin, &polyline, &distanceKm); err != nil {
			return nil, err
		}
		if polyline.Valid {
			s := polyline.String
			t.Polyline = &s
		}
		if distanceKm.Valid {
			f := distanceKm.Float64
			t.DistanceKm = &f
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
