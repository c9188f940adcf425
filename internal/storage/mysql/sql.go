package mysql

const insertTripSQL = `
INSERT INTO trips
  (id, user_id, run_id, title, status, visibility, locale)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const insertIntentSQL = `
INSERT INTO trip_intents
  (trip_id, destinations, start_date, end_date, travelers, budget_band,
   interests, dietary_restrictions, accessibility_needs, pace)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  destinations         = VALUES(destinations),
  start_date           = VALUES(start_date),
  end_date             = VALUES(end_date),
  travelers            = VALUES(travelers),
  budget_band          = VALUES(budget_band),
  interests            = VALUES(interests),
  dietary_restrictions = VALUES(dietary_restrictions),
  accessibility_needs  = VALUES(accessibility_needs),
  pace                 = VALUES(pace)
`

// Guarded transition: only a draft trip can enter generation, and the run
// token records which caller won.
const claimGenerationSQL = `
UPDATE trips SET status = 'generating', run_id = ?
WHERE id = ? AND status = 'draft'
`

const finishGenerationSQL = `
UPDATE trips SET status = 'active', sources = ?, debug = ?, notices = ?
WHERE id = ? AND status = 'generating'
`

const abortGenerationSQL = `
UPDATE trips SET status = 'draft'
WHERE id = ? AND status = 'generating'
`

const getTripSQL = `
SELECT
  t.id, t.user_id, t.run_id, t.title, t.status, t.visibility, t.locale,
  t.sources, t.debug, t.notices,
  i.destinations, i.start_date, i.end_date, i.travelers, i.budget_band,
  i.interests, i.dietary_restrictions, i.accessibility_needs, i.pace
FROM trips t
LEFT JOIN trip_intents i ON i.trip_id = t.id
WHERE t.id = ?
`

const insertDaySQL = `
INSERT INTO trip_days (trip_id, day_number, date, city, tzid, summary)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id      = LAST_INSERT_ID(id),
  date    = VALUES(date),
  city    = VALUES(city),
  tzid    = VALUES(tzid),
  summary = VALUES(summary)
`

const insertItemSQL = `
INSERT INTO trip_timeline_items
  (day_id, slot, kind, meal_type, place_id, place_name,
   duration_min, duration_max, duration_source, place_data, order_index)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id              = LAST_INSERT_ID(id),
  slot            = VALUES(slot),
  kind            = VALUES(kind),
  meal_type       = VALUES(meal_type),
  place_id        = VALUES(place_id),
  place_name      = VALUES(place_name),
  duration_min    = VALUES(duration_min),
  duration_max    = VALUES(duration_max),
  duration_source = VALUES(duration_source),
  place_data      = VALUES(place_data)
`

const insertAlternativeSQL = `
INSERT INTO trip_alternatives
  (item_id, place_id, place_name, order_index, rating, ratings_total, address)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const updateDaySummarySQL = `
UPDATE trip_days SET summary = ? WHERE id = ?
`

const updateItemPlaceSQL = `
UPDATE trip_timeline_items
SET place_id = ?, place_name = ?, place_data = ?
WHERE id = ?
`

const updateItemPlaceDataSQL = `
UPDATE trip_timeline_items SET place_data = ? WHERE id = ?
`

const deleteItemSQL = `
DELETE FROM trip_timeline_items WHERE id = ?
`

const listDaysSQL = `
SELECT id, trip_id, day_number, date, city, tzid, summary
FROM trip_days
WHERE trip_id = ?
ORDER BY day_number
`

const listItemsSQL = `
SELECT id, day_id, slot, kind, meal_type, place_id, place_name,
       duration_min, duration_max, duration_source, place_data, order_index
FROM trip_timeline_items
WHERE day_id = ?
ORDER BY order_index
`

const listAlternativesSQL = `
SELECT id, item_id, place_id, place_name, order_index, rating, ratings_total, address
FROM trip_alternatives
WHERE item_id = ?
ORDER BY order_index
`

const deleteTransfersSQL = `
DELETE FROM trip_transfers WHERE day_id = ?
`

const insertTransferSQL = `
INSERT INTO trip_transfers
  (day_id, from_place_id, to_place_id, mode, eta_min, polyline, distance_km)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const listTransfersSQL = `
SELECT id, day_id, from_place_id, to_place_id, mode, eta_min, polyline, distance_km
FROM trip_transfers
WHERE day_id = ?
ORDER BY id
`

const insertHotelSQL = `
INSERT INTO trip_hotels
  (trip_id, place_id, name, address, lat, lng, rating, ratings_total,
   price_level, phone, website, photos)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id            = LAST_INSERT_ID(id),
  name          = VALUES(name),
  address       = VALUES(address),
  lat           = VALUES(lat),
  lng           = VALUES(lng),
  rating        = VALUES(rating),
  ratings_total = VALUES(ratings_total),
  price_level   = VALUES(price_level),
  phone         = VALUES(phone),
  website       = VALUES(website),
  photos        = VALUES(photos)
`

const listHotelsSQL = `
SELECT id, trip_id, place_id, name, address, lat, lng, rating, ratings_total,
       price_level, phone, website, photos, is_selected, score, reason, distances
FROM trip_hotels
WHERE trip_id = ?
ORDER BY id
`

const updateHotelScoreSQL = `
UPDATE trip_hotels SET score = ?, reason = ?, distances = ? WHERE id = ?
`

const deselectHotelsSQL = `
UPDATE trip_hotels SET is_selected = 0 WHERE trip_id = ?
`

const selectHotelSQL = `
UPDATE trip_hotels SET is_selected = 1 WHERE id = ? AND trip_id = ?
`
