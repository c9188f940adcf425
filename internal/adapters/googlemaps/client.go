package googlemaps

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tripsmith/internal/adapters/observability"
	"tripsmith/internal/domain"
)

// Client talks to the Google Maps web services (Places text search, Place
// Details, Distance Matrix, Directions) with client-side rate limiting and
// bounded retries.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("maps API key is required")
	}
	if base == "" {
		base = "https://maps.googleapis.com"
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: base,
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

var (
	ErrNoResults = errors.New("maps: no results")
	ErrDenied    = errors.New("maps: request denied")
	ErrOverLimit = errors.New("maps: over query limit")
)

// ---- wire shapes ----

type wireGeometry struct {
	Location domain.LatLng `json:"location"`
}

type wirePlace struct {
	PlaceID          string       `json:"place_id"`
	Name             string       `json:"name"`
	Types            []string     `json:"types"`
	Rating           *float64     `json:"rating"`
	UserRatingsTotal *int         `json:"user_ratings_total"`
	PriceLevel       *int         `json:"price_level"`
	FormattedAddress *string      `json:"formatted_address"`
	Geometry         *wireGeometry `json:"geometry"`
	Phone            *string      `json:"formatted_phone_number"`
	Website          *string      `json:"website"`
	Photos           []wirePhoto  `json:"photos"`
}

type wirePhoto struct {
	PhotoReference   string   `json:"photo_reference"`
	HTMLAttributions []string `json:"html_attributions"`
}

type searchResponse struct {
	Status  string      `json:"status"`
	Results []wirePlace `json:"results"`
}

type detailsResponse struct {
	Status string    `json:"status"`
	Result wirePlace `json:"result"`
}

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// ---- Public API ----

func (c *Client) SearchPlaces(ctx context.Context, query string) ([]domain.PlaceSummary, error) {
	u := fmt.Sprintf("%s/maps/api/place/textsearch/json?query=%s&key=%s",
		c.base, url.QueryEscape(query), c.key)

	var resp searchResponse
	if err := c.get(ctx, "textsearch", u, &resp); err != nil {
		return nil, err
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, err
	}
	out := make([]domain.PlaceSummary, 0, len(resp.Results))
	for _, p := range resp.Results {
		out = append(out, mapSummary(p))
	}
	return out, nil
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string, fields []string) (*domain.PlaceDetails, error) {
	u := fmt.Sprintf("%s/maps/api/place/details/json?place_id=%s&fields=%s&key=%s",
		c.base, url.QueryEscape(placeID), url.QueryEscape(strings.Join(fields, ",")), c.key)

	var resp detailsResponse
	if err := c.get(ctx, "details", u, &resp); err != nil {
		return nil, err
	}
	if err := statusErr(resp.Status); err != nil {
		return nil, err
	}
	d := c.mapDetails(resp.Result)
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	return &d, nil
}

func (c *Client) RouteDuration(ctx context.Context, origin, dest domain.LatLng, mode string) (int, error) {
	u := fmt.Sprintf("%s/maps/api/distancematrix/json?origins=%f,%f&destinations=%f,%f&mode=%s&key=%s",
		c.base, origin.Lat, origin.Lng, dest.Lat, dest.Lng, url.QueryEscape(mode), c.key)

	var resp matrixResponse
	if err := c.get(ctx, "distancematrix", u, &resp); err != nil {
		return 0, err
	}
	if err := statusErr(resp.Status); err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoResults
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %s", ErrNoResults, el.Status)
	}
	// round up to whole minutes
	return (el.Duration.Value + 59) / 60, nil
}

func (c *Client) RoutePath(ctx context.Context, origin, dest domain.LatLng, mode string) (string, error) {
	u := fmt.Sprintf("%s/maps/api/directions/json?origin=%f,%f&destination=%f,%f&mode=%s&key=%s",
		c.base, origin.Lat, origin.Lng, dest.Lat, dest.Lng, url.QueryEscape(mode), c.key)

	var resp directionsResponse
	if err := c.get(ctx, "directions", u, &resp); err != nil {
		return "", err
	}
	if err := statusErr(resp.Status); err != nil {
		return "", err
	}
	if len(resp.Routes) == 0 {
		return "", ErrNoResults
	}
	return resp.Routes[0].OverviewPolyline.Points, nil
}

// ---- mapping ----

func mapSummary(p wirePlace) domain.PlaceSummary {
	s := domain.PlaceSummary{
		PlaceID:      p.PlaceID,
		Name:         p.Name,
		Types:        p.Types,
		Rating:       p.Rating,
		RatingsTotal: p.UserRatingsTotal,
		PriceLevel:   p.PriceLevel,
		Address:      p.FormattedAddress,
	}
	if p.Geometry != nil {
		loc := p.Geometry.Location
		s.Geo = &loc
	}
	return s
}

func (c *Client) mapDetails(p wirePlace) domain.PlaceDetails {
	d := domain.PlaceDetails{
		PlaceID:      p.PlaceID,
		Name:         p.Name,
		Address:      p.FormattedAddress,
		Rating:       p.Rating,
		RatingsTotal: p.UserRatingsTotal,
		PriceLevel:   p.PriceLevel,
		Phone:        p.Phone,
		Website:      p.Website,
	}
	if p.Geometry != nil {
		loc := p.Geometry.Location
		d.Geo = &loc
	}
	// keep at most three photos, as served to clients
	for i, ph := range p.Photos {
		if i >= 3 {
			break
		}
		attr := "Google"
		if len(ph.HTMLAttributions) > 0 {
			attr = ph.HTMLAttributions[0]
		}
		d.Photos = append(d.Photos, domain.Photo{
			URL:         fmt.Sprintf("%s/maps/api/place/photo?maxwidth=800&photo_reference=%s&key=%s", c.base, url.QueryEscape(ph.PhotoReference), c.key),
			Attribution: attr,
		})
	}
	return d
}

func statusErr(status string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS":
		return ErrNoResults
	case "REQUEST_DENIED":
		return ErrDenied
	case "OVER_QUERY_LIMIT":
		return ErrOverLimit
	default:
		return fmt.Errorf("maps: status %s", status)
	}
}

// ---- Internals ----

// get performs a GET with client-side rate limiting, retries, and JSON
// decode into out. Retries on 429 and transient 5xx, honoring Retry-After
// when provided.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "tripsmith/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.ObserveExternal("maps", endpoint, 0, time.Since(start))
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("maps", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return domain.ErrNotFound

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("maps: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("maps: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms,
// 800ms...), with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
