package app

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"tripsmith/internal/domain"
)

// Cached entries carry an explicit expires_at alongside the backend TTL;
// an entry past its timestamp is treated as absent even if the backend
// still holds it.

type routeEntry struct {
	EtaMin    int       `json:"eta_min"`
	Polyline  string    `json:"polyline,omitempty"`
	Version   int       `json:"version"`
	ExpiresAt time.Time `json:"expires_at"`
}

type durationEntry struct {
	DurationMin domain.DurationRange `json:"duration_min"`
	Confidence  float64              `json:"confidence"`
	Assumptions []string             `json:"assumptions,omitempty"`
	Risks       []string             `json:"risks,omitempty"`
	Version     int                  `json:"version"`
	ExpiresAt   time.Time            `json:"expires_at"`
}

type placeEntry struct {
	Details   domain.PlaceDetails `json:"details"`
	Version   int                 `json:"version"`
	ExpiresAt time.Time           `json:"expires_at"`
}

type expirable interface {
	expiresAt() time.Time
}

func (e routeEntry) expiresAt() time.Time    { return e.ExpiresAt }
func (e durationEntry) expiresAt() time.Time { return e.ExpiresAt }
func (e placeEntry) expiresAt() time.Time    { return e.ExpiresAt }

// cacheGet reads and expiry-checks one entry. Errors from the backend are
// swallowed: a broken cache degrades to a miss, never to a failed call.
func cacheGet[T expirable](ctx context.Context, c domain.Cache, key string) (T, bool) {
	var e T
	if c == nil {
		return e, false
	}
	ok, err := c.Get(ctx, key, &e)
	if err != nil || !ok {
		return e, false
	}
	if !e.expiresAt().After(time.Now()) {
		return e, false
	}
	return e, true
}

func cachePut(ctx context.Context, c domain.Cache, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	_ = c.Set(ctx, key, v, ttl)
}

// callCounts tracks provider/model call telemetry for one planner run.
// Fields are atomic because per-item work inside a step may fan out.
type callCounts struct {
	maps      atomic.Int64
	gpt       atomic.Int64
	matrix    atomic.Int64
	cacheHits atomic.Int64
}

func (c *callCounts) snapshot() (domain.CallCounts, domain.GenerationDebug) {
	return domain.CallCounts{
			MapsCalls:   int(c.maps.Load()),
			GPTCalls:    int(c.gpt.Load()),
			MatrixCalls: int(c.matrix.Load()),
		}, domain.GenerationDebug{
			CacheHits: int(c.cacheHits.Load()),
			Version:   1,
		}
}

// stripCodeFence removes a surrounding markdown ```json fence, which models
// add despite instructions to return bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
