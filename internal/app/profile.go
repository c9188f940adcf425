package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tripsmith/internal/domain"
)

// season buckets follow the meteorological calendar: Mar-May spring,
// Jun-Aug summer, Sep-Nov fall, Dec-Feb winter.
func seasonOf(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.March && m <= time.May:
		return "spring"
	case m >= time.June && m <= time.August:
		return "summer"
	case m >= time.September && m <= time.November:
		return "fall"
	default:
		return "winter"
	}
}

// profileKey is a deterministic digest of the traveler profile: pace plus
// the interests in sorted order.
func profileKey(pace domain.Pace, interests []string) string {
	if pace == "" {
		pace = domain.PaceModerate
	}
	sorted := append([]string(nil), interests...)
	sort.Strings(sorted)
	return string(pace) + "_" + strings.Join(sorted, "_")
}

// bucketForSlot maps a departure slot onto the route-cache time bucket.
func bucketForSlot(slot domain.Slot) string {
	switch slot {
	case domain.SlotMorning:
		return "08-12"
	case domain.SlotAfternoon:
		return "12-16"
	case domain.SlotEvening:
		return "16-20"
	default:
		return "20-08"
	}
}

const (
	cacheSchemaVersion = 1

	placeDetailsTTL = 24 * time.Hour
	routeTTL        = 7 * 24 * time.Hour
	durationTTL     = 30 * 24 * time.Hour
)

func placeKey(placeID string) string {
	return fmt.Sprintf("v%d:place:%s", cacheSchemaVersion, placeID)
}

func routeKey(origin, dest, mode, bucket string) string {
	return fmt.Sprintf("v%d:route:%s:%s:%s:%s", cacheSchemaVersion, origin, dest, mode, bucket)
}

func durationKey(placeID, profile, season string) string {
	return fmt.Sprintf("v%d:duration:%s:%s:%s", cacheSchemaVersion, placeID, profile, season)
}

// centroidKey builds a synthetic destination id for hotel-to-centroid route
// lookups, which have no real destination place id.
func centroidKey(c domain.LatLng) string {
	return fmt.Sprintf("centroid:%.4f,%.4f", c.Lat, c.Lng)
}
