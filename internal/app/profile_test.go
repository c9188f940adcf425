package app

import (
	"testing"
	"time"

	"tripsmith/internal/domain"
)

func TestSeasonOf(t *testing.T) {
	cases := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"},
		{time.February, "winter"},
		{time.March, "spring"},
		{time.May, "spring"},
		{time.June, "summer"},
		{time.August, "summer"},
		{time.September, "fall"},
		{time.November, "fall"},
		{time.December, "winter"},
	}
	for _, c := range cases {
		got := seasonOf(time.Date(2025, c.month, 15, 0, 0, 0, 0, time.UTC))
		if got != c.want {
			t.Errorf("seasonOf(%s) = %s, want %s", c.month, got, c.want)
		}
	}
}

func TestProfileKey_SortsInterests(t *testing.T) {
	a := profileKey(domain.PaceRelaxed, []string{"museums", "food", "beaches"})
	b := profileKey(domain.PaceRelaxed, []string{"beaches", "museums", "food"})
	if a != b {
		t.Fatalf("profile keys differ for same interest set: %q vs %q", a, b)
	}
	if a != "relaxed_beaches_food_museums" {
		t.Fatalf("profileKey = %q", a)
	}
}

func TestProfileKey_DefaultsPace(t *testing.T) {
	if got := profileKey("", nil); got != "moderate_" {
		t.Fatalf("profileKey = %q", got)
	}
}

func TestBucketForSlot(t *testing.T) {
	cases := map[domain.Slot]string{
		domain.SlotMorning:   "08-12",
		domain.SlotAfternoon: "12-16",
		domain.SlotEvening:   "16-20",
		domain.SlotNight:     "20-08",
		domain.Slot("other"): "20-08",
	}
	for slot, want := range cases {
		if got := bucketForSlot(slot); got != want {
			t.Errorf("bucketForSlot(%s) = %s, want %s", slot, got, want)
		}
	}
}
