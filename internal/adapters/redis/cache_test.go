package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "tripsmith/internal/adapters/redis"
)

type routePayload struct {
	EtaMin   int    `json:"eta_min"`
	Polyline string `json:"polyline"`
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	want := routePayload{EtaMin: 17, Polyline: "abc~def"}
	if err := c.Set(ctx, "v1:route:a:b:driving:08-12", want, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got routePayload
	ok, err := c.Get(ctx, "v1:route:a:b:driving:08-12", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got != want {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCache_MissAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "v1:place:x", routePayload{EtaMin: 1}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	var got routePayload
	ok, err := c.Get(ctx, "v1:place:x", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expired entry must be a miss")
	}
}

func TestCache_LastWriteWins(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	_ = c.Set(ctx, "k", routePayload{EtaMin: 1}, time.Hour)
	_ = c.Set(ctx, "k", routePayload{EtaMin: 2}, time.Hour)

	var got routePayload
	if ok, _ := c.Get(ctx, "k", &got); !ok || got.EtaMin != 2 {
		t.Fatalf("expected last write to win, got %+v", got)
	}
}
