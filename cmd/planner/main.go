package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/ringsaturn/tzf"
	"github.com/rs/zerolog/log"

	"tripsmith/internal/adapters/googlemaps"
	"tripsmith/internal/adapters/llm"
	"tripsmith/internal/adapters/observability"
	redisad "tripsmith/internal/adapters/redis"
	"tripsmith/internal/app"
	"tripsmith/internal/shared"
	mysqlrepo "tripsmith/internal/storage/mysql"
)

// Runs one generation synchronously from the command line, useful for
// regenerating a trip without going through the API.
func main() {
	tripID := flag.String("trip", "", "trip id to generate")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if *tripID == "" {
		log.Fatal().Msg("-trip is required")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	places, err := googlemaps.New(cfg.MapsBase, cfg.MapsKey, cfg.MapsRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize maps client")
	}
	completer, err := llm.New(cfg.OpenAIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize completion client")
	}
	tzFinder, err := tzf.NewDefaultFinder()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize timezone finder")
	}

	durations := app.NewDurationService(completer, cache, cfg.CopyModel)
	logistics := app.NewLogisticsService(places, cache, repo)
	hotels := app.NewHotelRanker(places, cache, repo)
	presenter := app.NewPresenter(completer, repo, cfg.CopyModel)
	planner := app.NewPlannerService(repo, places, cache, completer,
		durations, logistics, hotels, presenter, tzFinder, cfg.PlannerModel, cfg.FanOut)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := planner.Generate(ctx, *tripID); err != nil {
		log.Fatal().Err(err).Str("trip", *tripID).Msg("generation failed")
	}
	log.Info().Str("trip", *tripID).Msg("generation ok")
}
