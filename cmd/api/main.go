package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/ringsaturn/tzf"
	"github.com/rs/zerolog/log"

	server "tripsmith/internal/adapters/http_server"
	"tripsmith/internal/adapters/googlemaps"
	"tripsmith/internal/adapters/llm"
	"tripsmith/internal/adapters/observability"
	redisad "tripsmith/internal/adapters/redis"
	"tripsmith/internal/app"
	"tripsmith/internal/shared"
	mysqlrepo "tripsmith/internal/storage/mysql"
)

func main() {
	_ = godotenv.Load()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
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
	intake := app.NewIntakeService(repo, completer, cfg.PlannerModel, cfg.SessionTTL)
	edits := app.NewEditService(repo, places, completer, cache, cfg.PlannerModel)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Repo:    repo,
		Intake:  intake,
		Planner: planner,
		Edits:   edits,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
