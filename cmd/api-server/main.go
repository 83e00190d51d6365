package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/api"
	"github.com/carelink/telehealth-api/internal/auth"
	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/cache"
	"github.com/carelink/telehealth-api/internal/config"
	"github.com/carelink/telehealth-api/internal/db"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

const version = "1.0.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := db.ConnectPostgres(rootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	doctorRepo := doctor.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	slotCache := cache.NewSlotCache(rdb, cfg.SlotCacheTTL, log)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	authSvc := auth.NewService(doctorRepo, patientRepo, issuer)
	doctorSvc := doctor.NewService(doctorRepo)
	bookingSvc := booking.NewService(bookingRepo, doctorRepo, patientRepo, slotCache, log)

	router := api.NewRouter(api.RouterConfig{
		Auth:     authSvc,
		Issuer:   issuer,
		Doctors:  doctorSvc,
		Bookings: bookingSvc,
		PgPool:   pgPool,
		Redis:    rdb,
		Env:      cfg.Env,
		Version:  version,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	log.Info().Msg("api-server stopped")
}
