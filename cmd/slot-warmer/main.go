package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/booking"
	"github.com/carelink/telehealth-api/internal/cache"
	"github.com/carelink/telehealth-api/internal/config"
	"github.com/carelink/telehealth-api/internal/db"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

// slot-warmer precomputes the next few days of open slots for every verified
// doctor so the availability endpoint serves from cache.
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "slot-warmer").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WarmerInterval).
		Int("warm_days", cfg.WarmDays).
		Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := db.ConnectPostgres(rootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection")
	}
	defer pgPool.Close()

	rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}()

	doctorRepo := doctor.NewPgRepository(pgPool)
	patientRepo := patient.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	slotCache := cache.NewSlotCache(rdb, cfg.SlotCacheTTL, log)
	svc := booking.NewService(bookingRepo, doctorRepo, patientRepo, slotCache, log)

	runOnce(rootCtx, log, svc, doctorRepo, cfg.WarmDays)

	ticker := time.NewTicker(cfg.WarmerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping slot warmer")
			return
		case <-ticker.C:
			runOnce(rootCtx, log, svc, doctorRepo, cfg.WarmDays)
		}
	}
}

func runOnce(ctx context.Context, log zerolog.Logger, svc *booking.Service, doctors doctor.Repository, warmDays int) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()

	verified, err := doctors.ListVerified(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("listing verified doctors")
		return
	}

	var warmed, failed int
	today := time.Now()
	for _, d := range verified {
		for i := 0; i < warmDays; i++ {
			day := today.AddDate(0, 0, i)
			if err := svc.WarmDay(runCtx, d.ID, day); err != nil {
				failed++
				log.Warn().Err(err).
					Str("doctor_id", d.ID.String()).
					Str("day", day.Format("2006-01-02")).
					Msg("warming day")
				continue
			}
			warmed++
		}
	}

	log.Info().
		Int("doctors", len(verified)).
		Int("warmed", warmed).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("warm run complete")
}
