package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelink/telehealth-api/internal/availability"
	"github.com/carelink/telehealth-api/internal/db"
	"github.com/carelink/telehealth-api/internal/doctor"
	"github.com/carelink/telehealth-api/internal/patient"
)

const (
	doctorCount  = 25
	patientCount = 200
	seedPassword = "password123"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	pool, err := db.ConnectPostgres(context.Background(), dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}

	doctors := doctor.NewPgRepository(pool)
	patients := patient.NewPgRepository(pool)

	if err := seedDoctors(context.Background(), log, doctors, string(hash)); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), log, patients, string(hash)); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

func seedDoctors(ctx context.Context, log zerolog.Logger, repo doctor.Repository, hash string) error {
	log.Info().Int("count", doctorCount).Msg("seeding doctors")

	today := time.Now().Truncate(24 * time.Hour)
	for i := 0; i < doctorCount; i++ {
		spec := doctor.Specializations[gofakeit.Number(0, len(doctor.Specializations)-1)]
		d := &doctor.Doctor{
			Name:            "Dr. " + gofakeit.Name(),
			Email:           fmt.Sprintf("doctor%d@carelink.dev", i+1),
			PasswordHash:    hash,
			Specialization:  spec,
			Categories:      []string{spec},
			Qualification:   "MBBS, MD",
			ExperienceYrs:   gofakeit.Number(2, 30),
			About:           gofakeit.Sentence(12),
			ConsultationFee: gofakeit.Number(3, 20) * 100,
			Hospital: doctor.Hospital{
				Name:    gofakeit.Company() + " Hospital",
				Address: gofakeit.Street(),
				City:    gofakeit.City(),
			},
			Availability: availability.Config{
				StartDate:        today,
				EndDate:          today.AddDate(0, 3, 0),
				ExcludedWeekdays: []int{0},
				DailyWindows: []availability.Window{
					{Start: "09:00", End: "12:00"},
					{Start: "14:00", End: "18:00"},
				},
				SlotDurationMinutes: 30,
			},
			IsVerified: true,
			IsActive:   true,
		}
		if err := repo.Create(ctx, d); err != nil {
			return err
		}
	}

	log.Info().Msg("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, log zerolog.Logger, repo patient.Repository, hash string) error {
	log.Info().Int("count", patientCount).Msg("seeding patients")

	for i := 0; i < patientCount; i++ {
		p := &patient.Patient{
			Name:         gofakeit.Name(),
			Email:        fmt.Sprintf("patient%d@example.com", i+1),
			PasswordHash: hash,
		}
		if err := repo.Create(ctx, p); err != nil {
			return err
		}
	}

	log.Info().Msg("patients seeded")
	return nil
}
