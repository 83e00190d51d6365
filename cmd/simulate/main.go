package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// simulate drives concurrent booking attempts against a running API server to
// observe slot contention: many patients race for the same slot and exactly
// one should win.

type simConfig struct {
	baseURL  string
	workers  int
	password string
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID uuid.UUID `json:"id"`
	} `json:"user"`
}

type doctorListResponse struct {
	Doctors []struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"doctors"`
}

type slotsResponse struct {
	Slots []struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"slots"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg := simConfig{
		baseURL:  getEnv("API_BASE_URL", "http://localhost:8080"),
		workers:  getEnvInt("SIM_WORKERS", 16),
		password: getEnv("SIM_PASSWORD", "password123"),
	}

	client := &http.Client{Timeout: 10 * time.Second}

	// Pick a doctor from the public directory.
	var dl doctorListResponse
	if err := getJSON(client, cfg.baseURL+"/doctors?limit=1", &dl); err != nil {
		log.Fatal().Err(err).Msg("listing doctors")
	}
	if len(dl.Doctors) == 0 {
		log.Fatal().Msg("no doctors found, run the seed first")
	}
	doc := dl.Doctors[0]
	log.Info().Str("doctor", doc.Name).Str("id", doc.ID.String()).Msg("target doctor")

	// Find a bookable slot tomorrow.
	day := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	var sl slotsResponse
	if err := getJSON(client, fmt.Sprintf("%s/doctors/%s/slots?date=%s", cfg.baseURL, doc.ID, day), &sl); err != nil {
		log.Fatal().Err(err).Msg("fetching slots")
	}
	if len(sl.Slots) == 0 {
		log.Fatal().Str("day", day).Msg("no open slots for target day")
	}
	slot := sl.Slots[0]
	log.Info().Time("slot_start", slot.Start).Int("workers", cfg.workers).Msg("racing for slot")

	// Log in one seeded patient per worker.
	tokens := make([]string, cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		email := fmt.Sprintf("patient%d@example.com", i+1)
		var lr loginResponse
		err := postJSON(client, cfg.baseURL+"/auth/patient/login", map[string]string{
			"email":    email,
			"password": cfg.password,
		}, "", &lr)
		if err != nil {
			log.Fatal().Err(err).Str("email", email).Msg("patient login")
		}
		tokens[i] = lr.Token
	}

	var wins, conflicts, errors int64
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < cfg.workers; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()

			body := map[string]any{
				"doctorId":         doc.ID,
				"slotStart":        slot.Start,
				"slotEnd":          slot.End,
				"consultationType": "video",
				"symptoms":         "simulated contention run",
			}
			status, err := postStatus(client, cfg.baseURL+"/appointments", body, token)
			switch {
			case err != nil:
				atomic.AddInt64(&errors, 1)
			case status == http.StatusCreated:
				atomic.AddInt64(&wins, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&conflicts, 1)
			default:
				atomic.AddInt64(&errors, 1)
			}
		}(tokens[i])
	}
	wg.Wait()

	log.Info().
		Int64("wins", wins).
		Int64("conflicts", conflicts).
		Int64("errors", errors).
		Dur("duration", time.Since(start)).
		Msg("race complete")

	if wins != 1 {
		log.Error().Int64("wins", wins).Msg("expected exactly one winner")
		os.Exit(1)
	}
	log.Info().Msg("exactly one booking won the slot")
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, b)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(client *http.Client, url string, body any, token string, out any) error {
	status, err := doPost(client, url, body, token, out)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("POST %s: status %d", url, status)
	}
	return nil
}

func postStatus(client *http.Client, url string, body any, token string) (int, error) {
	return doPost(client, url, body, token, nil)
}

func doPost(client *http.Client, url string, body any, token string, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
