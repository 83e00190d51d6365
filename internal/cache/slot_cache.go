package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth-api/internal/availability"
)

// SlotCache holds computed open-slot listings per (doctor, day) in Redis.
// Every method is best effort: a Redis failure degrades to a recompute on
// the read path, never to a request error.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *SlotCache {
	return &SlotCache{client: client, ttl: ttl, log: log}
}

func slotKey(doctorID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("slots:%s:%s", doctorID.String(), day.Format("2006-01-02"))
}

func (c *SlotCache) GetDaySlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, bool) {
	raw, err := c.client.Get(ctx, slotKey(doctorID, day)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("slot cache get")
		}
		return nil, false
	}

	var slots []availability.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.log.Warn().Err(err).Msg("slot cache decode")
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetDaySlots(ctx context.Context, doctorID uuid.UUID, day time.Time, slots []availability.Slot) {
	if slots == nil {
		slots = []availability.Slot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		c.log.Warn().Err(err).Msg("slot cache encode")
		return
	}
	if err := c.client.Set(ctx, slotKey(doctorID, day), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("slot cache set")
	}
}

func (c *SlotCache) InvalidateDay(ctx context.Context, doctorID uuid.UUID, day time.Time) {
	if err := c.client.Del(ctx, slotKey(doctorID, day)).Err(); err != nil {
		c.log.Warn().Err(err).Msg("slot cache invalidate")
	}
}
