package booking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewRoomID returns a fresh opaque handle for the consultation session,
// e.g. "room_1756500000000_9f2c41aa". The handle carries no meaning beyond
// uniqueness; the video/voice provider resolves it.
func NewRoomID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("room_%d", time.Now().UnixMilli())
	}
	return fmt.Sprintf("room_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}
