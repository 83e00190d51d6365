package patient

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
