package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the identity record this service touches: the
// tenant-binding field. Account management lives in the identity service.
type User struct {
	ID        string     `json:"id"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
