// Package clinician owns the user records backing the authenticated
// principal and the per-clinician statistics rollup.
package clinician

import (
	"time"

	"github.com/google/uuid"

	"github.com/fibrose/fibrose/internal/platform/auth"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
