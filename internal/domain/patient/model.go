// Package patient owns patient records and their tenant scoping. A patient
// belongs to the clinician who created it; ownership never transfers.
package patient

import (
	"time"

	"github.com/google/uuid"
)

type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

type Patient struct {
	ID                uuid.UUID `db:"id" json:"id"`
	LastName          string    `db:"last_name" json:"last_name"`
	FirstName         string    `db:"first_name" json:"first_name"`
	BirthDate         time.Time `db:"birth_date" json:"birth_date"`
	Sex               Sex       `db:"sex" json:"sex"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	Email             *string   `db:"email" json:"email,omitempty"`
	Address           *string   `db:"address" json:"address,omitempty"`
	OwningClinicianID uuid.UUID `db:"owning_clinician_id" json:"owning_clinician_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CreateInput carries the client-settable fields of a new patient. The
// owning clinician is always the caller, never the payload.
type CreateInput struct {
	LastName  string    `json:"last_name"`
	FirstName string    `json:"first_name"`
	BirthDate time.Time `json:"birth_date"`
	Sex       Sex       `json:"sex"`
	Phone     *string   `json:"phone"`
	Email     *string   `json:"email"`
	Address   *string   `json:"address"`
}

// UpdateInput applies partial updates: nil fields are left unchanged.
type UpdateInput struct {
	LastName  *string    `json:"last_name"`
	FirstName *string    `json:"first_name"`
	BirthDate *time.Time `json:"birth_date"`
	Sex       *Sex       `json:"sex"`
	Phone     *string    `json:"phone"`
	Email     *string    `json:"email"`
	Address   *string    `json:"address"`
}
