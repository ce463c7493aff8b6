// Package diagnostic owns fibrosis diagnostic records: an image submitted
// for a patient, the model's staging result, and the clinician who ran it.
// Rows are immutable after creation; correction means delete and re-run.
package diagnostic

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MinStage and MaxStage bound the METAVIR fibrosis scale F0..F4.
	MinStage = 0
	MaxStage = 4
)

type Diagnostic struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	ClinicianID  uuid.UUID `db:"clinician_id" json:"clinician_id"`
	ModelName    string    `db:"model_name" json:"model_name"`
	Stage        int       `db:"stage" json:"stage"`
	Confidence   float64   `db:"confidence" json:"confidence"`
	ImageLocator string    `db:"image_locator" json:"-"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CreateInput carries the client-settable fields of a diagnostic run. Stage
// and confidence come from the predictor, never from the client.
type CreateInput struct {
	PatientID uuid.UUID
	ModelName string
	Notes     *string
	Image     []byte
	ImageExt  string
}

// Filters narrows diagnostic listings. Nil fields match everything.
type Filters struct {
	PatientID *uuid.UUID
	Stage     *int
}
