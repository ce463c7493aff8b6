package diagnostic

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibrose/fibrose/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, d *Diagnostic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnostic, error)
	// List returns diagnostics visible to the scope, newest first.
	List(ctx context.Context, scope auth.Scope, filters Filters, limit, skip int) ([]*Diagnostic, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByPatient removes every diagnostic of the patient and returns
	// the image locators of the removed rows.
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) ([]string, error)
}
