// Package audit keeps the append-only trail of mutating actions. Entries are
// written in the same transaction as the mutation they record and are never
// updated or deleted.
package audit

import (
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PrincipalID   *uuid.UUID `db:"principal_id" json:"principal_id,omitempty"`
	Action        string     `db:"action" json:"action"`
	EntityType    string     `db:"entity_type" json:"entity_type,omitempty"`
	EntityID      *uuid.UUID `db:"entity_id" json:"entity_id,omitempty"`
	Detail        string     `db:"detail" json:"detail,omitempty"`
	SourceAddress string     `db:"source_address" json:"source_address,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

const (
	ActionPatientCreate    = "patient.create"
	ActionPatientUpdate    = "patient.update"
	ActionPatientDelete    = "patient.delete"
	ActionDiagnosticCreate = "diagnostic.create"
	ActionDiagnosticDelete = "diagnostic.delete"
)

const (
	EntityPatient    = "patient"
	EntityDiagnostic = "diagnostic"
)

// Filters narrows the audit listing.
type Filters struct {
	Action      string
	EntityType  string
	PrincipalID *uuid.UUID
}
