// Package stats is the read side: aggregate views over patients and
// diagnostics. It never mutates and never audits.
package stats

import (
	"time"

	"github.com/google/uuid"
)

// Query bounds an aggregation. Nil fields mean unbounded; End is exclusive.
type Query struct {
	Start       *time.Time
	End         *time.Time
	ClinicianID *uuid.UUID
}

// Summary is the dashboard payload: headline counts, the stage histogram
// with every stage F0..F4 present, and the monthly series for the trailing
// six months.
type Summary struct {
	TotalPatients     int          `json:"total_patients"`
	TotalDiagnostics  int          `json:"total_diagnostics"`
	StageDistribution map[int]int  `json:"stage_distribution"`
	Monthly           []MonthCount `json:"diagnostics_per_month"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// MonthBucket is a raw aggregation row keyed by calendar month number.
type MonthBucket struct {
	Month int
	Count int
}

// ClinicianStats is one row of the per-clinician rollup. Clinicians with no
// patients or diagnostics still appear with zero counts.
type ClinicianStats struct {
	ClinicianID     uuid.UUID `json:"clinician_id"`
	Name            string    `json:"name"`
	PatientCount    int       `json:"patient_count"`
	DiagnosticCount int       `json:"diagnostic_count"`
}

// ModelStats summarizes one model's output quality. HighConfidence counts
// diagnostics with confidence of at least 0.8.
type ModelStats struct {
	ModelName        string  `json:"model_name"`
	TotalDiagnostics int     `json:"total_diagnostics"`
	AvgConfidence    float64 `json:"avg_confidence"`
	HighConfidence   int     `json:"high_confidence"`
}
