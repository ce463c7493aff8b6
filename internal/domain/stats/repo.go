package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Counts(ctx context.Context, q Query) (patients, diagnostics int, err error)
	StageDistribution(ctx context.Context, q Query) (map[int]int, error)
	// Monthly groups diagnostics created since the cutoff by calendar month
	// number, ordered by month.
	Monthly(ctx context.Context, q Query, since time.Time) ([]MonthBucket, error)
	PerClinician(ctx context.Context) ([]ClinicianStats, error)
	Performance(ctx context.Context, clinicianID *uuid.UUID) ([]ModelStats, error)
}
