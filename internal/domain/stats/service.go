package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
)

const (
	dateLayout = "2006-01-02"
	// monthlyWindow is the trailing window of the monthly series.
	monthlyWindow = 180 * 24 * time.Hour
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// parseQuery turns the raw query strings into bounds. The end date is
// inclusive as written by the caller, so the bound becomes the next day,
// exclusive.
func parseQuery(rawStart, rawEnd string) (Query, error) {
	var q Query
	if rawStart != "" {
		start, err := time.Parse(dateLayout, rawStart)
		if err != nil {
			return q, fmt.Errorf("start_date must be YYYY-MM-DD: %w", apperrors.ErrValidation)
		}
		q.Start = &start
	}
	if rawEnd != "" {
		end, err := time.Parse(dateLayout, rawEnd)
		if err != nil {
			return q, fmt.Errorf("end_date must be YYYY-MM-DD: %w", apperrors.ErrValidation)
		}
		end = end.AddDate(0, 0, 1)
		q.End = &end
	}
	return q, nil
}

// resolveClinician applies the scope to an explicit clinician filter. A
// clinician-role caller is always pinned to their own id, whatever filter
// they pass; admin-tier callers may filter by any clinician or none.
func resolveClinician(p auth.Principal, explicit *uuid.UUID) *uuid.UUID {
	if p.Role == auth.RoleClinician {
		id := p.UserID
		return &id
	}
	return explicit
}

// Summary builds the dashboard aggregate: counts and the stage histogram
// over the optional date range, plus the monthly series for the trailing
// six months.
func (s *Service) Summary(ctx context.Context, rawStart, rawEnd string, clinicianID *uuid.UUID) (*Summary, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	q, err := parseQuery(rawStart, rawEnd)
	if err != nil {
		return nil, err
	}
	q.ClinicianID = resolveClinician(principal, clinicianID)

	patients, diagnostics, err := s.repo.Counts(ctx, q)
	if err != nil {
		return nil, err
	}

	rawDist, err := s.repo.StageDistribution(ctx, q)
	if err != nil {
		return nil, err
	}
	dist := map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0}
	for stage, count := range rawDist {
		dist[stage] = count
	}

	buckets, err := s.repo.Monthly(ctx, q, s.now().Add(-monthlyWindow))
	if err != nil {
		return nil, err
	}
	monthly := make([]MonthCount, 0, len(buckets))
	for _, b := range buckets {
		monthly = append(monthly, MonthCount{
			Month: time.Month(b.Month).String()[:3],
			Count: b.Count,
		})
	}

	return &Summary{
		TotalPatients:     patients,
		TotalDiagnostics:  diagnostics,
		StageDistribution: dist,
		Monthly:           monthly,
	}, nil
}

// PerClinician is the admin rollup. The handler gates the route; the
// service checks again so no other caller can reach it.
func (s *Service) PerClinician(ctx context.Context) ([]ClinicianStats, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	if !principal.Role.AdminTier() {
		return nil, fmt.Errorf("per-clinician stats are admin only: %w", apperrors.ErrForbidden)
	}
	return s.repo.PerClinician(ctx)
}

// Performance reports per-model aggregates, scoped to the caller for
// clinician-role users.
func (s *Service) Performance(ctx context.Context) ([]ModelStats, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	return s.repo.Performance(ctx, resolveClinician(principal, nil))
}
