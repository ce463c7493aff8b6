package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fibrose/fibrose/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// filterClause renders the query bounds for one table. ownerCol names the
// column holding the clinician id, which differs between patients and
// diagnostics.
func filterClause(q Query, ownerCol string, args []interface{}) (string, []interface{}) {
	var where []string
	if q.ClinicianID != nil {
		args = append(args, *q.ClinicianID)
		where = append(where, fmt.Sprintf("%s = $%d", ownerCol, len(args)))
	}
	if q.Start != nil {
		args = append(args, *q.Start)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.End != nil {
		args = append(args, *q.End)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

func (r *RepoPG) Counts(ctx context.Context, q Query) (int, int, error) {
	pWhere, pArgs := filterClause(q, "owning_clinician_id", nil)
	var patients int
	err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM patients %s", pWhere), pArgs...).Scan(&patients)
	if err != nil {
		return 0, 0, fmt.Errorf("count patients: %w", err)
	}

	dWhere, dArgs := filterClause(q, "clinician_id", nil)
	var diagnostics int
	err = r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM diagnostics %s", dWhere), dArgs...).Scan(&diagnostics)
	if err != nil {
		return 0, 0, fmt.Errorf("count diagnostics: %w", err)
	}
	return patients, diagnostics, nil
}

func (r *RepoPG) StageDistribution(ctx context.Context, q Query) (map[int]int, error) {
	where, args := filterClause(q, "clinician_id", nil)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf("SELECT stage, COUNT(*) FROM diagnostics %s GROUP BY stage", where), args...)
	if err != nil {
		return nil, fmt.Errorf("stage distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int)
	for rows.Next() {
		var stage, count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		dist[stage] = count
	}
	return dist, rows.Err()
}

func (r *RepoPG) Monthly(ctx context.Context, q Query, since time.Time) ([]MonthBucket, error) {
	args := []interface{}{since}
	where, args := filterClause(q, "clinician_id", args)
	if where == "" {
		where = "WHERE created_at >= $1"
	} else {
		where += " AND created_at >= $1"
	}

	query := fmt.Sprintf(`SELECT EXTRACT(MONTH FROM created_at)::int AS month, COUNT(*)
		FROM diagnostics %s
		GROUP BY month
		ORDER BY month`, where)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monthly diagnostics: %w", err)
	}
	defer rows.Close()

	var buckets []MonthBucket
	for rows.Next() {
		var b MonthBucket
		if err := rows.Scan(&b.Month, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// PerClinician counts each clinician's patients and diagnostics with scalar
// subqueries rather than joins, so the two counts cannot inflate each other.
func (r *RepoPG) PerClinician(ctx context.Context) ([]ClinicianStats, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT u.id, u.name,
			(SELECT COUNT(*) FROM patients p WHERE p.owning_clinician_id = u.id),
			(SELECT COUNT(*) FROM diagnostics d WHERE d.clinician_id = u.id)
		FROM users u
		WHERE u.role = 'clinician'
		ORDER BY u.name`)
	if err != nil {
		return nil, fmt.Errorf("per-clinician stats: %w", err)
	}
	defer rows.Close()

	var out []ClinicianStats
	for rows.Next() {
		var cs ClinicianStats
		if err := rows.Scan(&cs.ClinicianID, &cs.Name, &cs.PatientCount, &cs.DiagnosticCount); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (r *RepoPG) Performance(ctx context.Context, clinicianID *uuid.UUID) ([]ModelStats, error) {
	where := ""
	var args []interface{}
	if clinicianID != nil {
		where = "WHERE clinician_id = $1"
		args = append(args, *clinicianID)
	}

	query := fmt.Sprintf(`SELECT model_name, COUNT(*),
			AVG(confidence),
			COUNT(*) FILTER (WHERE confidence >= 0.8)
		FROM diagnostics %s
		GROUP BY model_name
		ORDER BY model_name`, where)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("model performance: %w", err)
	}
	defer rows.Close()

	var out []ModelStats
	for rows.Next() {
		var ms ModelStats
		if err := rows.Scan(&ms.ModelName, &ms.TotalDiagnostics, &ms.AvgConfidence, &ms.HighConfidence); err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
