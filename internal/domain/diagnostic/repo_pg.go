package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
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

const diagnosticCols = `id, patient_id, clinician_id, model_name, stage, confidence,
	image_locator, notes, created_at`

func scanDiagnostic(row pgx.Row) (*Diagnostic, error) {
	var d Diagnostic
	err := row.Scan(
		&d.ID, &d.PatientID, &d.ClinicianID, &d.ModelName,
		&d.Stage, &d.Confidence, &d.ImageLocator, &d.Notes, &d.CreatedAt,
	)
	return &d, err
}

func (r *RepoPG) Create(ctx context.Context, d *Diagnostic) error {
	q := fmt.Sprintf(`INSERT INTO diagnostics
		(patient_id, clinician_id, model_name, stage, confidence, image_locator, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, diagnosticCols)
	stored, err := scanDiagnostic(r.conn(ctx).QueryRow(ctx, q,
		d.PatientID, d.ClinicianID, d.ModelName, d.Stage, d.Confidence,
		d.ImageLocator, d.Notes))
	if err != nil {
		return fmt.Errorf("insert diagnostic: %w", err)
	}
	*d = *stored
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnostic, error) {
	q := fmt.Sprintf("SELECT %s FROM diagnostics WHERE id = $1", diagnosticCols)
	d, err := scanDiagnostic(r.conn(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("diagnostic %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get diagnostic: %w", err)
	}
	return d, nil
}

func (r *RepoPG) List(ctx context.Context, scope auth.Scope, filters Filters, limit, skip int) ([]*Diagnostic, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if scope.ClinicianID != nil {
		where = append(where, fmt.Sprintf("clinician_id = $%d", idx))
		args = append(args, *scope.ClinicianID)
		idx++
	}
	if filters.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, *filters.PatientID)
		idx++
	}
	if filters.Stage != nil {
		where = append(where, fmt.Sprintf("stage = $%d", idx))
		args = append(args, *filters.Stage)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM diagnostics %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count diagnostics: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM diagnostics %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		diagnosticCols, whereClause, idx, idx+1)
	args = append(args, limit, skip)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	var items []*Diagnostic
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *RepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM diagnostics WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete diagnostic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("diagnostic %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *RepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		"DELETE FROM diagnostics WHERE patient_id = $1 RETURNING image_locator", patientID)
	if err != nil {
		return nil, fmt.Errorf("cascade diagnostics: %w", err)
	}
	defer rows.Close()

	var locators []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		locators = append(locators, loc)
	}
	return locators, rows.Err()
}
