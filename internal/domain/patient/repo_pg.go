package patient

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

const patientCols = `id, last_name, first_name, birth_date, sex, phone, email, address,
	owning_clinician_id, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.LastName, &p.FirstName, &p.BirthDate, &p.Sex,
		&p.Phone, &p.Email, &p.Address,
		&p.OwningClinicianID, &p.CreatedAt, &p.UpdatedAt,
	)
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	q := fmt.Sprintf(`INSERT INTO patients
		(last_name, first_name, birth_date, sex, phone, email, address, owning_clinician_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, patientCols)
	stored, err := scanPatient(r.conn(ctx).QueryRow(ctx, q,
		p.LastName, p.FirstName, p.BirthDate, p.Sex,
		p.Phone, p.Email, p.Address, p.OwningClinicianID))
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	*p = *stored
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q := fmt.Sprintf("SELECT %s FROM patients WHERE id = $1", patientCols)
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *RepoPG) List(ctx context.Context, scope auth.Scope, search string, limit, skip int) ([]*Patient, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if scope.ClinicianID != nil {
		where = append(where, fmt.Sprintf("owning_clinician_id = $%d", idx))
		args = append(args, *scope.ClinicianID)
		idx++
	}
	if search != "" {
		where = append(where, fmt.Sprintf("(last_name ILIKE $%d OR first_name ILIKE $%d)", idx, idx))
		args = append(args, "%"+search+"%")
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM patients %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM patients %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		patientCols, whereClause, idx, idx+1)
	args = append(args, limit, skip)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// Update never touches owning_clinician_id; ownership is immutable.
func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	q := fmt.Sprintf(`UPDATE patients SET
		last_name = $1, first_name = $2, birth_date = $3, sex = $4,
		phone = $5, email = $6, address = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING %s`, patientCols)
	stored, err := scanPatient(r.conn(ctx).QueryRow(ctx, q,
		p.LastName, p.FirstName, p.BirthDate, p.Sex,
		p.Phone, p.Email, p.Address, p.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("patient %s: %w", p.ID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("update patient: %w", err)
	}
	*p = *stored
	return nil
}

func (r *RepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, "DELETE FROM patients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("patient %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
