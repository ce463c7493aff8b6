package audit

import (
	"context"
	"fmt"
	"strings"

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

const entryCols = `id, principal_id, action, entity_type, entity_id, detail, source_address, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.PrincipalID, &e.Action, &e.EntityType, &e.EntityID,
		&e.Detail, &e.SourceAddress, &e.CreatedAt,
	)
	return &e, err
}

func (r *RepoPG) Insert(ctx context.Context, e *Entry) error {
	q := fmt.Sprintf(`INSERT INTO audit_entries
		(principal_id, action, entity_type, entity_id, detail, source_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, entryCols)
	stored, err := scanEntry(r.conn(ctx).QueryRow(ctx, q,
		e.PrincipalID, e.Action, e.EntityType, e.EntityID, e.Detail, e.SourceAddress))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	*e = *stored
	return nil
}

func (r *RepoPG) List(ctx context.Context, filters Filters, limit, skip int) ([]*Entry, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if filters.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, filters.Action)
		idx++
	}
	if filters.EntityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, filters.EntityType)
		idx++
	}
	if filters.PrincipalID != nil {
		where = append(where, fmt.Sprintf("principal_id = $%d", idx))
		args = append(args, *filters.PrincipalID)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM audit_entries %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		entryCols, whereClause, idx, idx+1)
	args = append(args, limit, skip)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
