package audit

import (
	"context"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, filters Filters, limit, skip int) ([]*Entry, int, error)
}
