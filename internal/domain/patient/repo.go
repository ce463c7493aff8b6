package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/fibrose/fibrose/internal/platform/auth"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// List applies the scope, then an optional case-insensitive substring
	// search over last and first name.
	List(ctx context.Context, scope auth.Scope, search string, limit, skip int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}
