package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fibrose/fibrose/pkg/pagination"
)

// Recorder is the write side consumed by the patient and diagnostic
// services. Record must be called with the same context as the mutation so
// the entry commits in the mutation's transaction.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.SourceAddress == "" {
		e.SourceAddress = SourceAddressFromContext(ctx)
	}
	if err := s.repo.Insert(ctx, &e); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	s.logger.Info().
		Str("action", e.Action).
		Str("entity_type", e.EntityType).
		Str("source", e.SourceAddress).
		Msg("audit")
	return nil
}

func (s *Service) List(ctx context.Context, filters Filters, limit, skip int) ([]*Entry, int, error) {
	pg := pagination.Normalize(skip, limit)
	return s.repo.List(ctx, filters, pg.Limit, pg.Skip)
}

type contextKey string

const sourceAddrKey contextKey = "audit_source_addr"

// WithSourceAddress returns a context carrying the caller's network address,
// stamped once per request by the middleware.
func WithSourceAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, sourceAddrKey, addr)
}

func SourceAddressFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(sourceAddrKey).(string)
	return addr
}
