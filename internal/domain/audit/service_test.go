package audit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	entries []*Entry
}

func (m *mockRepo) Insert(_ context.Context, e *Entry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockRepo) List(_ context.Context, filters Filters, limit, skip int) ([]*Entry, int, error) {
	var matched []*Entry
	for _, e := range m.entries {
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		if filters.EntityType != "" && e.EntityType != filters.EntityType {
			continue
		}
		matched = append(matched, e)
	}
	return matched, len(matched), nil
}

func newTestService() (*Service, *mockRepo) {
	repo := &mockRepo{}
	return NewService(repo, zerolog.New(os.Stderr)), repo
}

func TestRecord(t *testing.T) {
	svc, repo := newTestService()
	pid := uuid.New()
	err := svc.Record(context.Background(), Entry{
		PrincipalID: &pid,
		Action:      ActionPatientCreate,
		EntityType:  EntityPatient,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].Action != ActionPatientCreate {
		t.Errorf("unexpected action: %s", repo.entries[0].Action)
	}
}

func TestRecord_SourceAddressFromContext(t *testing.T) {
	svc, repo := newTestService()
	ctx := WithSourceAddress(context.Background(), "10.1.2.3")
	if err := svc.Record(ctx, Entry{Action: ActionDiagnosticDelete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.entries[0].SourceAddress != "10.1.2.3" {
		t.Errorf("source address not taken from context: %q", repo.entries[0].SourceAddress)
	}
}

func TestList_FilterByAction(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Record(ctx, Entry{Action: ActionPatientCreate, EntityType: EntityPatient})
	svc.Record(ctx, Entry{Action: ActionDiagnosticCreate, EntityType: EntityDiagnostic})

	items, total, err := svc.List(ctx, Filters{Action: ActionPatientCreate}, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 match, got %d", total)
	}
}
