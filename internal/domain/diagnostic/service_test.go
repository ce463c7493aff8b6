package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fibrose/fibrose/internal/domain/audit"
	"github.com/fibrose/fibrose/internal/domain/patient"
	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
	"github.com/fibrose/fibrose/internal/platform/blobstore"
	"github.com/fibrose/fibrose/internal/platform/predict"
)

type mockRepo struct {
	diagnostics map[uuid.UUID]*Diagnostic
	createErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{diagnostics: make(map[uuid.UUID]*Diagnostic)}
}

func (m *mockRepo) Create(_ context.Context, d *Diagnostic) error {
	if m.createErr != nil {
		return m.createErr
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	cp := *d
	m.diagnostics[d.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Diagnostic, error) {
	d, ok := m.diagnostics[id]
	if !ok {
		return nil, fmt.Errorf("diagnostic %s: %w", id, apperrors.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, scope auth.Scope, filters Filters, limit, skip int) ([]*Diagnostic, int, error) {
	var matched []*Diagnostic
	for _, d := range m.diagnostics {
		if !scope.Allows(d.ClinicianID) {
			continue
		}
		if filters.PatientID != nil && d.PatientID != *filters.PatientID {
			continue
		}
		if filters.Stage != nil && d.Stage != *filters.Stage {
			continue
		}
		cp := *d
		matched = append(matched, &cp)
	}
	return matched, len(matched), nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.diagnostics[id]; !ok {
		return fmt.Errorf("diagnostic %s: %w", id, apperrors.ErrNotFound)
	}
	delete(m.diagnostics, id)
	return nil
}

func (m *mockRepo) DeleteByPatient(_ context.Context, patientID uuid.UUID) ([]string, error) {
	var locators []string
	for id, d := range m.diagnostics {
		if d.PatientID == patientID {
			locators = append(locators, d.ImageLocator)
			delete(m.diagnostics, id)
		}
	}
	return locators, nil
}

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, apperrors.ErrNotFound)
	}
	return p, nil
}

type stubPredictor struct {
	result predict.Result
	err    error
}

func (s stubPredictor) Predict(_ context.Context, _ string) (predict.Result, error) {
	return s.result, s.err
}

type mockAuditor struct {
	entries []audit.Entry
}

func (m *mockAuditor) Record(_ context.Context, e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type noopTx struct{}

func (noopTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const testModel = "Vision Transformer v2.1"

type fixture struct {
	svc       *Service
	repo      *mockRepo
	patients  *mockPatients
	blobs     *blobstore.MemStore
	predictor *stubPredictor
	auditor   *mockAuditor
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockRepo(),
		patients:  &mockPatients{patients: make(map[uuid.UUID]*patient.Patient)},
		blobs:     blobstore.NewMemStore(),
		predictor: &stubPredictor{result: predict.Result{Stage: 2, Confidence: 0.87}},
		auditor:   &mockAuditor{},
	}
	f.svc = NewService(f.repo, f.patients, f.blobs, f.predictor, f.auditor, noopTx{}, testModel, zerolog.Nop())
	return f
}

func (f *fixture) addPatient(ownerID uuid.UUID) *patient.Patient {
	p := &patient.Patient{
		ID:                uuid.New(),
		LastName:          "Dubois",
		FirstName:         "Martin",
		OwningClinicianID: ownerID,
	}
	f.patients.patients[p.ID] = p
	return p
}

func ctxAs(userID uuid.UUID, role auth.Role) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{UserID: userID, Role: role})
}

func TestCreateRecordsPredictorResult(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	d, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID,
		Image:     []byte("scan"),
		ImageExt:  ".png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.Stage != 2 || d.Confidence != 0.87 {
		t.Errorf("result = F%d/%g, want F2/0.87", d.Stage, d.Confidence)
	}
	if d.ModelName != testModel {
		t.Errorf("model = %q, want default %q", d.ModelName, testModel)
	}
	if d.ClinicianID != owner {
		t.Errorf("clinician = %s, want caller %s", d.ClinicianID, owner)
	}
	if f.blobs.Len() != 1 {
		t.Errorf("stored blobs = %d, want 1", f.blobs.Len())
	}
	if len(f.auditor.entries) != 1 || f.auditor.entries[0].Action != audit.ActionDiagnosticCreate {
		t.Errorf("audit entries = %+v", f.auditor.entries)
	}
}

func TestCreateKeepsExplicitModelName(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	d, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID,
		ModelName: "ResNet-50 baseline",
		Image:     []byte("scan"),
		ImageExt:  ".png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ModelName != "ResNet-50 baseline" {
		t.Errorf("model = %q", d.ModelName)
	}
}

func TestCreateOwnershipIsStrict(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	in := CreateInput{PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png"}

	if _, err := f.svc.Create(ctxAs(uuid.New(), auth.RoleClinician), in); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("other clinician err = %v, want ErrForbidden", err)
	}
	// Admins are not exempt: running a diagnostic requires owning the patient.
	if _, err := f.svc.Create(ctxAs(uuid.New(), auth.RoleSuperAdmin), in); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("super-admin err = %v, want ErrForbidden", err)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("blob stored despite forbidden create")
	}
}

func TestCreateMissingPatient(t *testing.T) {
	f := newFixture()
	in := CreateInput{PatientID: uuid.New(), Image: []byte("scan"), ImageExt: ".png"}
	if _, err := f.svc.Create(ctxAs(uuid.New(), auth.RoleClinician), in); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsEmptyImage(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	_, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{PatientID: p.ID, ImageExt: ".png"})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("blob stored despite empty image")
	}
}

type embeddedBlobStore = blobstore.Store

type failingStore struct {
	embeddedBlobStore
	storeErr error
}

func (s *failingStore) Store(ctx context.Context, data []byte, ext string) (string, error) {
	return "", s.storeErr
}

func TestCreateStoreFailureHidesCause(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)
	f.svc = NewService(f.repo, f.patients, &failingStore{storeErr: errors.New("disk quota exceeded")}, f.predictor, f.auditor, noopTx{}, testModel, zerolog.Nop())

	_, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png",
	})
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
	if !strings.Contains(err.Error(), "image storage failed") {
		t.Errorf("err = %v, want storage step named", err)
	}
	if strings.Contains(err.Error(), "disk quota") {
		t.Errorf("collaborator detail leaked into error: %v", err)
	}
}

func TestCreateCleansUpOnPredictorFailure(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)
	f.predictor.err = errors.New("model unavailable")

	_, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png",
	})
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
	if strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("collaborator detail leaked into error: %v", err)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("orphaned blob after predictor failure: %d", f.blobs.Len())
	}
	if len(f.repo.diagnostics) != 0 {
		t.Errorf("diagnostic row created despite failure")
	}
}

func TestCreateRejectsOutOfRangeResult(t *testing.T) {
	cases := []struct {
		name   string
		result predict.Result
	}{
		{"stage too high", predict.Result{Stage: 5, Confidence: 0.8}},
		{"stage negative", predict.Result{Stage: -1, Confidence: 0.8}},
		{"confidence above one", predict.Result{Stage: 2, Confidence: 1.2}},
		{"confidence negative", predict.Result{Stage: 2, Confidence: -0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			owner := uuid.New()
			p := f.addPatient(owner)
			f.predictor.result = tc.result

			_, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
				PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png",
			})
			if !errors.Is(err, apperrors.ErrInternal) {
				t.Errorf("err = %v, want ErrInternal", err)
			}
			if f.blobs.Len() != 0 {
				t.Errorf("orphaned blob after invalid result")
			}
		})
	}
}

func TestCreateCleansUpOnInsertFailure(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)
	f.repo.createErr = errors.New("connection reset")

	_, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.blobs.Len() != 0 {
		t.Errorf("orphaned blob after insert failure: %d", f.blobs.Len())
	}
}

func TestGetAndListScoping(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	d, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Get(ctxAs(uuid.New(), auth.RoleClinician), d.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("cross-scope get err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.Get(ctxAs(uuid.New(), auth.RoleAdmin), d.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}

	_, total, err := f.svc.List(ctxAs(uuid.New(), auth.RoleClinician), Filters{}, 100, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("cross-scope list total = %d, want 0", total)
	}
}

func TestListRejectsInvalidStageFilter(t *testing.T) {
	f := newFixture()
	stage := 7
	_, _, err := f.svc.List(ctxAs(uuid.New(), auth.RoleClinician), Filters{Stage: &stage}, 100, 0)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestOpenImage(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)

	d, err := f.svc.Create(ctxAs(owner, auth.RoleClinician), CreateInput{
		PatientID: p.ID, Image: []byte("scan-bytes"), ImageExt: ".png",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rc, locator, err := f.svc.OpenImage(ctxAs(owner, auth.RoleClinician), d.ID)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	defer rc.Close()
	if locator == "" {
		t.Error("empty locator")
	}

	if _, _, err := f.svc.OpenImage(ctxAs(uuid.New(), auth.RoleClinician), d.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("cross-scope open err = %v, want ErrForbidden", err)
	}
}

func TestDeleteRemovesRowAndImage(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	p := f.addPatient(owner)
	ctx := ctxAs(owner, auth.RoleClinician)

	d, err := f.svc.Create(ctx, CreateInput{PatientID: p.ID, Image: []byte("scan"), ImageExt: ".png"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Delete(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("image survived delete")
	}
	if _, err := f.svc.Get(ctx, d.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	last := f.auditor.entries[len(f.auditor.entries)-1]
	if last.Action != audit.ActionDiagnosticDelete {
		t.Errorf("last audit action = %s", last.Action)
	}
}
