package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fibrose/fibrose/internal/domain/audit"
	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
	"github.com/fibrose/fibrose/internal/platform/blobstore"
	"github.com/fibrose/fibrose/internal/platform/db"
	"github.com/fibrose/fibrose/pkg/pagination"
)

// DiagnosticCascader removes a patient's diagnostics and reports the image
// locators of the removed rows so the caller can clean up the blob store.
type DiagnosticCascader interface {
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) ([]string, error)
}

type Service struct {
	repo        Repository
	diagnostics DiagnosticCascader
	blobs       blobstore.Store
	auditor     audit.Recorder
	tx          db.Transactor
	logger      zerolog.Logger
}

func NewService(repo Repository, diagnostics DiagnosticCascader, blobs blobstore.Store, auditor audit.Recorder, tx db.Transactor, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		diagnostics: diagnostics,
		blobs:       blobs,
		auditor:     auditor,
		tx:          tx,
		logger:      logger,
	}
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("last_name is required: %w", apperrors.ErrValidation)
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("first_name is required: %w", apperrors.ErrValidation)
	}
	if in.BirthDate.IsZero() {
		return fmt.Errorf("birth_date is required: %w", apperrors.ErrValidation)
	}
	if !in.Sex.Valid() {
		return fmt.Errorf("sex must be M or F: %w", apperrors.ErrValidation)
	}
	return nil
}

// Create stores a new patient owned by the calling principal. The owner is
// taken from the context, never from the input.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Patient, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	p := &Patient{
		LastName:          strings.TrimSpace(in.LastName),
		FirstName:         strings.TrimSpace(in.FirstName),
		BirthDate:         in.BirthDate,
		Sex:               in.Sex,
		Phone:             in.Phone,
		Email:             in.Email,
		Address:           in.Address,
		OwningClinicianID: principal.UserID,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.auditor.Record(ctx, audit.Entry{
			PrincipalID: &principal.UserID,
			Action:      audit.ActionPatientCreate,
			EntityType:  audit.EntityPatient,
			EntityID:    &p.ID,
			Detail:      fmt.Sprintf("%s %s", p.LastName, p.FirstName),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the patient when the caller's scope allows it. A patient that
// exists but belongs to another clinician is reported as forbidden, not as
// missing.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.ScopeFor(principal).Allows(p.OwningClinicianID) {
		return nil, fmt.Errorf("patient %s belongs to another clinician: %w", id, apperrors.ErrForbidden)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, search string, limit, skip int) ([]*Patient, int, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	pg := pagination.Normalize(skip, limit)
	return s.repo.List(ctx, auth.ScopeFor(principal), strings.TrimSpace(search), pg.Limit, pg.Skip)
}

// Update applies the non-nil fields of in. Ownership is immutable; the
// repository never writes owning_clinician_id on update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Patient, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return nil, fmt.Errorf("last_name cannot be empty: %w", apperrors.ErrValidation)
		}
		p.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, fmt.Errorf("first_name cannot be empty: %w", apperrors.ErrValidation)
		}
		p.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.BirthDate != nil {
		p.BirthDate = *in.BirthDate
	}
	if in.Sex != nil {
		if !in.Sex.Valid() {
			return nil, fmt.Errorf("sex must be M or F: %w", apperrors.ErrValidation)
		}
		p.Sex = *in.Sex
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
	if in.Email != nil {
		p.Email = in.Email
	}
	if in.Address != nil {
		p.Address = in.Address
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		return s.auditor.Record(ctx, audit.Entry{
			PrincipalID: &principal.UserID,
			Action:      audit.ActionPatientUpdate,
			EntityType:  audit.EntityPatient,
			EntityID:    &p.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the patient, its diagnostics and their stored images. Row
// deletes and the audit entry commit together; blob cleanup runs after the
// commit and tolerates missing files.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var locators []string
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		locators, err = s.diagnostics.DeleteByPatient(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, audit.Entry{
			PrincipalID: &principal.UserID,
			Action:      audit.ActionPatientDelete,
			EntityType:  audit.EntityPatient,
			EntityID:    &id,
			Detail:      fmt.Sprintf("cascaded %d diagnostics", len(locators)),
		})
	})
	if err != nil {
		return err
	}

	for _, loc := range locators {
		if err := s.blobs.Delete(ctx, loc); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("locator", loc).Msg("orphaned diagnostic image")
		}
	}
	return nil
}
