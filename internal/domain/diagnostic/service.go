package diagnostic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fibrose/fibrose/internal/domain/audit"
	"github.com/fibrose/fibrose/internal/domain/patient"
	"github.com/fibrose/fibrose/internal/platform/apperrors"
	"github.com/fibrose/fibrose/internal/platform/auth"
	"github.com/fibrose/fibrose/internal/platform/blobstore"
	"github.com/fibrose/fibrose/internal/platform/db"
	"github.com/fibrose/fibrose/internal/platform/predict"
	"github.com/fibrose/fibrose/pkg/pagination"
)

// PatientSource is the read side of the patient store the workflow needs for
// the ownership check.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo         Repository
	patients     PatientSource
	blobs        blobstore.Store
	predictor    predict.Predictor
	auditor      audit.Recorder
	tx           db.Transactor
	defaultModel string
	logger       zerolog.Logger
}

func NewService(repo Repository, patients PatientSource, blobs blobstore.Store, predictor predict.Predictor, auditor audit.Recorder, tx db.Transactor, defaultModel string, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		blobs:        blobs,
		predictor:    predictor,
		auditor:      auditor,
		tx:           tx,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Create runs the full diagnostic workflow: ownership check, image
// persistence, prediction, result validation, then the row insert and audit
// entry in one transaction. Any failure after the image is stored deletes it
// again so no orphaned blob survives a failed run.
//
// The ownership check is strict equality with the caller, not the general
// scope: an admin cannot run a diagnostic on a clinician's patient either.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Diagnostic, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}

	p, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if p.OwningClinicianID != principal.UserID {
		return nil, fmt.Errorf("patient %s belongs to another clinician: %w", in.PatientID, apperrors.ErrForbidden)
	}

	modelName := strings.TrimSpace(in.ModelName)
	if modelName == "" {
		modelName = s.defaultModel
	}

	locator, err := s.blobs.Store(ctx, in.Image, in.ImageExt)
	if err != nil {
		if errors.Is(err, blobstore.ErrEmptyBlob) || errors.Is(err, blobstore.ErrBlobTooLarge) {
			return nil, fmt.Errorf("image rejected: %v: %w", err, apperrors.ErrValidation)
		}
		s.logger.Error().Err(err).Msg("image store failed")
		return nil, fmt.Errorf("image storage failed: %w", apperrors.ErrInternal)
	}

	result, err := s.predictor.Predict(ctx, locator)
	if err != nil {
		s.discard(ctx, locator)
		s.logger.Error().Err(err).Str("locator", locator).Msg("predictor failed")
		return nil, fmt.Errorf("prediction failed: %w", apperrors.ErrInternal)
	}
	if result.Stage < MinStage || result.Stage > MaxStage {
		s.discard(ctx, locator)
		return nil, fmt.Errorf("predictor returned stage %d outside F0..F4: %w", result.Stage, apperrors.ErrInternal)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		s.discard(ctx, locator)
		return nil, fmt.Errorf("predictor returned confidence %g outside [0,1]: %w", result.Confidence, apperrors.ErrInternal)
	}

	d := &Diagnostic{
		PatientID:    in.PatientID,
		ClinicianID:  principal.UserID,
		ModelName:    modelName,
		Stage:        result.Stage,
		Confidence:   result.Confidence,
		ImageLocator: locator,
		Notes:        in.Notes,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, d); err != nil {
			return err
		}
		return s.auditor.Record(ctx, audit.Entry{
			PrincipalID: &principal.UserID,
			Action:      audit.ActionDiagnosticCreate,
			EntityType:  audit.EntityDiagnostic,
			EntityID:    &d.ID,
			Detail:      fmt.Sprintf("patient %s stage F%d", d.PatientID, d.Stage),
		})
	})
	if err != nil {
		s.discard(ctx, locator)
		return nil, err
	}
	return d, nil
}

// discard is the compensating cleanup for a stored image whose diagnostic
// never committed.
func (s *Service) discard(ctx context.Context, locator string) {
	if err := s.blobs.Delete(ctx, locator); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("locator", locator).Msg("orphaned diagnostic image")
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Diagnostic, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.ScopeFor(principal).Allows(d.ClinicianID) {
		return nil, fmt.Errorf("diagnostic %s belongs to another clinician: %w", id, apperrors.ErrForbidden)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filters Filters, limit, skip int) ([]*Diagnostic, int, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, 0, fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	if filters.Stage != nil && (*filters.Stage < MinStage || *filters.Stage > MaxStage) {
		return nil, 0, fmt.Errorf("stage must be between %d and %d: %w", MinStage, MaxStage, apperrors.ErrValidation)
	}
	pg := pagination.Normalize(skip, limit)
	return s.repo.List(ctx, auth.ScopeFor(principal), filters, pg.Limit, pg.Skip)
}

// OpenImage streams the stored image of a visible diagnostic. The locator is
// returned alongside so the caller can derive a filename.
func (s *Service) OpenImage(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.blobs.Open(ctx, d.ImageLocator)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, "", fmt.Errorf("image for diagnostic %s: %w", id, apperrors.ErrNotFound)
		}
		s.logger.Error().Err(err).Str("locator", d.ImageLocator).Msg("image open failed")
		return nil, "", fmt.Errorf("image storage failed: %w", apperrors.ErrInternal)
	}
	return rc, d.ImageLocator, nil
}

// Delete removes the image first, then the row and audit entry together.
// A missing image does not block the row delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("no principal: %w", apperrors.ErrUnauthenticated)
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	s.discard(ctx, d.ImageLocator)

	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Record(ctx, audit.Entry{
			PrincipalID: &principal.UserID,
			Action:      audit.ActionDiagnosticDelete,
			EntityType:  audit.EntityDiagnostic,
			EntityID:    &id,
			Detail:      fmt.Sprintf("patient %s", d.PatientID),
		})
	})
}
