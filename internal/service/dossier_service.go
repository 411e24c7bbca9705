package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

type dossierRepository interface {
	List(ctx context.Context) ([]models.DossierAdministratif, error)
	FindByStudent(ctx context.Context, studentID string) (*models.DossierAdministratif, error)
	FindByNumero(ctx context.Context, numero string) (*models.DossierAdministratif, error)
}

// DossierService reads administrative dossiers. Dossiers are created and
// deleted only through the student lifecycle, never directly.
type DossierService struct {
	repo   dossierRepository
	logger *zap.Logger
}

// NewDossierService constructs DossierService.
func NewDossierService(repo dossierRepository, logger *zap.Logger) *DossierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DossierService{repo: repo, logger: logger}
}

// List returns every dossier.
func (s *DossierService) List(ctx context.Context) ([]models.DossierAdministratif, error) {
	dossiers, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dossiers")
	}
	return dossiers, nil
}

// GetByStudent returns the dossier of a student.
func (s *DossierService) GetByStudent(ctx context.Context, studentID string) (*models.DossierAdministratif, error) {
	dossier, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "no dossier for student %s", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dossier")
	}
	return dossier, nil
}

// GetByNumero returns a dossier by its registration number.
func (s *DossierService) GetByNumero(ctx context.Context, numero string) (*models.DossierAdministratif, error) {
	dossier, err := s.repo.FindByNumero(ctx, numero)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "dossier %s not found", numero)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dossier")
	}
	return dossier, nil
}
