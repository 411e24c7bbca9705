package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
)

// DossierRepository handles persistence of administrative dossiers. Creation
// happens through StudentRepository.CreateWithDossier; this repository only
// serves reads.
type DossierRepository struct {
	db *sqlx.DB
}

// NewDossierRepository constructs the repository.
func NewDossierRepository(db *sqlx.DB) *DossierRepository {
	return &DossierRepository{db: db}
}

const dossierColumns = `id, numero_inscription, date_creation, student_id, created_at, updated_at`

// FindByStudent returns the dossier owned by a student.
func (r *DossierRepository) FindByStudent(ctx context.Context, studentID string) (*models.DossierAdministratif, error) {
	query := fmt.Sprintf(`SELECT %s FROM dossiers_administratifs WHERE student_id = $1`, dossierColumns)
	var dossier models.DossierAdministratif
	if err := r.db.GetContext(ctx, &dossier, query, studentID); err != nil {
		return nil, err
	}
	return &dossier, nil
}

// FindByNumero returns a dossier by its registration number.
func (r *DossierRepository) FindByNumero(ctx context.Context, numero string) (*models.DossierAdministratif, error) {
	query := fmt.Sprintf(`SELECT %s FROM dossiers_administratifs WHERE numero_inscription = $1`, dossierColumns)
	var dossier models.DossierAdministratif
	if err := r.db.GetContext(ctx, &dossier, query, numero); err != nil {
		return nil, err
	}
	return &dossier, nil
}

// List returns every dossier ordered by registration number.
func (r *DossierRepository) List(ctx context.Context) ([]models.DossierAdministratif, error) {
	query := fmt.Sprintf(`SELECT %s FROM dossiers_administratifs ORDER BY numero_inscription`, dossierColumns)
	var dossiers []models.DossierAdministratif
	if err := r.db.SelectContext(ctx, &dossiers, query); err != nil {
		return nil, fmt.Errorf("list dossiers: %w", err)
	}
	return dossiers, nil
}
