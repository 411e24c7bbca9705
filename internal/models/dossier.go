package models

import (
	"fmt"
	"time"
)

// DossierAdministratif is the administrative record auto-issued per student.
// Its registration number is derived once at creation and never regenerated.
type DossierAdministratif struct {
	ID                string    `db:"id" json:"id"`
	NumeroInscription string    `db:"numero_inscription" json:"numero_inscription"`
	DateCreation      time.Time `db:"date_creation" json:"date_creation"`
	StudentID         string    `db:"student_id" json:"student_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// NumeroInscription derives the registration number, format CODE-YEAR-ID.
func NumeroInscription(departmentCode string, year int, studentID string) string {
	return fmt.Sprintf("%s-%d-%s", departmentCode, year, studentID)
}
