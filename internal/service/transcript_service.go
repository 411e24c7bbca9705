package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/pkg/export"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

// TranscriptFormat selects the rendered output.
type TranscriptFormat string

const (
	TranscriptFormatCSV TranscriptFormat = "csv"
	TranscriptFormatPDF TranscriptFormat = "pdf"
)

type transcriptStudentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type transcriptEnrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// Transcript is a rendered academic record ready for download.
type Transcript struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// TranscriptService renders a student's academic record as CSV or PDF.
type TranscriptService struct {
	students    transcriptStudentReader
	enrollments transcriptEnrollmentReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewTranscriptService constructs a TranscriptService.
func NewTranscriptService(students transcriptStudentReader, enrollments transcriptEnrollmentReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *TranscriptService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{students: students, enrollments: enrollments, csv: csv, pdf: pdf, logger: logger}
}

// Generate builds and renders the transcript of a student. Dropped
// enrollments are listed without a grade; active ones show "in progress".
func (s *TranscriptService) Generate(ctx context.Context, studentID string, format TranscriptFormat) (*Transcript, error) {
	student, err := s.students.FindDetailByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %s not found", studentID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	dataset := buildTranscriptDataset(student, enrollments)
	title := fmt.Sprintf("Academic Transcript - %s", student.FullName())

	var payload []byte
	var contentType, extension string
	switch format {
	case TranscriptFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType, extension = "text/csv", "csv"
	case TranscriptFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType, extension = "application/pdf", "pdf"
	default:
		return nil, appErrors.Clonef(appErrors.ErrValidation, "unsupported transcript format %q", format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}

	s.logger.Info("transcript generated",
		zap.String("student_id", studentID),
		zap.String("format", string(format)),
		zap.Int("rows", len(enrollments)))
	return &Transcript{
		Filename:    transcriptFilename(student, extension),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildTranscriptDataset(student *models.StudentDetail, enrollments []models.EnrollmentDetail) export.Dataset {
	rows := make([][]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, []string{
			e.CourseCode,
			e.CourseName,
			string(e.Status),
			formatGrade(e),
			e.EnrollmentDate.UTC().Format("2006-01-02"),
		})
	}
	return export.Dataset{
		Headers: []string{"Course Code", "Course Name", "Status", "Grade", "Enrolled On"},
		Rows:    rows,
	}
}

func formatGrade(e models.EnrollmentDetail) string {
	if e.Grade != nil {
		return fmt.Sprintf("%.2f", *e.Grade)
	}
	if e.Status == models.EnrollmentStatusActive {
		return "in progress"
	}
	return ""
}

func transcriptFilename(student *models.StudentDetail, extension string) string {
	name := strings.ToLower(strings.ReplaceAll(student.FullName(), " ", "_"))
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("transcript_%s_%s.%s", name, timestamp, extension)
}
