package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
)

func newTranscriptFixture(repo *mockEnrollmentRepo) *TranscriptService {
	students := &mockEnrollmentStudents{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FirstName: "Amina", LastName: "El Fassi"}},
	}}
	return NewTranscriptService(students, repo, nil, nil, zap.NewNop())
}

func TestTranscriptServiceGenerateCSV(t *testing.T) {
	grade := 15.5
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {
			ID: "e1", StudentID: "s1", CourseID: "c1",
			Status: models.EnrollmentStatusCompleted, Grade: &grade,
			EnrollmentDate: time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		},
		"e2": {
			ID: "e2", StudentID: "s1", CourseID: "c2",
			Status:         models.EnrollmentStatusActive,
			EnrollmentDate: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
	}}
	svc := newTranscriptFixture(repo)

	transcript, err := svc.Generate(context.Background(), "s1", TranscriptFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", transcript.ContentType)
	assert.True(t, strings.HasPrefix(transcript.Filename, "transcript_amina_el_fassi_"))
	assert.True(t, strings.HasSuffix(transcript.Filename, ".csv"))

	body := string(transcript.Payload)
	assert.Contains(t, body, "Course Code,Course Name,Status,Grade,Enrolled On")
	assert.Contains(t, body, "15.50")
	assert.Contains(t, body, "in progress")
}

func TestTranscriptServiceGeneratePDF(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newTranscriptFixture(repo)

	transcript, err := svc.Generate(context.Background(), "s1", TranscriptFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", transcript.ContentType)
	assert.NotEmpty(t, transcript.Payload)
}

func TestTranscriptServiceGenerateUnknownStudent(t *testing.T) {
	svc := newTranscriptFixture(&mockEnrollmentRepo{})

	_, err := svc.Generate(context.Background(), "ghost", TranscriptFormatCSV)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestTranscriptServiceGenerateUnsupportedFormat(t *testing.T) {
	svc := newTranscriptFixture(&mockEnrollmentRepo{})

	_, err := svc.Generate(context.Background(), "s1", "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
