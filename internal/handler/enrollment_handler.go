package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MaryemElyazghi/School-Management-System/internal/models"
	"github.com/MaryemElyazghi/School-Management-System/internal/service"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
	"github.com/MaryemElyazghi/School-Management-System/pkg/response"
)

// EnrollmentHandler exposes enrollment and grading endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	metrics     *service.MetricsService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, metrics *service.MetricsService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, metrics: metrics}
}

type enrollRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	CourseID  string `json:"course_id" binding:"required"`
}

type assignGradeRequest struct {
	Grade *float64 `json:"grade" binding:"required"`
}

type updateGradeRequest struct {
	Grade  *float64 `json:"grade" binding:"required"`
	Reason string   `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create godoc
// @Summary Enroll a student into a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body enrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req.StudentID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentTransition(string(models.EnrollmentStatusActive))
	response.Created(c, enrollment)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Drop godoc
// @Summary Drop an active enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	enrollment, err := h.enrollments.Drop(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentTransition(string(enrollment.Status))
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// AssignGrade godoc
// @Summary Assign the initial grade of an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body assignGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [post]
func (h *EnrollmentHandler) AssignGrade(c *gin.Context) {
	var req assignGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.AssignGrade(c.Request.Context(), c.Param("id"), *req.Grade)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGradeAssigned()
	h.metrics.RecordEnrollmentTransition(string(enrollment.Status))
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// UpdateGrade godoc
// @Summary Correct an existing grade with a justification
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body updateGradeRequest true "Grade correction payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grade [put]
func (h *EnrollmentHandler) UpdateGrade(c *gin.Context) {
	var req updateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.UpdateGrade(c.Request.Context(), c.Param("id"), *req.Grade, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGradeAssigned()
	h.metrics.RecordEnrollmentTransition(string(enrollment.Status))
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// UpdateStatus godoc
// @Summary Override the status of an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body updateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [put]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.EnrollmentStatus(strings.ToUpper(req.Status))
	enrollment, err := h.enrollments.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordEnrollmentTransition(string(enrollment.Status))
	response.JSON(c, http.StatusOK, enrollment, nil)
}
