package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaryemElyazghi/School-Management-System/internal/service"
	appErrors "github.com/MaryemElyazghi/School-Management-System/pkg/errors"
	"github.com/MaryemElyazghi/School-Management-System/pkg/response"
)

// DepartmentHandler exposes department endpoints.
type DepartmentHandler struct {
	departments *service.DepartmentService
	students    *service.StudentService
	courses     *service.CourseService
}

// NewDepartmentHandler constructs DepartmentHandler.
func NewDepartmentHandler(departments *service.DepartmentService, students *service.StudentService, courses *service.CourseService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, students: students, courses: courses}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// Get godoc
// @Summary Get a department
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	department, err := h.departments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Create godoc
// @Summary Create a department
// @Tags Departments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateDepartmentRequest true "Department payload"
// @Success 201 {object} response.Envelope
// @Router /departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req service.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.departments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, department)
}

// Update godoc
// @Summary Update a department
// @Tags Departments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Param payload body service.UpdateDepartmentRequest true "Department payload"
// @Success 200 {object} response.Envelope
// @Router /departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	var req service.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	department, err := h.departments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, department, nil)
}

// Delete godoc
// @Summary Delete an empty department
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 204
// @Router /departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	if err := h.departments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Department dependent counts
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/stats [get]
func (h *DepartmentHandler) Stats(c *gin.Context) {
	stats, err := h.departments.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Students godoc
// @Summary List students of a department
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/students [get]
func (h *DepartmentHandler) Students(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.departments.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.students.ListByDepartment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Courses godoc
// @Summary List courses of a department
// @Tags Departments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/courses [get]
func (h *DepartmentHandler) Courses(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.departments.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	courses, err := h.courses.ListByDepartment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
