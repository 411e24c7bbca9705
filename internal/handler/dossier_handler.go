package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaryemElyazghi/School-Management-System/internal/service"
	"github.com/MaryemElyazghi/School-Management-System/pkg/response"
)

// DossierHandler exposes read-only dossier endpoints.
type DossierHandler struct {
	dossiers *service.DossierService
}

// NewDossierHandler constructs DossierHandler.
func NewDossierHandler(dossiers *service.DossierService) *DossierHandler {
	return &DossierHandler{dossiers: dossiers}
}

// List godoc
// @Summary List administrative dossiers
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param numero query string false "Lookup by registration number"
// @Success 200 {object} response.Envelope
// @Router /dossiers [get]
func (h *DossierHandler) List(c *gin.Context) {
	if numero := c.Query("numero"); numero != "" {
		dossier, err := h.dossiers.GetByNumero(c.Request.Context(), numero)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, dossier, nil)
		return
	}
	dossiers, err := h.dossiers.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dossiers, nil)
}

// ByStudent godoc
// @Summary Get the dossier of a student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/dossier [get]
func (h *DossierHandler) ByStudent(c *gin.Context) {
	dossier, err := h.dossiers.GetByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dossier, nil)
}
