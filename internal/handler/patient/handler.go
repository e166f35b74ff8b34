package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/internal/authz"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/patient"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service patient.Service
}

func NewHandler(service patient.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the patient endpoints with their policy checks.
// Patients are addressed by their external identifier in every route.
func (h *Handler) RegisterRoutes(r gin.IRouter, az *authz.Authorizer) {
	g := r.Group("/patients")
	g.GET("", middleware.Authorize(az, authz.OpPatientList, middleware.NoTarget), h.List)
	g.POST("", middleware.Authorize(az, authz.OpPatientCreate, middleware.NoTarget), h.Create)
	g.GET("/:id", middleware.Authorize(az, authz.OpPatientGet, middleware.PatientExternalTarget("id")), h.Get)
	g.PUT("/:id", middleware.Authorize(az, authz.OpPatientUpdate, middleware.PatientExternalTarget("id")), h.Update)
	g.PATCH("/:id", middleware.Authorize(az, authz.OpPatientUpdate, middleware.PatientExternalTarget("id")), h.Update)
	g.DELETE("/:id", middleware.Authorize(az, authz.OpPatientDelete, middleware.PatientExternalTarget("id")), h.Delete)
	g.GET("/:id/audits", middleware.Authorize(az, authz.OpPatientAudits, middleware.PatientExternalTarget("id")), h.ListAudits)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req, middleware.ActorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c *gin.Context) {
	found, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *Handler) List(c *gin.Context) {
	var filters model.PatientFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patients, total, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, patients, filters.Page, model.DefaultPageSize, total)
}

func (h *Handler) Update(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), &req, middleware.ActorFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "patient deleted"})
}

func (h *Handler) ListAudits(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	audits, total, err := h.service.ListAudits(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, audits, page.Page, model.DefaultPageSize, total)
}
