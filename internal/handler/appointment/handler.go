package appointment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/internal/authz"
	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/appointment"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service appointment.Service
}

func NewHandler(service appointment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the appointment endpoints with their policy checks.
func (h *Handler) RegisterRoutes(r gin.IRouter, az *authz.Authorizer) {
	g := r.Group("/appointments")
	g.GET("", middleware.Authorize(az, authz.OpAppointmentList, middleware.NoTarget), h.List)
	g.POST("", middleware.Authorize(az, authz.OpAppointmentCreate, middleware.NoTarget), h.Create)
	g.GET("/patient/:patient_id", middleware.Authorize(az, authz.OpAppointmentListPatient, middleware.PatientIDTarget("patient_id")), h.ListForPatient)
	g.GET("/doctor/:doctor_id", middleware.Authorize(az, authz.OpAppointmentListDoctor, middleware.DoctorIDTarget("doctor_id")), h.ListForDoctor)
	g.PUT("/:id", middleware.Authorize(az, authz.OpAppointmentUpdate, middleware.AppointmentIDTarget("id")), h.Update)
	g.PATCH("/:id", middleware.Authorize(az, authz.OpAppointmentUpdate, middleware.AppointmentIDTarget("id")), h.Update)
	g.DELETE("/:id", middleware.Authorize(az, authz.OpAppointmentCancel, middleware.AppointmentIDTarget("id")), h.Cancel)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) List(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	appointments, total, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, appointments, page.Page, model.DefaultPageSize, total)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("patient_id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("patient"))
		return
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	appointments, total, err := h.service.ListForPatient(c.Request.Context(), patientID, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, appointments, page.Page, model.DefaultPageSize, total)
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	doctorID, err := strconv.ParseInt(c.Param("doctor_id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("doctor"))
		return
	}

	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	appointments, total, err := h.service.ListForDoctor(c.Request.Context(), doctorID, page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, appointments, page.Page, model.DefaultPageSize, total)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("appointment"))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound("appointment"))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled"})
}
