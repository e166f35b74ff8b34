package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/auth"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service auth.Service
}

func NewHandler(service auth.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes wires the endpoints that run before authentication.
func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	r.POST("/login", h.Login)
}

// RegisterRoutes wires the endpoints that require a valid token.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/logout", h.Logout)
	r.GET("/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout is a no-op on the server: tokens are stateless and the client
// discards its copy.
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor.UserID == nil {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.Me(c.Request.Context(), *actor.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
