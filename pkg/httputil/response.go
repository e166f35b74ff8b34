package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/clinicore/clinic-api/pkg/errors"
)

// PaginatedResponse wraps a page of results.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Total      int         `json:"total"`
	TotalPages int         `json:"total_pages"`
}

// RespondWithError writes the structured {"error": ...} body with the
// status carried by the application error; anything unclassified is a 500.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), gin.H{"error": appErr.Message})
		c.Error(err)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	c.Error(err)
}

// RespondWithValidationError maps a binding failure to the 422 contract,
// flattening field-level validator messages into one line.
func RespondWithValidationError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
		RespondWithError(c, apperrors.Validation(strings.Join(parts, "; "), err))
		return
	}
	RespondWithError(c, apperrors.Validation("invalid request body", err))
}

// RespondWithPagination sends one page of a list endpoint.
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	if page < 1 {
		page = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	c.JSON(http.StatusOK, PaginatedResponse{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}
