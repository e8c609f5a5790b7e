package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aura-events/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// TooManyRequests sends 429.
func TooManyRequests(c *gin.Context, err string) {
	c.JSON(http.StatusTooManyRequests, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Domain translates a domain error into the matching HTTP response. This is
// the only place the error taxonomy meets status codes; infrastructure errors
// collapse to a generic 500 so no internal detail leaks to the wire.
func Domain(c *gin.Context, err error) {
	var de *apperr.Error
	if !errors.As(err, &de) {
		Internal(c, "internal error")
		return
	}
	body := Body{Success: false, Error: de.Message, Detail: de.Detail}
	switch de.Kind {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case apperr.KindUnauthorized:
		c.JSON(http.StatusForbidden, body)
	case apperr.KindCapacityExceeded, apperr.KindAlreadyReserved, apperr.KindScheduleConflict:
		c.JSON(http.StatusConflict, body)
	case apperr.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, body)
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	default:
		Internal(c, "internal error")
	}
}
