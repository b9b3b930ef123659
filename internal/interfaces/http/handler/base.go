// Package handler holds the HTTP handlers of the retail API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/logger"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/infrastructure/validation"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// dateLayout is the format of date query parameters
const dateLayout = "2006-01-02"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getOperator returns the cashier or clerk named by the request, if any
func getOperator(c *gin.Context) string {
	if op := logger.GetOperator(c.Request.Context()); op != "" {
		return op
	}
	return strings.TrimSpace(c.GetHeader(logger.OperatorHeader))
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// HandleError converts err into the error envelope. Errors without a
// domain code are logged and answered with a generic 500; a saturated
// worker pool is answered with 503.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, scheduler.ErrPoolQueueFull) || errors.Is(err, scheduler.ErrPoolNotRunning) {
		logger.GetGinLogger(c).Warn("Worker pool rejected request", zap.Error(err))
		resp := dto.NewErrorResponse(dto.ErrCodeUnavailable, "Server is busy, retry later")
		resp.Error.RequestID = getRequestID(c)
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp, status := dto.NewErrorResponseFromError(err, getRequestID(c))
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	c.JSON(status, resp)
}

// bind binds and validates the request body into obj
func (h *BaseHandler) bind(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return validation.BindingError(err)
	}
	return nil
}

// bindJSON binds and validates the request body, answering 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, obj any) bool {
	if err := h.bind(c, obj); err != nil {
		h.HandleError(c, err)
		return false
	}
	return true
}

// uuidParam parses a path parameter as a UUID, answering 400 on failure
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.HandleError(c, shared.FieldError(name, "Must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// channelParam parses the :channel path parameter
func (h *BaseHandler) channelParam(c *gin.Context) (inventory.Channel, bool) {
	ch, err := inventory.ParseChannel(c.Param("channel"))
	if err != nil {
		h.HandleError(c, err)
		return "", false
	}
	return ch, true
}

// intQuery reads a non-negative integer query parameter, falling back to def when absent
func (h *BaseHandler) intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		h.HandleError(c, shared.FieldError(name, "Must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

// dateQuery reads a YYYY-MM-DD query parameter; the zero time means absent
func (h *BaseHandler) dateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		h.HandleError(c, shared.FieldError(name, "Must be a date in YYYY-MM-DD format"))
		return time.Time{}, false
	}
	return d, true
}
