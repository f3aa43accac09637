package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrInvariant):
		return http.StatusConflict, "invariant"
	case errors.Is(err, models.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, errorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: message, Kind: "validation"})
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// queryLocation parses the optional location parameter.
func queryLocation(c *gin.Context, logger *zap.Logger) (models.Location, bool) {
	location, err := models.ParseLocation(c.Query("location"))
	if err != nil {
		respondError(c, logger, err)
		return models.LocationAny, false
	}
	return location, true
}
