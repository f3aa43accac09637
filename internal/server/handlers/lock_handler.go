package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// LockService is the lock manager surface served over HTTP.
type LockService interface {
	RequestLock(ctx context.Context, req models.LockRequest) (models.Order, error)
	FindActive(ctx context.Context, trayID, userID string) (models.Order, error)
	Get(ctx context.Context, orderID string) (models.Order, error)
	Complete(ctx context.Context, orderID string) error
	Release(ctx context.Context, orderID, slotID string) error
	Stations(ctx context.Context) ([]models.Station, error)
}

// LockHandler serves tray reservations and stations.
type LockHandler struct {
	locks  LockService
	logger *zap.Logger
}

// NewLockHandler constructs the HTTP handler adapter.
func NewLockHandler(locks LockService, logger *zap.Logger) *LockHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockHandler{locks: locks, logger: logger}
}

type lockRequestBody struct {
	TrayID         string `json:"tray_id" binding:"required"`
	UserID         string `json:"user_id"`
	StationID      string `json:"station_id"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

// Create answers POST /locks.
func (h *LockHandler) Create(c *gin.Context) {
	var body lockRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	order, err := h.locks.RequestLock(c.Request.Context(), models.LockRequest{
		TrayID:    body.TrayID,
		UserID:    body.UserID,
		StationID: body.StationID,
		Timeout:   time.Duration(body.TimeoutMinutes) * time.Minute,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// Active answers GET /locks/active?tray_id=&user_id=.
func (h *LockHandler) Active(c *gin.Context) {
	order, err := h.locks.FindActive(c.Request.Context(), c.Query("tray_id"), c.Query("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Get answers GET /locks/:id.
func (h *LockHandler) Get(c *gin.Context) {
	order, err := h.locks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Complete answers POST /locks/:id/complete.
func (h *LockHandler) Complete(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.locks.Complete(c.Request.Context(), orderID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusCompleted})
}

// Release answers POST /locks/:id/release?slot_id=.
func (h *LockHandler) Release(c *gin.Context) {
	orderID := c.Param("id")
	if err := h.locks.Release(c.Request.Context(), orderID, c.Query("slot_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": models.OrderStatusCompleted})
}

// Stations answers GET /stations.
func (h *LockHandler) Stations(c *gin.Context) {
	stations, err := h.locks.Stations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}
