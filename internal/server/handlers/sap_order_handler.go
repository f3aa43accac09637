package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/picking"
)

// SapOrderPicker is the ERP order picking surface served over HTTP.
type SapOrderPicker interface {
	ActiveOrders(ctx context.Context) ([]models.SapOrderSummary, error)
	LinesInTray(ctx context.Context, trayID string) ([]models.SapOrderLine, error)
	PickLine(ctx context.Context, req picking.PickRequest) (picking.PickResult, error)
}

// SapOrderHandler serves ERP orders and line picks.
type SapOrderHandler struct {
	picker SapOrderPicker
	logger *zap.Logger
}

func NewSapOrderHandler(picker SapOrderPicker, logger *zap.Logger) *SapOrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SapOrderHandler{picker: picker, logger: logger}
}

// List answers GET /sap-orders.
func (h *SapOrderHandler) List(c *gin.Context) {
	orders, err := h.picker.ActiveOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// InTray answers GET /sap-orders/trays/:tray_id.
func (h *SapOrderHandler) InTray(c *gin.Context) {
	trayID := c.Param("tray_id")
	lines, err := h.picker.LinesInTray(c.Request.Context(), trayID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tray_id": trayID, "lines": lines})
}

// Pick answers POST /sap-orders/pick.
func (h *SapOrderHandler) Pick(c *gin.Context) {
	var req picking.PickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.picker.PickLine(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
