package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// TrayQueries is the registry surface served over HTTP.
type TrayQueries interface {
	QueryByTray(ctx context.Context, trayID string, location models.Location) ([]models.Tray, error)
	QueryByMaterial(ctx context.Context, materialID string, location models.Location) ([]models.Tray, error)
	QueryUnfiltered(ctx context.Context, filters models.UnfilteredFilters, offset int) ([]models.Tray, int, error)
	PageSize() int
}

// TrayHandler serves tray lookups.
type TrayHandler struct {
	trays  TrayQueries
	logger *zap.Logger
}

// NewTrayHandler constructs the HTTP handler adapter.
func NewTrayHandler(trays TrayQueries, logger *zap.Logger) *TrayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrayHandler{trays: trays, logger: logger}
}

type trayListResponse struct {
	Trays []models.Tray `json:"trays"`
	Count int           `json:"count"`
}

type traySearchResponse struct {
	Trays    []models.Tray `json:"trays"`
	Total    int           `json:"total"`
	Offset   int           `json:"offset"`
	PageSize int           `json:"page_size"`
}

// List answers GET /trays?tray_id=|material_id=&location=.
func (h *TrayHandler) List(c *gin.Context) {
	trayID := c.Query("tray_id")
	materialID := c.Query("material_id")
	if (trayID == "") == (materialID == "") {
		badRequest(c, "exactly one of tray_id or material_id is required")
		return
	}

	location, ok := queryLocation(c, h.logger)
	if !ok {
		return
	}

	var (
		trays []models.Tray
		err   error
	)
	if trayID != "" {
		trays, err = h.trays.QueryByTray(c.Request.Context(), trayID, location)
	} else {
		trays, err = h.trays.QueryByMaterial(c.Request.Context(), materialID, location)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, trayListResponse{Trays: trays, Count: len(trays)})
}

// Search answers GET /trays/search?divider=&has_inventory=&offset=.
func (h *TrayHandler) Search(c *gin.Context) {
	var filters models.UnfilteredFilters

	if raw := c.Query("divider"); raw != "" {
		divider, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "divider must be an integer")
			return
		}
		filters.Divider = &divider
	}
	if raw := c.Query("has_inventory"); raw != "" {
		hasInventory, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "has_inventory must be a boolean")
			return
		}
		filters.HasInventory = &hasInventory
	}

	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	trays, total, err := h.trays.QueryUnfiltered(c.Request.Context(), filters, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, traySearchResponse{
		Trays:    trays,
		Total:    total,
		Offset:   offset,
		PageSize: h.trays.PageSize(),
	})
}
