package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
)

// Reconciler is the reconciliation engine surface served over HTTP.
type Reconciler interface {
	Classify(ctx context.Context, materialID string) (models.ReconciliationRecord, error)
	ListByStatus(ctx context.Context, status models.ReconcileStatus, page models.Page) ([]models.ReconciliationRecord, error)
	DrillDown(ctx context.Context, materialID string) ([]models.Tray, error)
	Summary(ctx context.Context) (models.ReconcileSummary, error)
}

// ReconcileHandler serves reconciliation reports.
type ReconcileHandler struct {
	engine Reconciler
	logger *zap.Logger
}

// NewReconcileHandler constructs the HTTP handler adapter.
func NewReconcileHandler(engine Reconciler, logger *zap.Logger) *ReconcileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileHandler{engine: engine, logger: logger}
}

type drillDownResponse struct {
	MaterialID       string        `json:"material"`
	InternalQuantity int           `json:"item_quantity"`
	Trays            []models.Tray `json:"trays"`
}

// List answers GET /reconcile?status=&offset=&limit=.
func (h *ReconcileHandler) List(c *gin.Context) {
	status, err := models.ParseReconcileStatus(c.Query("status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	records, err := h.engine.ListByStatus(c.Request.Context(), status, models.Page{Offset: offset, Limit: limit})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "records": records})
}

// Classify answers GET /reconcile/:material.
func (h *ReconcileHandler) Classify(c *gin.Context) {
	record, err := h.engine.Classify(c.Request.Context(), c.Param("material"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// DrillDown answers GET /reconcile/:material/trays.
func (h *ReconcileHandler) DrillDown(c *gin.Context) {
	materialID := c.Param("material")
	trays, err := h.engine.DrillDown(c.Request.Context(), materialID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total := models.TrayPage{Trays: trays}.SumQuantity(materialID)
	c.JSON(http.StatusOK, drillDownResponse{MaterialID: materialID, InternalQuantity: total, Trays: trays})
}

// Summary answers GET /reconcile/summary.
func (h *ReconcileHandler) Summary(c *gin.Context) {
	summary, err := h.engine.Summary(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
