package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/orchestrator"
)

// ViewHandler exposes orchestrator views so a caller can poll one URL while
// the server keeps its query fresh.
type ViewHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewViewHandler constructs the HTTP handler adapter.
func NewViewHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *ViewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewHandler{orch: orch, logger: logger}
}

type openViewBody struct {
	Name string `json:"name"`
}

type viewResponse struct {
	View      string        `json:"view"`
	Key       string        `json:"key,omitempty"`
	Loaded    bool          `json:"loaded"`
	Trays     []models.Tray `json:"trays"`
	Total     int           `json:"total"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt *time.Time    `json:"updated_at,omitempty"`
}

// Open answers POST /views. A missing name gets a generated one.
func (h *ViewHandler) Open(c *gin.Context) {
	var body openViewBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	if body.Name == "" {
		body.Name = uuid.NewString()
	}

	view, err := h.orch.OpenView(body.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"view": view.Name()})
}

// SetQuery answers PUT /views/:name. The switch happens after the debounce.
func (h *ViewHandler) SetQuery(c *gin.Context) {
	view, ok := h.lookup(c)
	if !ok {
		return
	}

	var spec models.QuerySpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	key, err := spec.Key()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := view.SetQuery(key); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"view": view.Name(), "key": key.String()})
}

// Get answers GET /views/:name with the current projection.
func (h *ViewHandler) Get(c *gin.Context) {
	view, ok := h.lookup(c)
	if !ok {
		return
	}

	resp := viewResponse{View: view.Name(), Trays: []models.Tray{}}
	key, projection, loaded := view.Snapshot()
	if key != nil {
		resp.Key = key.String()
	}
	if loaded {
		resp.Loaded = true
		resp.Trays = projection.Page.Trays
		resp.Total = len(projection.Page.Trays)
		if projection.Page.TotalKnown {
			resp.Total = projection.Page.Total
		}
		if projection.Err != nil {
			resp.Error = projection.Err.Error()
		}
		updated := projection.UpdatedAt
		resp.UpdatedAt = &updated
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh answers POST /views/:name/refresh.
func (h *ViewHandler) Refresh(c *gin.Context) {
	view, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"view": view.Name(), "refreshing": view.Refresh()})
}

// Close answers DELETE /views/:name.
func (h *ViewHandler) Close(c *gin.Context) {
	view, ok := h.lookup(c)
	if !ok {
		return
	}
	view.Close()
	c.Status(http.StatusNoContent)
}

func (h *ViewHandler) lookup(c *gin.Context) (*orchestrator.View, bool) {
	view, ok := h.orch.View(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "view " + c.Param("name") + " not found", Kind: "not_found"})
		return nil, false
	}
	return view, true
}
