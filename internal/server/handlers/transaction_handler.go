package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/domain/models"
	"github.com/mamadbah2/traystore/internal/service/transactions"
)

// TransactionRecorder is the recorder surface served over HTTP.
type TransactionRecorder interface {
	Record(ctx context.Context, m transactions.Movement) (models.Transaction, error)
}

// TransactionHandler serves inbound and outbound movements.
type TransactionHandler struct {
	recorder TransactionRecorder
	now      func() time.Time
	logger   *zap.Logger
}

// NewTransactionHandler constructs the HTTP handler adapter.
func NewTransactionHandler(recorder TransactionRecorder, logger *zap.Logger) *TransactionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{recorder: recorder, now: time.Now, logger: logger}
}

type transactionBody struct {
	OrderID     string `json:"order_id"`
	MaterialID  string `json:"material_id"`
	Quantity    *int   `json:"quantity"`
	Direction   string `json:"direction" binding:"required"`
	Date        string `json:"date"`
	UserID      string `json:"user_id"`
	SapOrderRef string `json:"sap_order_ref"`
}

// Create answers POST /transactions. An empty date means today.
func (h *TransactionHandler) Create(c *gin.Context) {
	var body transactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if body.Quantity == nil {
		badRequest(c, "quantity is required")
		return
	}

	typ, err := models.ParseTransactionType(body.Direction)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	date := h.now().UTC().Truncate(24 * time.Hour)
	if body.Date != "" {
		if date, err = models.ParseDate(body.Date); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	tx, err := h.recorder.Record(c.Request.Context(), transactions.Movement{
		OrderID:     body.OrderID,
		MaterialID:  body.MaterialID,
		Type:        typ,
		Quantity:    *body.Quantity,
		Date:        date,
		UserID:      body.UserID,
		SapOrderRef: body.SapOrderRef,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}
