package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// Handlers groups the HTTP adapters. A nil handler leaves its routes out.
type Handlers struct {
	Trays        *handlers.TrayHandler
	Locks        *handlers.LockHandler
	Transactions *handlers.TransactionHandler
	Reconcile    *handlers.ReconcileHandler
	Views        *handlers.ViewHandler
	SapOrders    *handlers.SapOrderHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	if h.Trays != nil {
		r.GET("/trays", h.Trays.List)
		r.GET("/trays/search", h.Trays.Search)
	}

	if h.Locks != nil {
		locks := r.Group("/locks")
		locks.POST("", h.Locks.Create)
		locks.GET("/active", h.Locks.Active)
		locks.GET("/:id", h.Locks.Get)
		locks.POST("/:id/complete", h.Locks.Complete)
		locks.POST("/:id/release", h.Locks.Release)
		r.GET("/stations", h.Locks.Stations)
	}

	if h.Transactions != nil {
		r.POST("/transactions", h.Transactions.Create)
	}

	if h.SapOrders != nil {
		sap := r.Group("/sap-orders")
		sap.GET("", h.SapOrders.List)
		sap.GET("/trays/:tray_id", h.SapOrders.InTray)
		sap.POST("/pick", h.SapOrders.Pick)
	}

	if h.Reconcile != nil {
		reconcile := r.Group("/reconcile")
		reconcile.GET("", h.Reconcile.List)
		reconcile.GET("/summary", h.Reconcile.Summary)
		reconcile.GET("/:material", h.Reconcile.Classify)
		reconcile.GET("/:material/trays", h.Reconcile.DrillDown)
	}

	if h.Views != nil {
		views := r.Group("/views")
		views.POST("", h.Views.Open)
		views.GET("/:name", h.Views.Get)
		views.PUT("/:name", h.Views.SetQuery)
		views.DELETE("/:name", h.Views.Close)
		views.POST("/:name/refresh", h.Views.Refresh)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

// requestIDMiddleware echoes the caller's request ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")))
	}
}
