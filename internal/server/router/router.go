package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/server/handlers"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// Handlers groups the HTTP adapters mounted by New.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Entries   *handlers.EntryHandler
	Suppliers *handlers.SupplierHandler
	Reports   *handlers.ReportHandler
	Accounts  *handlers.AccountHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(h.Auth.RequireAuth())
	secured.GET("/auth/me", h.Auth.Me)

	view := handlers.Require(models.CapViewEntry)
	secured.GET("/dashboard", view, h.Reports.Dashboard)
	secured.GET("/entries", view, h.Entries.List)
	secured.GET("/entries/:id", view, h.Entries.Detail)
	secured.POST("/entries", handlers.Require(models.CapAddEntry), h.Entries.Create)
	secured.PUT("/entries/:id", handlers.Require(models.CapChangeEntry), h.Entries.Update)
	secured.DELETE("/entries/:id", handlers.Require(models.CapDeleteEntry), h.Entries.Delete)
	secured.GET("/entries/:id/split", handlers.Require(models.CapChangeEntry), h.Entries.SplitPreview)
	secured.POST("/entries/:id/split", handlers.Require(models.CapChangeEntry), h.Entries.SplitCommit)
	secured.GET("/exports/entries.xlsx", view, h.Reports.ExportXLSX)
	secured.GET("/audit-log", handlers.Require(models.CapViewAudit), h.Reports.AuditLog)

	secured.GET("/suppliers", handlers.Require(models.CapViewSupplier), h.Suppliers.List)
	secured.GET("/suppliers/:id", handlers.Require(models.CapViewSupplier), h.Suppliers.Detail)
	secured.POST("/suppliers", handlers.Require(models.CapAddSupplier), h.Suppliers.Create)
	secured.POST("/suppliers/:id/rename", handlers.Require(models.CapChangeSupplier), h.Suppliers.Rename)
	secured.DELETE("/suppliers/:id", handlers.Require(models.CapDeleteSupplier), h.Suppliers.Delete)

	secured.GET("/types", handlers.Require(models.CapViewType), h.Suppliers.ListTypes)
	secured.POST("/types", handlers.Require(models.CapAddType), h.Suppliers.CreateType)
	secured.DELETE("/types/:id", handlers.Require(models.CapChangeType), h.Suppliers.DeleteType)

	staff := secured.Group("")
	staff.Use(handlers.RequireStaff())
	staff.GET("/users", h.Accounts.ListUsers)
	staff.POST("/users", h.Accounts.CreateUser)
	staff.PUT("/users/:id", h.Accounts.UpdateUser)
	staff.DELETE("/users/:id", h.Accounts.DeleteUser)
	staff.GET("/groups", h.Accounts.ListGroups)
	staff.POST("/groups", h.Accounts.CreateGroup)
	staff.PUT("/groups/:id", h.Accounts.UpdateGroup)
	staff.DELETE("/groups/:id", h.Accounts.DeleteGroup)
	staff.GET("/capabilities", h.Accounts.Capabilities)

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

// requestIDMiddleware keeps a caller supplied request id or mints one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
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
