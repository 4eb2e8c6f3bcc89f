package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/service/entries"
	"github.com/mamadbah2/sitecost/internal/service/suppliers"
)

// SupplierHandler serves suppliers and type categories.
type SupplierHandler struct {
	suppliers *suppliers.Service
	entries   *entries.Service
	logger    *zap.Logger
}

// NewSupplierHandler constructs the supplier HTTP adapter.
func NewSupplierHandler(supplierSvc *suppliers.Service, entrySvc *entries.Service, logger *zap.Logger) *SupplierHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierHandler{suppliers: supplierSvc, entries: entrySvc, logger: logger}
}

func sortParams(c *gin.Context) (string, models.SortDir) {
	return c.Query("sort"), models.SortDir(strings.ToLower(c.Query("dir")))
}

// List returns every supplier with its totals.
func (h *SupplierHandler) List(c *gin.Context) {
	key, dir := sortParams(c)
	list, err := h.suppliers.List(c.Request.Context(), key, dir)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": list})
}

// Detail returns a supplier with its entries and subtotals.
func (h *SupplierHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	key, dir := sortParams(c)
	detail, err := h.suppliers.Detail(c.Request.Context(), id, key, dir)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type nameRequest struct {
	Name string `json:"name"`
}

// Create stores a new supplier.
func (h *SupplierHandler) Create(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	supplier, err := h.suppliers.Create(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

type renameRequest struct {
	Name    string `json:"name"`
	Confirm bool   `json:"confirm"`
}

// Rename renames a supplier, merging into an existing one when confirmed.
func (h *SupplierHandler) Rename(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	result, err := h.suppliers.Rename(c.Request.Context(), id, req.Name, req.Confirm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete removes a supplier.
func (h *SupplierHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.suppliers.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTypes returns the type categories ordered by code.
func (h *SupplierHandler) ListTypes(c *gin.Context) {
	types, err := h.entries.Types(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

type typeRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreateType stores a type category.
func (h *SupplierHandler) CreateType(c *gin.Context) {
	var req typeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	t, err := h.entries.CreateType(c.Request.Context(), req.Code, req.Description)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// DeleteType removes a type category.
func (h *SupplierHandler) DeleteType(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.entries.DeleteType(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
