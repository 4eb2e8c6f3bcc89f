package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/service/entries"
	"github.com/mamadbah2/sitecost/internal/service/split"
)

// EntryHandler serves ledger entries and their splits.
type EntryHandler struct {
	entries *entries.Service
	split   *split.Service
	logger  *zap.Logger
}

// NewEntryHandler constructs the entry HTTP adapter.
func NewEntryHandler(entrySvc *entries.Service, splitSvc *split.Service, logger *zap.Logger) *EntryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryHandler{entries: entrySvc, split: splitSvc, logger: logger}
}

// List returns one filtered page of entries.
func (h *EntryHandler) List(c *gin.Context) {
	filter, err := parseEntryFilter(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	page, err := h.entries.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Detail returns an entry with its audit history.
func (h *EntryHandler) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	detail, err := h.entries.Detail(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create stores a new entry.
func (h *EntryHandler) Create(c *gin.Context) {
	var fields models.EntryFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	entry, err := h.entries.Create(c.Request.Context(), fields, currentPrincipal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Update replaces the fields of an entry.
func (h *EntryHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var fields models.EntryFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	entry, err := h.entries.Update(c.Request.Context(), id, fields, currentPrincipal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete removes an entry.
func (h *EntryHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.entries.Delete(c.Request.Context(), id, currentPrincipal(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SplitPreview proposes an n-way split of an entry without persisting it.
func (h *EntryHandler) SplitPreview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "2"))
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("parts %q: %w", c.Query("n"), models.ErrInvalidArgument))
		return
	}
	preview, err := h.split.Preview(c.Request.Context(), id, n)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

type splitRequest struct {
	Drafts []models.EntryFields `json:"drafts"`
}

// SplitCommit replaces an entry with the confirmed drafts.
func (h *EntryHandler) SplitCommit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	created, err := h.split.Commit(c.Request.Context(), split.Commit{SourceID: id, Drafts: req.Drafts}, currentPrincipal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entries": created})
}

// parseEntryFilter reads the list query string; malformed values are rejected.
func parseEntryFilter(c *gin.Context) (models.EntryFilter, error) {
	filter := models.EntryFilter{
		LM:     models.LaborCode(strings.ToUpper(c.Query("lm"))),
		Posted: models.Posted(c.Query("posted")),
		Search: strings.TrimSpace(c.Query("q")),
		Sort:   c.Query("sort"),
		Dir:    models.SortDir(strings.ToLower(c.Query("dir"))),
	}

	var err error
	if filter.SupplierID, err = optionalID(c, "supplier"); err != nil {
		return filter, err
	}
	if filter.TypeID, err = optionalID(c, "type"); err != nil {
		return filter, err
	}
	if filter.DateFrom, err = optionalDate(c, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = optionalDate(c, "date_to"); err != nil {
		return filter, err
	}
	if filter.Page, err = optionalInt(c, "page"); err != nil {
		return filter, err
	}
	if filter.PageSize, err = optionalInt(c, "page_size"); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalID(c *gin.Context, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", key, raw, models.ErrInvalidArgument)
	}
	return &id, nil
}

func optionalDate(c *gin.Context, key string) (models.NullDate, error) {
	raw := c.Query(key)
	if raw == "" {
		return models.NullDate{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.NullDate{}, fmt.Errorf("%s %q: %w", key, raw, models.ErrInvalidArgument)
	}
	return d, nil
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, raw, models.ErrInvalidArgument)
	}
	return n, nil
}
