package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/service/audit"
	"github.com/mamadbah2/sitecost/internal/service/reporting"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves the dashboard, exports and the audit log.
type ReportHandler struct {
	reporting *reporting.Service
	audit     *audit.Service
	logger    *zap.Logger
}

// NewReportHandler constructs the reporting HTTP adapter.
func NewReportHandler(reportingSvc *reporting.Service, auditSvc *audit.Service, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reporting: reportingSvc, audit: auditSvc, logger: logger}
}

// Dashboard returns the ledger aggregates.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	d, err := h.reporting.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ExportXLSX streams the filtered entry list as a workbook.
func (h *ReportHandler) ExportXLSX(c *gin.Context) {
	filter, err := parseEntryFilter(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	n, err := h.reporting.WriteXLSX(c.Request.Context(), filter, &buf)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("entries exported", zap.Int("entries", n))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "entries.xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// AuditLog returns one page of the audit log.
func (h *ReportHandler) AuditLog(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	result, err := h.audit.List(c.Request.Context(), page)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
