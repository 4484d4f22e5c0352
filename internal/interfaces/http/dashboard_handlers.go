package http

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GetDashboard handles GET /api/dashboard
func (h *Handlers) GetDashboard(c *gin.Context) {
	dashboard, err := h.deps.Dashboard.GetDashboard(c.Request.Context(), h.now())
	if err != nil {
		h.respondError(c, "get_dashboard", err)
		return
	}
	ok(c, http.StatusOK, dashboard)
}

// ListRegistry handles GET /api/registry
func (h *Handlers) ListRegistry(c *gin.Context) {
	rows, err := h.deps.Dashboard.ListRegistry(c.Request.Context(), h.now())
	if err != nil {
		h.respondError(c, "list_registry", err)
		return
	}
	ok(c, http.StatusOK, rows)
}

// ExportRegistry handles GET /api/registry/export
func (h *Handlers) ExportRegistry(c *gin.Context) {
	if h.deps.Exporter == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "registry export is not configured"})
		return
	}

	now := h.now()
	rows, err := h.deps.Dashboard.ListRegistry(c.Request.Context(), now)
	if err != nil {
		h.respondError(c, "export_registry", err)
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.Write(&buf, rows); err != nil {
		h.respondError(c, "export_registry", err)
		return
	}

	filename := fmt.Sprintf("registry-%s.xlsx", now.Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
