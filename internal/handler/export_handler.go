package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"invoiceflow/internal/export"
	"invoiceflow/internal/model"

	"github.com/rs/zerolog"
)

// WorkbookWriter renders the catalog as seen by a role.
type WorkbookWriter interface {
	Write(w io.Writer, role model.Role) error
}

// ExportHandler serves the inventory workbook download.
type ExportHandler struct {
	exporter WorkbookWriter
	logger   zerolog.Logger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exporter WorkbookWriter, logger zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		logger:   logger.With().Str("handler", "export").Logger(),
	}
}

// Download handles GET /api/products/export requests. Staff receive a
// workbook without the purchase price column.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	role := roleOf(r)

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, role); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn().Err(err).Msg("failed to send workbook")
	}
}
