package ports

import (
	"context"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// ExportFormat names one of the supported export document formats.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportXML  ExportFormat = "xml"
	ExportCSV  ExportFormat = "csv"
	ExportText ExportFormat = "text"
	// ExportRaw writes the message bodies only, without metadata.
	ExportRaw ExportFormat = "raw"
)

// MessageExporter writes message batches to self-describing export files.
// Binary bodies are embedded base64-encoded so every export format except raw
// stays a single textual document.
type MessageExporter interface {
	Export(ctx context.Context, records []domain.MessageRecord, format ExportFormat) (*domain.ExportResult, error)
}
