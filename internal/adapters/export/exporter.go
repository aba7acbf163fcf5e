// Package export writes message batches to files. Every format except raw
// produces one self-describing textual document per batch; binary bodies are
// embedded base64-encoded so the document itself stays text. Raw mode writes
// each message body verbatim into its own file.
package export

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m-silliman/svc-queue-monitor/internal/codec"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

type (
	// FileExporter writes batches under a configured directory.
	FileExporter struct {
		cfg    config.ExportConfig
		logger infrastructure.Logger
	}

	exportedMessage struct {
		ID            string `json:"id" xml:"id"`
		LookupID      string `json:"lookup_id,omitempty" xml:"lookup-id,omitempty"`
		SentAt        string `json:"sent_at,omitempty" xml:"sent-at,omitempty"`
		ArrivedAt     string `json:"arrived_at,omitempty" xml:"arrived-at,omitempty"`
		Priority      uint8  `json:"priority" xml:"priority"`
		CorrelationID string `json:"correlation_id,omitempty" xml:"correlation-id,omitempty"`
		Format        string `json:"format" xml:"format"`
		BodyEncoding  string `json:"body_encoding" xml:"body-encoding"`
		Body          string `json:"body" xml:"body"`
	}

	exportEnvelope struct {
		XMLName    xml.Name          `json:"-" xml:"messages"`
		BatchID    string            `json:"batch_id" xml:"batch-id,attr"`
		ExportedAt string            `json:"exported_at" xml:"exported-at,attr"`
		Count      int               `json:"count" xml:"count,attr"`
		Messages   []exportedMessage `json:"messages" xml:"message"`
	}
)

const (
	bodyEncodingPlain  = "plain"
	bodyEncodingBase64 = "base64"
)

var _ ports.MessageExporter = (*FileExporter)(nil)

func NewFileExporter(cfg config.ExportConfig, logger infrastructure.Logger) *FileExporter {
	return &FileExporter{cfg: cfg, logger: logger}
}

func (e *FileExporter) Export(ctx context.Context, records []domain.MessageRecord, format ports.ExportFormat) (*domain.ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.cfg.MaxBatchSize > 0 && len(records) > e.cfg.MaxBatchSize {
		records = records[:e.cfg.MaxBatchSize]
	}

	if err := os.MkdirAll(e.cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	batchID := uuid.NewString()

	var (
		path string
		size int64
		err  error
	)

	switch format {
	case ports.ExportRaw:
		path, size, err = e.writeRaw(batchID, records)
	case ports.ExportJSON, ports.ExportXML, ports.ExportCSV, ports.ExportText:
		path, size, err = e.writeDocument(batchID, records, format)
	default:
		return nil, domain.NewDomainError(
			"UNSUPPORTED_EXPORT_FORMAT",
			fmt.Sprintf("unsupported export format %q", format),
			422,
			nil,
		)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("batch_id", batchID).
		Str("format", string(format)).
		Int("messages", len(records)).
		Str("path", path).
		Msg("batch exported")

	return &domain.ExportResult{
		BatchID:   batchID,
		FilePath:  path,
		Format:    string(format),
		Exported:  len(records),
		SizeBytes: size,
	}, nil
}

func (e *FileExporter) writeDocument(batchID string, records []domain.MessageRecord, format ports.ExportFormat) (string, int64, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case ports.ExportJSON:
		data, err = json.MarshalIndent(buildEnvelope(batchID, records), "", "  ")
	case ports.ExportXML:
		data, err = xml.MarshalIndent(buildEnvelope(batchID, records), "", "  ")
		if err == nil {
			data = append([]byte(xml.Header), data...)
		}
	case ports.ExportCSV:
		data, err = marshalCSV(records)
	case ports.ExportText:
		data = marshalText(batchID, records)
	}
	if err != nil {
		return "", 0, fmt.Errorf("encoding %s export: %w", format, err)
	}

	path := filepath.Join(e.cfg.Directory, fmt.Sprintf("batch-%s.%s", batchID, extension(format)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("writing export file: %w", err)
	}

	return path, int64(len(data)), nil
}

// writeRaw writes one file per message body into a batch directory. Bodies
// are written verbatim, binary included; this is the only mode that does not
// base64-encode.
func (e *FileExporter) writeRaw(batchID string, records []domain.MessageRecord) (string, int64, error) {
	dir := filepath.Join(e.cfg.Directory, "batch-"+batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating batch directory: %w", err)
	}

	var total int64
	for i, record := range records {
		name := fmt.Sprintf("message-%04d-%s%s", i+1, safeName(record.ID), rawExtension(record.Payload))

		if err := os.WriteFile(filepath.Join(dir, name), record.Payload.Raw, 0o644); err != nil {
			return "", 0, fmt.Errorf("writing message body: %w", err)
		}

		total += int64(len(record.Payload.Raw))
	}

	return dir, total, nil
}

func buildEnvelope(batchID string, records []domain.MessageRecord) exportEnvelope {
	envelope := exportEnvelope{
		BatchID:    batchID,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(records),
		Messages:   make([]exportedMessage, 0, len(records)),
	}

	for _, record := range records {
		envelope.Messages = append(envelope.Messages, toExported(record))
	}

	return envelope
}

func toExported(record domain.MessageRecord) exportedMessage {
	body, encoding := encodeBody(record.Payload)

	m := exportedMessage{
		ID:            record.ID,
		LookupID:      record.LookupID,
		Priority:      record.Priority,
		CorrelationID: record.CorrelationID,
		Format:        string(payloadFormat(record.Payload)),
		BodyEncoding:  encoding,
		Body:          body,
	}

	if record.HasField(domain.FieldSentAt) && !record.SentAt.IsZero() {
		m.SentAt = record.SentAt.UTC().Format(time.RFC3339)
	}
	if record.HasField(domain.FieldArrivedAt) && !record.ArrivedAt.IsZero() {
		m.ArrivedAt = record.ArrivedAt.UTC().Format(time.RFC3339)
	}

	return m
}

func marshalCSV(records []domain.MessageRecord) ([]byte, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"id", "lookup_id", "sent_at", "arrived_at", "priority", "correlation_id", "format", "body_encoding", "body"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, record := range records {
		m := toExported(record)
		row := []string{
			m.ID, m.LookupID, m.SentAt, m.ArrivedAt,
			strconv.Itoa(int(m.Priority)), m.CorrelationID, m.Format, m.BodyEncoding, m.Body,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return []byte(sb.String()), nil
}

func marshalText(batchID string, records []domain.MessageRecord) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Batch %s, %d message(s)\n", batchID, len(records))

	for i, record := range records {
		m := toExported(record)

		fmt.Fprintf(&sb, "\n--- Message %d ---\n", i+1)
		fmt.Fprintf(&sb, "ID:          %s\n", m.ID)
		if m.LookupID != "" {
			fmt.Fprintf(&sb, "Lookup ID:   %s\n", m.LookupID)
		}
		if m.SentAt != "" {
			fmt.Fprintf(&sb, "Sent:        %s\n", m.SentAt)
		}
		if m.CorrelationID != "" {
			fmt.Fprintf(&sb, "Correlation: %s\n", m.CorrelationID)
		}
		fmt.Fprintf(&sb, "Priority:    %d\n", m.Priority)
		fmt.Fprintf(&sb, "Format:      %s\n", m.Format)
		if m.BodyEncoding == bodyEncodingBase64 {
			fmt.Fprintf(&sb, "Body (base64):\n%s\n", m.Body)
		} else {
			fmt.Fprintf(&sb, "Body:\n%s\n", m.Body)
		}
	}

	return []byte(sb.String())
}

// encodeBody returns the body as a string plus its encoding marker. Textual
// payloads are embedded as-is; anything else is base64.
func encodeBody(payload domain.MessagePayload) (string, string) {
	switch payloadFormat(payload) {
	case domain.FormatBinary, domain.FormatUnknown:
		return base64.StdEncoding.EncodeToString(payload.Raw), bodyEncodingBase64
	default:
		return string(payload.Raw), bodyEncodingPlain
	}
}

func payloadFormat(payload domain.MessagePayload) domain.ContentFormat {
	if payload.Format != domain.FormatUnknown && payload.Format != "" {
		return payload.Format
	}

	return codec.DetectFormat(payload)
}

func extension(format ports.ExportFormat) string {
	switch format {
	case ports.ExportJSON:
		return "json"
	case ports.ExportXML:
		return "xml"
	case ports.ExportCSV:
		return "csv"
	default:
		return "txt"
	}
}

func rawExtension(payload domain.MessagePayload) string {
	switch payloadFormat(payload) {
	case domain.FormatJSON:
		return ".json"
	case domain.FormatXML:
		return ".xml"
	case domain.FormatText:
		return ".txt"
	default:
		return ".bin"
	}
}

func safeName(id string) string {
	if id == "" {
		return "message"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
