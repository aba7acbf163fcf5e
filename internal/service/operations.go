package service

import (
	"context"
	"fmt"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/codec"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

type (
	// OperationsService orchestrates message operations on top of the queue
	// driver. It stays thin: retrieval, classification and rendering are
	// delegated to the driver and the codec; this layer adds confirmation
	// gates, per-item outcomes and telemetry.
	OperationsService interface {
		ListMessages(ctx context.Context, queuePath string, page, pageSize int) ([]domain.MessageRecord, error)
		InspectMessage(ctx context.Context, queuePath, lookupID string) (*codec.Rendering, error)

		MoveMessage(ctx context.Context, sourcePath, targetPath, messageID string) (*domain.MoveResult, error)
		ResendMessage(ctx context.Context, queuePath, messageID, targetPath string) error

		DeleteMessage(ctx context.Context, queuePath, messageID string, confirmed bool) error
		DeleteMessages(ctx context.Context, queuePath string, messageIDs []string, confirmed bool) (*domain.BulkResult, error)

		PurgePreview(ctx context.Context, queuePath string) (*domain.PurgePreview, error)
		Purge(ctx context.Context, queuePath string, confirmed bool) (*domain.PurgeResult, error)

		ExportMessages(ctx context.Context, queuePath string, messageIDs []string, format ports.ExportFormat) (*domain.ExportResult, error)
	}

	operationsService struct {
		driver   ports.QueueDriver
		exporter ports.MessageExporter
		cache    ports.RenderCache
		cfg      config.CodecConfig
		logger   infrastructure.Logger
		metrics  infrastructure.Metrics
	}
)

func NewOperationsService(
	driver ports.QueueDriver,
	exporter ports.MessageExporter,
	cache ports.RenderCache,
	cfg config.CodecConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) OperationsService {
	if metrics == nil {
		metrics = infrastructure.NewNoopMetrics()
	}

	return &operationsService{
		driver:   driver,
		exporter: exporter,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// ListMessages peeks one page of a queue without removing anything. Paging is
// offset based over the queue's current delivery order; page numbering starts
// at 1.
func (s *operationsService) ListMessages(ctx context.Context, queuePath string, page, pageSize int) ([]domain.MessageRecord, error) {
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}
	if page <= 0 {
		page = 1
	}

	messages, err := s.driver.PeekOrReceive(ctx, queuePath, page*pageSize, true)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	if offset >= len(messages) {
		return []domain.MessageRecord{}, nil
	}

	pageEnd := offset + pageSize
	if pageEnd > len(messages) {
		pageEnd = len(messages)
	}

	records := messages[offset:pageEnd]
	for i := range records {
		records[i].Payload = records[i].Payload.WithFormat(codec.DetectFormat(records[i].Payload))
	}

	return records, nil
}

// InspectMessage renders one message body for display, serving repeated
// inspections of the same lookup id from the render cache.
func (s *operationsService) InspectMessage(ctx context.Context, queuePath, lookupID string) (*codec.Rendering, error) {
	if s.cache != nil && s.cfg.CacheRenders {
		if cached, err := s.cache.Get(ctx, lookupID); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.logger.Warn().Err(err).Str("lookup_id", lookupID).Msg("render cache read failed")
		}
	}

	record, err := s.driver.GetByLookupID(ctx, queuePath, lookupID)
	if err != nil {
		return nil, err
	}

	rendering := codec.FormatForDisplay(record.Payload, s.cfg.MaxRenderSize)
	s.metrics.RecordClassification(string(rendering.Format))

	if s.cache != nil && s.cfg.CacheRenders {
		if err := s.cache.Set(ctx, lookupID, rendering); err != nil {
			s.logger.Warn().Err(err).Str("lookup_id", lookupID).Msg("render cache write failed")
		}
	}

	return &rendering, nil
}

// MoveMessage is copy-then-delete with at-least-once semantics. When the
// delete step fails after a successful copy the message exists in both
// queues, and the result reports MovedDuplicated instead of pretending the
// move was clean.
func (s *operationsService) MoveMessage(ctx context.Context, sourcePath, targetPath, messageID string) (*domain.MoveResult, error) {
	start := time.Now()

	result := &domain.MoveResult{
		MessageID:  messageID,
		SourcePath: sourcePath,
		TargetPath: targetPath,
	}

	record, err := s.driver.GetByID(ctx, sourcePath, messageID)
	if err != nil {
		s.metrics.RecordOperation("move", false, time.Since(start))
		return nil, err
	}

	if err := s.driver.Send(ctx, targetPath, *record); err != nil {
		s.metrics.RecordOperation("move", false, time.Since(start))

		result.Outcome = domain.MoveFailed
		result.Diagnostic = err.Error()

		return result, err
	}

	if err := s.driver.Delete(ctx, sourcePath, messageID); err != nil {
		// The copy landed; only the source removal failed.
		s.metrics.RecordOperation("move", false, time.Since(start))

		result.Outcome = domain.MovedDuplicated
		result.Diagnostic = fmt.Sprintf("copied to target but source delete failed: %v", err)

		s.logger.Warn().
			Str("message_id", messageID).
			Str("source", sourcePath).
			Str("target", targetPath).
			Err(err).
			Msg("move left a duplicate in the source queue")

		return result, nil
	}

	result.Outcome = domain.MovedCleanly
	s.metrics.RecordOperation("move", true, time.Since(start))
	s.invalidateRender(ctx, sourcePath, record.LookupID)

	return result, nil
}

// ResendMessage sends a fresh copy of an existing message to the target
// queue. The original stays where it is.
func (s *operationsService) ResendMessage(ctx context.Context, queuePath, messageID, targetPath string) error {
	start := time.Now()

	record, err := s.driver.GetByID(ctx, queuePath, messageID)
	if err != nil {
		s.metrics.RecordOperation("resend", false, time.Since(start))
		return err
	}

	if targetPath == "" {
		targetPath = queuePath
	}

	copied := *record
	copied.ID = ""
	copied.LookupID = ""
	copied.SentAt = time.Now().UTC()

	if err := s.driver.Send(ctx, targetPath, copied); err != nil {
		s.metrics.RecordOperation("resend", false, time.Since(start))
		return err
	}

	s.metrics.RecordOperation("resend", true, time.Since(start))

	return nil
}

func (s *operationsService) DeleteMessage(ctx context.Context, queuePath, messageID string, confirmed bool) error {
	if !confirmed {
		return domain.ErrConfirmationRequired
	}

	start := time.Now()
	lookupID := s.resolveLookupID(ctx, queuePath, messageID)

	err := s.driver.Delete(ctx, queuePath, messageID)
	s.metrics.RecordOperation("delete", err == nil, time.Since(start))
	if err != nil {
		return err
	}

	s.invalidateRender(ctx, queuePath, lookupID)

	return nil
}

// DeleteMessages removes a set of messages with per-item outcomes. A failed
// item never aborts the remainder of the batch.
func (s *operationsService) DeleteMessages(ctx context.Context, queuePath string, messageIDs []string, confirmed bool) (*domain.BulkResult, error) {
	if !confirmed {
		return nil, domain.ErrConfirmationRequired
	}

	start := time.Now()
	result := &domain.BulkResult{}

	for _, messageID := range messageIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		lookupID := s.resolveLookupID(ctx, queuePath, messageID)

		err := s.driver.Delete(ctx, queuePath, messageID)
		result.Add(messageID, err)
		if err == nil {
			s.invalidateRender(ctx, queuePath, lookupID)
		}
	}

	s.metrics.RecordOperation("bulk_delete", result.Failed == 0, time.Since(start))

	s.logger.Info().
		Str("queue", queuePath).
		Int("requested", result.Requested).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("bulk delete completed")

	return result, nil
}

// PurgePreview reports how many messages a purge would remove, so the caller
// can render an explicit confirmation.
func (s *operationsService) PurgePreview(ctx context.Context, queuePath string) (*domain.PurgePreview, error) {
	count, err := s.driver.CountMessages(ctx, queuePath)
	if err != nil {
		return nil, err
	}

	return &domain.PurgePreview{QueuePath: queuePath, MessageCount: count}, nil
}

func (s *operationsService) Purge(ctx context.Context, queuePath string, confirmed bool) (*domain.PurgeResult, error) {
	if !confirmed {
		return nil, domain.ErrConfirmationRequired
	}

	start := time.Now()

	purged, err := s.driver.Purge(ctx, queuePath)
	s.metrics.RecordOperation("purge", err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("queue", queuePath).
		Int64("purged", purged).
		Msg("queue purged")

	return &domain.PurgeResult{QueuePath: queuePath, Purged: purged}, nil
}

// ExportMessages writes the selected messages, or the whole visible queue
// when no ids are given, to an export file.
func (s *operationsService) ExportMessages(ctx context.Context, queuePath string, messageIDs []string, format ports.ExportFormat) (*domain.ExportResult, error) {
	start := time.Now()

	var (
		records []domain.MessageRecord
		err     error
	)

	if len(messageIDs) == 0 {
		records, err = s.driver.PeekOrReceive(ctx, queuePath, 0, true)
	} else {
		records, err = s.collectByID(ctx, queuePath, messageIDs)
	}
	if err != nil {
		s.metrics.RecordOperation("export", false, time.Since(start))
		return nil, err
	}

	for i := range records {
		records[i].Payload = records[i].Payload.WithFormat(codec.DetectFormat(records[i].Payload))
	}

	result, err := s.exporter.Export(ctx, records, format)
	s.metrics.RecordOperation("export", err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *operationsService) collectByID(ctx context.Context, queuePath string, messageIDs []string) ([]domain.MessageRecord, error) {
	records := make([]domain.MessageRecord, 0, len(messageIDs))
	for _, messageID := range messageIDs {
		record, err := s.driver.GetByID(ctx, queuePath, messageID)
		if err != nil {
			return nil, fmt.Errorf("collecting message %s: %w", messageID, err)
		}

		records = append(records, *record)
	}

	return records, nil
}

// invalidateRender drops the cached rendering for a removed message. The
// cache is keyed by lookup id, so callers resolve it before the delete. Best
// effort.
func (s *operationsService) invalidateRender(ctx context.Context, queuePath, lookupID string) {
	if s.cache == nil || !s.cfg.CacheRenders || lookupID == "" {
		return
	}

	if err := s.cache.Invalidate(ctx, lookupID); err != nil {
		s.logger.Debug().Err(err).
			Str("queue", queuePath).
			Str("lookup_id", lookupID).
			Msg("render cache invalidation failed")
	}
}

// resolveLookupID fetches the lookup id for a message about to be removed.
// Returns empty when the message cannot be read; the delete proceeds anyway.
func (s *operationsService) resolveLookupID(ctx context.Context, queuePath, messageID string) string {
	if s.cache == nil || !s.cfg.CacheRenders {
		return ""
	}

	record, err := s.driver.GetByID(ctx, queuePath, messageID)
	if err != nil {
		return ""
	}

	return record.LookupID
}
