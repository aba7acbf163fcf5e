// Package amqpdriver implements the queue driver against an AMQP 0-9-1
// broker. Destructive operations use a broker channel directly; enumeration
// and non-destructive reads go through the management HTTP API, which is the
// only surface that exposes queue depths and message browsing.
package amqpdriver

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

const (
	lookupIDHeader = "x-lookup-id"

	payloadEncodingBase64 = "base64"

	// deleteScanLimit bounds how many messages a targeted delete will walk
	// before giving up. AMQP has no delete-by-id primitive; the emulation
	// acks the match and requeues everything else.
	deleteScanLimit = 10000

	journalSuffix = ";journal"
)

type (
	// Driver is the AMQP implementation of ports.QueueDriver. One driver
	// serves one broker; the supervisor's endpoint identity selects it.
	Driver struct {
		cfg        config.DriverConfig
		management *managementClient
		logger     infrastructure.Logger

		mu      sync.Mutex
		conn    *amqp.Connection
		channel *amqp.Channel
	}
)

var _ ports.QueueDriver = (*Driver)(nil)

func New(cfg config.DriverConfig, logger infrastructure.Logger) *Driver {
	return &Driver{
		cfg:        cfg,
		management: newManagementClient(cfg, logger),
		logger:     logger,
	}
}

// Close releases the broker connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel != nil {
		_ = d.channel.Close()
		d.channel = nil
	}
	if d.conn != nil && !d.conn.IsClosed() {
		err := d.conn.Close()
		d.conn = nil
		return err
	}

	return nil
}

func (d *Driver) EnumerateQueues(ctx context.Context, endpoint string, includeSystem bool) ([]domain.QueueDescriptor, error) {
	queues, err := d.management.listQueues(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	descriptors := make([]domain.QueueDescriptor, 0, len(queues))
	for _, q := range queues {
		descriptor := domain.QueueDescriptor{
			Path:         q.Name,
			DisplayName:  q.Name,
			Category:     categorize(q),
			MessageCount: q.Messages,
			Accessible:   true,
		}
		if !includeSystem && descriptor.IsSystemQueue() {
			continue
		}

		descriptors = append(descriptors, descriptor)
	}

	return descriptors, nil
}

func (d *Driver) PeekOrReceive(ctx context.Context, queuePath string, max int, peekOnly bool) ([]domain.MessageRecord, error) {
	name, err := queueName(queuePath)
	if err != nil {
		return nil, err
	}

	if max <= 0 {
		max = 100
	}

	ackMode := ackModeReceive
	if peekOnly {
		ackMode = ackModePeek
	}

	messages, err := d.management.getMessages(ctx, d.cfg.Host, name, max, ackMode)
	if err != nil {
		return nil, err
	}

	records := make([]domain.MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, toRecord(m))
	}

	return records, nil
}

func (d *Driver) GetByID(ctx context.Context, queuePath, messageID string) (*domain.MessageRecord, error) {
	return d.findMessage(ctx, queuePath, func(r domain.MessageRecord) bool {
		return r.ID == messageID
	})
}

func (d *Driver) GetByLookupID(ctx context.Context, queuePath, lookupID string) (*domain.MessageRecord, error) {
	return d.findMessage(ctx, queuePath, func(r domain.MessageRecord) bool {
		return r.LookupID == lookupID
	})
}

func (d *Driver) Send(ctx context.Context, queuePath string, record domain.MessageRecord) error {
	name, err := queueName(queuePath)
	if err != nil {
		return err
	}

	ch, err := d.openChannel()
	if err != nil {
		return domain.NewTransientError(d.cfg.Host, err)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.LookupID == "" {
		record.LookupID = uuid.NewString()
	}

	deliveryMode := amqp.Transient
	if record.Recoverable {
		deliveryMode = amqp.Persistent
	}

	publishing := amqp.Publishing{
		MessageId:     record.ID,
		CorrelationId: record.CorrelationID,
		Priority:      record.Priority,
		ReplyTo:       record.ResponseQueuePath,
		DeliveryMode:  deliveryMode,
		Timestamp:     record.SentAt,
		ContentType:   contentType(record.Payload.Format),
		Body:          record.Payload.Raw,
		Headers: amqp.Table{
			lookupIDHeader: record.LookupID,
		},
	}

	if err := ch.PublishWithContext(ctx, "", name, false, false, publishing); err != nil {
		d.invalidateChannel()
		return domain.NewTransientError(d.cfg.Host, err)
	}

	return nil
}

// Delete removes one message by id. The broker has no targeted delete, so
// the message is located with basic.get under manual ack: the match is
// acked away, everything else is requeued.
func (d *Driver) Delete(ctx context.Context, queuePath, messageID string) error {
	name, err := queueName(queuePath)
	if err != nil {
		return err
	}

	ch, err := d.openChannel()
	if err != nil {
		return domain.NewTransientError(d.cfg.Host, err)
	}

	for scanned := 0; scanned < deleteScanLimit; scanned++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		delivery, ok, err := ch.Get(name, false)
		if err != nil {
			d.invalidateChannel()
			return domain.NewTransientError(d.cfg.Host, err)
		}
		if !ok {
			break
		}

		if delivery.MessageId == messageID {
			if err := delivery.Ack(false); err != nil {
				return domain.NewTransientError(d.cfg.Host, err)
			}

			return nil
		}

		if err := delivery.Nack(false, true); err != nil {
			return domain.NewTransientError(d.cfg.Host, err)
		}
	}

	return domain.ErrMessageNotFound
}

func (d *Driver) CountMessages(ctx context.Context, queuePath string) (int64, error) {
	name, err := queueName(queuePath)
	if err != nil {
		return 0, err
	}

	info, err := d.management.queueInfo(ctx, d.cfg.Host, name)
	if err != nil {
		return 0, err
	}

	return info.Messages, nil
}

func (d *Driver) Purge(ctx context.Context, queuePath string) (int64, error) {
	name, err := queueName(queuePath)
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ch, err := d.openChannel()
	if err != nil {
		return 0, domain.NewTransientError(d.cfg.Host, err)
	}

	purged, err := ch.QueuePurge(name, false)
	if err != nil {
		d.invalidateChannel()
		return 0, domain.NewTransientError(d.cfg.Host, err)
	}

	return int64(purged), nil
}

func (d *Driver) TestConnection(ctx context.Context, endpoint string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = d.cfg.ConnectTimeout
	}

	conn, err := amqp.DialConfig(d.brokerURL(), amqp.Config{
		Vhost:     d.cfg.VirtualHost,
		Heartbeat: d.cfg.Heartbeat,
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return domain.NewTransientError(endpoint, err)
	}

	return conn.Close()
}

func (d *Driver) findMessage(ctx context.Context, queuePath string, match func(domain.MessageRecord) bool) (*domain.MessageRecord, error) {
	name, err := queueName(queuePath)
	if err != nil {
		return nil, err
	}

	messages, err := d.management.getMessages(ctx, d.cfg.Host, name, deleteScanLimit, ackModePeek)
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		record := toRecord(m)
		if match(record) {
			return &record, nil
		}
	}

	return nil, domain.ErrMessageNotFound
}

// openChannel returns the cached channel, dialing the broker on first use or
// after a connection loss.
func (d *Driver) openChannel() (*amqp.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil && !d.conn.IsClosed() && d.channel != nil {
		return d.channel, nil
	}

	conn, err := amqp.DialConfig(d.brokerURL(), amqp.Config{
		Vhost:     d.cfg.VirtualHost,
		Heartbeat: d.cfg.Heartbeat,
		Dial:      amqp.DefaultDial(d.cfg.ConnectTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	d.conn = conn
	d.channel = channel

	d.logger.Info().
		Str("host", d.cfg.Host).
		Str("vhost", d.cfg.VirtualHost).
		Msg("connected to broker")

	return channel, nil
}

func (d *Driver) invalidateChannel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channel != nil {
		_ = d.channel.Close()
		d.channel = nil
	}
	if d.conn != nil && !d.conn.IsClosed() {
		_ = d.conn.Close()
	}
	d.conn = nil
}

func (d *Driver) brokerURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", d.cfg.Username, d.cfg.Password, d.cfg.Host, d.cfg.Port)
}

// queueName strips nothing but rejects journal addressing: AMQP queues have
// no journal counterpart.
func queueName(queuePath string) (string, error) {
	if strings.HasSuffix(queuePath, journalSuffix) {
		return "", domain.NewQueueNotFoundError(queuePath)
	}
	if queuePath == "" {
		return "", domain.NewQueueNotFoundError(queuePath)
	}

	return queuePath, nil
}

func categorize(q managedQueue) domain.QueueCategory {
	switch {
	case strings.HasPrefix(q.Name, "amq."):
		return domain.QueueCategorySystem
	case strings.HasSuffix(q.Name, ".dlq") || strings.Contains(q.Name, "dead-letter"):
		return domain.QueueCategoryDeadLetter
	case q.Exclusive:
		return domain.QueueCategoryPrivate
	default:
		return domain.QueueCategoryPublic
	}
}

func contentType(format domain.ContentFormat) string {
	switch format {
	case domain.FormatJSON:
		return "application/json"
	case domain.FormatXML:
		return "application/xml"
	case domain.FormatText:
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func toRecord(m retrievedMessage) domain.MessageRecord {
	record := domain.MessageRecord{
		ID:                m.Properties.MessageID,
		CorrelationID:     m.Properties.CorrelationID,
		Priority:          m.Properties.Priority,
		ResponseQueuePath: m.Properties.ReplyTo,
		Recoverable:       m.Properties.DeliveryMode == amqp.Persistent,
		SentAt:            timestampFromEpoch(m.Properties.Timestamp),
		Payload:           domain.NewPayload(decodeBody(m)),
	}

	if lookupID, ok := m.Properties.Headers[lookupIDHeader].(string); ok {
		record.LookupID = lookupID
	}

	if m.Properties.CorrelationID != "" {
		record.ValidFields |= domain.FieldCorrelationID
	}
	if !record.SentAt.IsZero() {
		record.ValidFields |= domain.FieldSentAt
	}
	if m.Properties.ReplyTo != "" {
		record.ValidFields |= domain.FieldResponseQueue
	}
	record.ValidFields |= domain.FieldPriority

	return record
}

// decodeBody restores the raw message bytes. The management API returns
// non-UTF-8 bodies base64-encoded and flags them via payload_encoding.
func decodeBody(m retrievedMessage) []byte {
	if m.PayloadEncoding == payloadEncodingBase64 {
		if decoded, err := base64.StdEncoding.DecodeString(m.Payload); err == nil {
			return decoded
		}
	}

	return []byte(m.Payload)
}
