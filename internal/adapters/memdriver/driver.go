// Package memdriver provides an in-memory queue driver. It backs tests and
// local development where no real queue endpoint is reachable, and mirrors
// the semantics the service relies on: journal copies on removal, priority
// ordered delivery and lookup ids that are unique per driver instance.
package memdriver

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

const journalSuffix = ";journal"

type (
	// Driver is an in-memory ports.QueueDriver. All operations are safe for
	// concurrent use.
	Driver struct {
		mu        sync.RWMutex
		endpoints map[string]*endpointState
		lookupSeq atomic.Uint64
	}

	endpointState struct {
		down   bool
		queues map[string]*queueState
	}

	queueState struct {
		descriptor domain.QueueDescriptor
		messages   []domain.MessageRecord
		journal    []domain.MessageRecord
	}
)

var _ ports.QueueDriver = (*Driver)(nil)

func New() *Driver {
	return &Driver{
		endpoints: make(map[string]*endpointState),
	}
}

// AddEndpoint registers an endpoint with no queues.
func (d *Driver) AddEndpoint(endpoint string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.endpoints[endpoint]; !ok {
		d.endpoints[endpoint] = &endpointState{queues: make(map[string]*queueState)}
	}
}

// AddQueue registers a queue under an endpoint, creating the endpoint when
// needed. The descriptor's path must be unique across the driver.
func (d *Driver) AddQueue(endpoint string, descriptor domain.QueueDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ep, ok := d.endpoints[endpoint]
	if !ok {
		ep = &endpointState{queues: make(map[string]*queueState)}
		d.endpoints[endpoint] = ep
	}

	ep.queues[descriptor.Path] = &queueState{descriptor: descriptor}
}

// SetEndpointDown toggles failure injection: a down endpoint refuses every
// operation until brought back up.
func (d *Driver) SetEndpointDown(endpoint string, down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ep, ok := d.endpoints[endpoint]; ok {
		ep.down = down
	}
}

func (d *Driver) EnumerateQueues(ctx context.Context, endpoint string, includeSystem bool) ([]domain.QueueDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ep, ok := d.endpoints[endpoint]
	if !ok || ep.down {
		return nil, domain.NewTransientError(endpoint, domain.ErrEndpointUnreachable)
	}

	descriptors := make([]domain.QueueDescriptor, 0, len(ep.queues))
	for _, q := range ep.queues {
		if !includeSystem && q.descriptor.IsSystemQueue() {
			continue
		}

		descriptor := q.descriptor
		descriptor.MessageCount = int64(len(q.messages))
		descriptor.Accessible = true
		descriptors = append(descriptors, descriptor)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Path < descriptors[j].Path
	})

	return descriptors, nil
}

func (d *Driver) PeekOrReceive(ctx context.Context, queuePath string, max int, peekOnly bool) ([]domain.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return nil, err
	}

	source := &q.messages
	if journal {
		source = &q.journal
	}

	ordered := orderForDelivery(*source)
	if max > 0 && len(ordered) > max {
		ordered = ordered[:max]
	}

	out := make([]domain.MessageRecord, len(ordered))
	copy(out, ordered)

	if !peekOnly {
		for _, record := range out {
			d.removeLocked(q, source, record.ID, !journal)
		}
	}

	return out, nil
}

func (d *Driver) GetByID(ctx context.Context, queuePath, messageID string) (*domain.MessageRecord, error) {
	return d.find(ctx, queuePath, func(m domain.MessageRecord) bool { return m.ID == messageID })
}

func (d *Driver) GetByLookupID(ctx context.Context, queuePath, lookupID string) (*domain.MessageRecord, error) {
	return d.find(ctx, queuePath, func(m domain.MessageRecord) bool { return m.LookupID == lookupID })
}

func (d *Driver) Send(ctx context.Context, queuePath string, record domain.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return err
	}
	if journal {
		return domain.NewAccessError(queuePath, domain.ErrAccessDenied)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.LookupID = strconv.FormatUint(d.lookupSeq.Add(1), 10)
	if record.ArrivedAt.IsZero() {
		record.ArrivedAt = time.Now().UTC()
	}
	record = record.MarkFieldValid(domain.FieldArrivedAt)

	q.messages = append(q.messages, record)

	return nil
}

func (d *Driver) Delete(ctx context.Context, queuePath, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return err
	}

	source := &q.messages
	if journal {
		source = &q.journal
	}

	if !d.removeLocked(q, source, messageID, !journal) {
		return domain.ErrMessageNotFound
	}

	return nil
}

func (d *Driver) CountMessages(ctx context.Context, queuePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return 0, err
	}

	if journal {
		return int64(len(q.journal)), nil
	}

	return int64(len(q.messages)), nil
}

func (d *Driver) Purge(ctx context.Context, queuePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return 0, err
	}

	if journal {
		purged := int64(len(q.journal))
		q.journal = nil
		return purged, nil
	}

	purged := int64(len(q.messages))
	q.messages = nil

	return purged, nil
}

func (d *Driver) TestConnection(ctx context.Context, endpoint string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ep, ok := d.endpoints[endpoint]
	if !ok || ep.down {
		return domain.NewTransientError(endpoint, domain.ErrEndpointUnreachable)
	}

	return nil
}

// resolve maps a queue path, with or without the journal suffix, to its
// queue state. Callers must hold d.mu.
func (d *Driver) resolve(queuePath string) (*queueState, bool, error) {
	journal := strings.HasSuffix(queuePath, journalSuffix)
	basePath := strings.TrimSuffix(queuePath, journalSuffix)

	for _, ep := range d.endpoints {
		if ep.down {
			continue
		}
		if q, ok := ep.queues[basePath]; ok {
			if journal && !q.descriptor.HasJournal {
				return nil, false, domain.NewQueueNotFoundError(queuePath)
			}

			return q, journal, nil
		}
	}

	return nil, false, domain.NewQueueNotFoundError(queuePath)
}

func (d *Driver) find(ctx context.Context, queuePath string, match func(domain.MessageRecord) bool) (*domain.MessageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	q, journal, err := d.resolve(queuePath)
	if err != nil {
		return nil, err
	}

	source := q.messages
	if journal {
		source = q.journal
	}

	for _, record := range source {
		if match(record) {
			found := record
			return &found, nil
		}
	}

	return nil, domain.ErrMessageNotFound
}

// removeLocked deletes one message by id. When the queue journals and the
// copy flag is set, the removed message is copied into the journal first.
func (d *Driver) removeLocked(q *queueState, source *[]domain.MessageRecord, messageID string, copyToJournal bool) bool {
	for i, record := range *source {
		if record.ID != messageID {
			continue
		}

		if copyToJournal && q.descriptor.HasJournal {
			q.journal = append(q.journal, record)
		}

		*source = append((*source)[:i], (*source)[i+1:]...)

		return true
	}

	return false
}

// orderForDelivery sorts by priority descending, then by arrival order.
// The input slice is not modified.
func orderForDelivery(messages []domain.MessageRecord) []domain.MessageRecord {
	ordered := make([]domain.MessageRecord, len(messages))
	copy(ordered, messages)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	return ordered
}
