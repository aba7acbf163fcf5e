package ports

import (
	"context"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

type (
	// QueueEnumerator lists the queues visible on an endpoint.
	QueueEnumerator interface {
		EnumerateQueues(ctx context.Context, endpoint string, includeSystem bool) ([]domain.QueueDescriptor, error)
	}

	// MessageReader retrieves messages without or with removal.
	MessageReader interface {
		// PeekOrReceive reads up to max messages from the queue. With
		// peekOnly the messages stay in the queue.
		PeekOrReceive(ctx context.Context, queuePath string, max int, peekOnly bool) ([]domain.MessageRecord, error)

		GetByID(ctx context.Context, queuePath, messageID string) (*domain.MessageRecord, error)
		GetByLookupID(ctx context.Context, queuePath, lookupID string) (*domain.MessageRecord, error)
	}

	// MessageWriter sends and removes individual messages.
	MessageWriter interface {
		Send(ctx context.Context, queuePath string, record domain.MessageRecord) error
		Delete(ctx context.Context, queuePath, messageID string) error
	}

	// MessageCounter reports how many messages a queue currently holds.
	// Used for journal counts during refresh and for purge previews.
	MessageCounter interface {
		CountMessages(ctx context.Context, queuePath string) (int64, error)
	}

	// QueuePurger removes all messages from a queue and reports the count.
	QueuePurger interface {
		Purge(ctx context.Context, queuePath string) (int64, error)
	}

	// ConnectionTester probes an endpoint without mutating anything.
	ConnectionTester interface {
		TestConnection(ctx context.Context, endpoint string, timeout time.Duration) error
	}

	// QueueDriver is the raw capability surface of one queue-system
	// endpoint. Implementations perform the actual I/O; everything above
	// them treats driver failures as data, not as fatal conditions.
	QueueDriver interface {
		QueueEnumerator
		MessageReader
		MessageWriter
		MessageCounter
		QueuePurger
		ConnectionTester
	}
)
