package domain

type (
	QueueCategory string

	// QueueDescriptor describes one queue on an endpoint as of the last
	// refresh cycle. Descriptors are replaced wholesale on every poll, never
	// patched field-by-field from stale data.
	QueueDescriptor struct {
		Path         string
		DisplayName  string
		Category     QueueCategory
		MessageCount int64
		JournalCount int64
		HasJournal   bool
		Accessible   bool
		LastError    string
	}
)

const (
	QueueCategoryPrivate                 QueueCategory = "private"
	QueueCategoryPublic                  QueueCategory = "public"
	QueueCategorySystem                  QueueCategory = "system"
	QueueCategoryJournal                 QueueCategory = "journal"
	QueueCategoryDeadLetter              QueueCategory = "dead_letter"
	QueueCategoryTransactionalDeadLetter QueueCategory = "transactional_dead_letter"
)

const journalSuffix = ";journal"

// JournalPath derives the path of the queue's journal. The journal is not a
// separately owned object; it is addressed through its source queue.
func (q QueueDescriptor) JournalPath() string {
	if !q.HasJournal {
		return ""
	}

	return q.Path + journalSuffix
}

// IsSystemQueue reports whether the queue belongs to the endpoint's system
// plumbing rather than to an application.
func (q QueueDescriptor) IsSystemQueue() bool {
	switch q.Category {
	case QueueCategorySystem, QueueCategoryDeadLetter, QueueCategoryTransactionalDeadLetter:
		return true
	default:
		return false
	}
}
