package domain

import (
	"time"
)

type (
	// MetadataField identifies one optional metadata field on a MessageRecord.
	// Driver reads of these fields can fail independently of the message body;
	// the record tracks which fields were actually readable so callers can
	// distinguish "legitimately empty" from "unreadable".
	MetadataField uint16

	// MessageRecord is a snapshot of one message taken during a peek or
	// receive. Records are recreated wholesale on each poll; they are not
	// mutated in place across refresh cycles.
	MessageRecord struct {
		ID       string
		LookupID string

		SentAt    time.Time
		ArrivedAt time.Time

		// Priority is ordinal 0-7, higher is more urgent.
		Priority uint8

		CorrelationID string

		// ResponseQueuePath and AdminQueuePath reference queues by path only.
		// They are weak references, not ownership.
		ResponseQueuePath string
		AdminQueuePath    string

		Transactional bool
		Recoverable   bool
		Journaled     bool

		Payload MessagePayload

		// ValidFields records which optional metadata fields were readable
		// when the record was captured.
		ValidFields MetadataField
	}
)

const (
	FieldSentAt MetadataField = 1 << iota
	FieldArrivedAt
	FieldPriority
	FieldCorrelationID
	FieldResponseQueue
	FieldAdminQueue

	// AllMetadataFields marks every optional field as readable.
	AllMetadataFields = FieldSentAt | FieldArrivedAt | FieldPriority |
		FieldCorrelationID | FieldResponseQueue | FieldAdminQueue
)

const (
	MinPriority uint8 = 0
	MaxPriority uint8 = 7
)

// HasField reports whether the given metadata field was readable when the
// record was captured.
func (m MessageRecord) HasField(field MetadataField) bool {
	return m.ValidFields&field != 0
}

// MarkFieldValid returns a copy of the record with the field flagged readable.
func (m MessageRecord) MarkFieldValid(field MetadataField) MessageRecord {
	m.ValidFields |= field

	return m
}
