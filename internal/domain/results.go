package domain

type (
	MoveOutcome string

	// MoveResult makes the at-least-once semantics of a move explicit. A
	// move is copy-then-delete; when the delete step fails after a
	// successful copy the message exists in both queues, and the result says
	// so instead of hiding it.
	MoveResult struct {
		Outcome    MoveOutcome `json:"outcome"`
		MessageID  string      `json:"message_id"`
		SourcePath string      `json:"source_path"`
		TargetPath string      `json:"target_path"`
		Diagnostic string      `json:"diagnostic,omitempty"`
	}

	// ItemOutcome is the per-message result inside a bulk operation.
	ItemOutcome struct {
		MessageID string `json:"message_id"`
		Success   bool   `json:"success"`
		Error     string `json:"error,omitempty"`
	}

	// BulkResult reports a partial-success bulk operation. Some of N items
	// failing is a result, never an all-or-nothing error.
	BulkResult struct {
		Requested int           `json:"requested"`
		Succeeded int           `json:"succeeded"`
		Failed    int           `json:"failed"`
		Items     []ItemOutcome `json:"items"`
	}

	// PurgePreview is surfaced ahead of a purge so the caller can render an
	// explicit "this will remove N messages" confirmation.
	PurgePreview struct {
		QueuePath    string `json:"queue_path"`
		MessageCount int64  `json:"message_count"`
	}

	// PurgeResult reports the count actually removed.
	PurgeResult struct {
		QueuePath string `json:"queue_path"`
		Purged    int64  `json:"purged"`
	}

	// ExportResult names the file written for one exported message batch.
	ExportResult struct {
		BatchID   string `json:"batch_id"`
		FilePath  string `json:"file_path"`
		Format    string `json:"format"`
		Exported  int    `json:"exported"`
		SizeBytes int64  `json:"size_bytes"`
	}
)

const (
	// MovedCleanly: the copy and the delete both succeeded.
	MovedCleanly MoveOutcome = "moved_cleanly"
	// MovedDuplicated: the copy succeeded but the delete failed, leaving the
	// message present in both source and target queues.
	MovedDuplicated MoveOutcome = "moved_duplicated"
	// MoveFailed: the copy itself failed; the source queue is untouched.
	MoveFailed MoveOutcome = "move_failed"
)

// Add records one item outcome and updates the counters.
func (b *BulkResult) Add(messageID string, err error) {
	b.Requested++

	outcome := ItemOutcome{MessageID: messageID, Success: err == nil}
	if err != nil {
		outcome.Error = err.Error()
		b.Failed++
	} else {
		b.Succeeded++
	}

	b.Items = append(b.Items, outcome)
}
