package audit

// OutboxRow is one audit entry staged for publication to the event
// stream. Rows are written in the same transaction as their entry and
// drained asynchronously by the outbox worker.
type OutboxRow struct {
	ID      int64
	EntryID int64
	Payload []byte
}
