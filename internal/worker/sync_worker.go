package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sadopc/itrack/internal/amqp"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

// SyncWorker applies record changes to a replica backend.
type SyncWorker struct {
	replica store.Backend
	logger  *log.Logger

	applied atomic.Int64
	failed  atomic.Int64
}

func NewSyncWorker(replica store.Backend, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{replica: replica, logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle processes a single record change message from AMQP. It matches
// amqp.Handler; a returned error requeues the message.
func (w *SyncWorker) Handle(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	fields := log.NewFields().WithOperation(log.OpSync).WithRecord(msg.Collection, msg.ID)
	fields["op"] = msg.Op

	if err := store.Apply(ctx, w.replica, msg.ToChange()); err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to apply record change", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("apply %s %s/%s: %w", msg.Op, msg.Collection, msg.ID, err)
	}

	w.applied.Add(1)
	w.logger.InfoContext(ctx, "Applied record change", fields.ToSlice()...)
	return nil
}

// Stats returns how many changes were applied and how many failed.
func (w *SyncWorker) Stats() (applied, failed int64) {
	return w.applied.Load(), w.failed.Load()
}
