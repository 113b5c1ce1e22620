package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sadopc/itrack/internal/log"
)

// Change operations
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// Change describes one successful write, as shipped to a replica.
type Change struct {
	Op         string
	Collection string
	ID         string
	Record     Record // nil for deletes
	At         time.Time
}

type ChangePublisher interface {
	PublishRecordChange(ctx context.Context, change Change) error
}

// ReplicationQueueSize bounds the changes waiting to be published.
const ReplicationQueueSize = 256

// Replicated forwards every successful write to a publisher. Publishing is
// best effort and happens on a background goroutine in write order: a write
// never waits on the publisher, and a failure or a full queue is logged.
type Replicated struct {
	Backend
	pub    ChangePublisher
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Change
	done   chan struct{}
}

func NewReplicated(b Backend, pub ChangePublisher, logger *log.Logger) *Replicated {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Replicated{
		Backend: b,
		pub:     pub,
		logger:  logger.WithComponent(log.ComponentStorage),
		queue:   make(chan Change, ReplicationQueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Close publishes what is queued and stops the publishing goroutine. Writes
// after Close are stored but not published.
func (r *Replicated) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Replicated) Put(ctx context.Context, collection string, rec Record) error {
	if err := r.Backend.Put(ctx, collection, rec); err != nil {
		return err
	}
	r.publish(ctx, Change{Op: OpPut, Collection: collection, ID: rec.ID(), Record: rec.Clone(), At: time.Now()})
	return nil
}

func (r *Replicated) Delete(ctx context.Context, collection, id string) error {
	if err := r.Backend.Delete(ctx, collection, id); err != nil {
		return err
	}
	r.publish(ctx, Change{Op: OpDelete, Collection: collection, ID: id, At: time.Now()})
	return nil
}

func (r *Replicated) publish(ctx context.Context, c Change) {
	if r.pub == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- c:
	default:
		r.logger.WarnContext(ctx, "Replication queue full, dropping record change",
			log.NewFields().WithOperation(log.OpPublish).WithRecord(c.Collection, c.ID).ToSlice()...)
	}
}

func (r *Replicated) run() {
	defer close(r.done)
	ctx := context.Background()
	for c := range r.queue {
		if err := r.pub.PublishRecordChange(ctx, c); err != nil {
			r.logger.WarnContext(ctx, "Failed to publish record change",
				log.NewFields().WithOperation(log.OpPublish).WithRecord(c.Collection, c.ID).WithError(err).ToSlice()...)
		}
	}
}

// Apply replays a change against b. Used by replicas.
func Apply(ctx context.Context, b Backend, c Change) error {
	switch c.Op {
	case OpPut:
		return b.Put(ctx, c.Collection, c.Record)
	case OpDelete:
		return b.Delete(ctx, c.Collection, c.ID)
	}
	return fmt.Errorf("apply change: unknown operation %q", c.Op)
}
