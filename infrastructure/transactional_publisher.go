package infrastructure

import (
	"context"

	"crashd/domain/events"
	"crashd/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// TransactionalPublisher buffers events raised inside a unit of work and
// hands them to the real publisher only after the transaction commits.
// Rollback discards the buffer, so consumers never see events for state that
// was never persisted.
type TransactionalPublisher struct {
	realPublisher interfaces.EventPublisher
	pending       []events.Event
}

// NewTransactionalPublisher creates a transactional publisher over the given
// downstream publisher.
func NewTransactionalPublisher(realPublisher interfaces.EventPublisher) *TransactionalPublisher {
	return &TransactionalPublisher{
		realPublisher: realPublisher,
		pending:       make([]events.Event, 0),
	}
}

// Publish buffers an event until Flush or Discard
func (p *TransactionalPublisher) Publish(event events.Event) error {
	p.pending = append(p.pending, event)
	return nil
}

// Flush publishes all pending events. Called after commit; a failing event is
// logged and the rest still go out.
func (p *TransactionalPublisher) Flush(ctx context.Context) {
	for _, event := range p.pending {
		if err := p.realPublisher.Publish(event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to publish event during flush")
		}
	}
	p.pending = p.pending[:0]
}

// Discard clears all pending events without publishing. Called on rollback.
func (p *TransactionalPublisher) Discard() {
	if len(p.pending) > 0 {
		log.WithField("discarded", len(p.pending)).Debug("Discarded buffered events")
	}
	p.pending = p.pending[:0]
}

// Pending returns the number of buffered events
func (p *TransactionalPublisher) Pending() int {
	return len(p.pending)
}
