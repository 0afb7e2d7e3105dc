package saga

import (
	"context"
	"encoding/json"
	"time"

	"shopline/internal/log"
	"shopline/internal/repos"
)

// Dispatcher drains the transactional outbox into the saga runtime and the
// signal bus. Rows are marked sent only after handling, so delivery is
// at-least-once into consumers that are idempotent anyway.
type Dispatcher struct {
	Outbox   *repos.OutboxRepo
	Runtime  *Runtime
	Bus      *Bus
	Interval time.Duration

	kick chan struct{}
}

func NewDispatcher(outbox *repos.OutboxRepo, rt *Runtime, bus *Bus, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Dispatcher{
		Outbox:   outbox,
		Runtime:  rt,
		Bus:      bus,
		Interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Kick asks for an immediate drain; callers use it right after committing an
// outbox row so the saga starts without waiting for the next tick.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run polls until the context ends. One drain per tick or kick.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		d.Drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
	}
}

// Drain handles every pending outbox row once.
func (d *Dispatcher) Drain(ctx context.Context) {
	rows, err := d.Outbox.Pending(100)
	if err != nil {
		log.Saga("outbox.poll", "", err, nil)
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		d.handle(ctx, row)
		if err := d.Outbox.MarkSent(row.ID); err != nil {
			log.Saga("outbox.mark_sent", row.OrderID, err, map[string]any{"event_id": row.EventID})
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, row repos.OutboxRecord) {
	switch row.Topic {
	case repos.TopicOrderCreated:
		d.Runtime.Start(ctx, row.OrderID)

	case repos.TopicOrderUpdated:
		var p struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(row.Payload, &p); err != nil {
			log.Saga("outbox.bad_payload", row.OrderID, err, map[string]any{"event_id": row.EventID})
			return
		}
		// Make sure a process is live to hear the signal; Start is a
		// no-op when one already is.
		d.Runtime.Start(ctx, row.OrderID)
		delivered := d.Bus.Publish(Topic(row.OrderID), Signal{OrderID: row.OrderID, Status: p.Status})
		if !delivered {
			log.Saga("outbox.signal_dropped", row.OrderID, nil, map[string]any{"status": p.Status})
		}

	default:
		log.Saga("outbox.unknown_topic", row.OrderID, nil, map[string]any{"topic": row.Topic})
	}
}
