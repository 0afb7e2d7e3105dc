package saga

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"shopline/internal/domain"
	"shopline/internal/log"
	"shopline/internal/mail"
	"shopline/internal/metrics"
	"shopline/internal/repos"
)

const stepConfirmation = "confirmation-email"

func stepStatus(status string) string { return "status-email-" + status }

// Runtime drives one long-lived notification process per order: confirmation
// on creation, one status email per distinct status, done at DELIVERED. Every
// email rides a durable checkpoint, so the process can be killed and
// retriggered at any point without double-sending.
type Runtime struct {
	Orders *repos.OrderRepo
	Steps  *repos.StepRepo
	Bus    *Bus
	Mailer mail.Mailer

	// WaitTimeout bounds each wait for the next status signal. A lapsed
	// wait triggers one last reconcile; if the order still hasn't moved,
	// the process stops and a later status change retriggers it.
	WaitTimeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

func NewRuntime(orders *repos.OrderRepo, steps *repos.StepRepo, bus *Bus,
	mailer mail.Mailer, waitTimeout time.Duration) *Runtime {
	return &Runtime{
		Orders:      orders,
		Steps:       steps,
		Bus:         bus,
		Mailer:      mailer,
		WaitTimeout: waitTimeout,
		running:     make(map[string]bool),
	}
}

// Start launches the process for an order unless one is already live. Safe to
// call repeatedly; duplicate triggers are no-ops.
func (r *Runtime) Start(ctx context.Context, orderID string) {
	r.mu.Lock()
	if r.running[orderID] {
		r.mu.Unlock()
		return
	}
	r.running[orderID] = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.running, orderID)
			r.mu.Unlock()
		}()
		if err := r.Run(ctx, orderID); err != nil {
			log.Saga("saga.failed", orderID, err, nil)
		}
	}()
}

// Run executes the process synchronously until the order is DELIVERED, the
// wait budget lapses with no movement, or the context ends.
func (r *Runtime) Run(ctx context.Context, orderID string) error {
	order, _, err := r.Orders.Get(orderID)
	if errors.Is(err, sql.ErrNoRows) {
		// Nothing to notify about and nothing will change that.
		log.Saga("saga.orphan", orderID, nil, nil)
		return nil
	}
	if err != nil {
		return err
	}

	current := order.Status
	if current == domain.StatusPending {
		if err := r.once(orderID, stepConfirmation, func() error {
			return r.Mailer.OrderPlaced(order, r.itemsOf(orderID))
		}); err != nil {
			return err
		}
	} else {
		// Retriggered past PENDING: make sure the current status was
		// announced before waiting for the next one.
		if err := r.sendStatusEmail(orderID, current); err != nil {
			return err
		}
	}

	for current != domain.StatusDelivered {
		// Reconcile against the database first: if an update landed
		// while nobody was waiting, adopt it instead of blocking.
		dbStatus, err := r.Orders.Status(orderID)
		if err != nil {
			return err
		}
		if dbStatus != current {
			metrics.SagaFastForwards.Inc()
			log.Saga("saga.fast_forward", orderID, nil, map[string]any{"from": current, "to": dbStatus})
			current = dbStatus
			if err := r.sendStatusEmail(orderID, current); err != nil {
				return err
			}
			continue
		}

		sig, ok := r.Bus.Wait(ctx, Topic(orderID), r.WaitTimeout)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timed out: one final reconcile, then park.
			dbStatus, err := r.Orders.Status(orderID)
			if err != nil {
				return err
			}
			if dbStatus == current {
				log.Saga("saga.stalled", orderID, nil, map[string]any{"status": current})
				return nil
			}
			continue
		}
		if sig.Status == current {
			continue
		}
		current = sig.Status
		if err := r.sendStatusEmail(orderID, current); err != nil {
			return err
		}
	}

	log.Saga("saga.done", orderID, nil, nil)
	return r.Steps.Purge(orderID)
}

// sendStatusEmail announces one status exactly once per order, PENDING has no
// status email of its own (the confirmation covers it).
func (r *Runtime) sendStatusEmail(orderID, status string) error {
	if status == domain.StatusPending {
		return nil
	}
	return r.once(orderID, stepStatus(status), func() error {
		order, _, err := r.Orders.Get(orderID)
		if err != nil {
			return err
		}
		return r.Mailer.OrderStatus(order, status)
	})
}

// once runs fn only if its checkpoint is absent, then records it. The side
// effect lands before the checkpoint, so a crash in between re-runs fn: the
// sends are at-least-once, deduped per step across restarts.
func (r *Runtime) once(orderID, step string, fn func() error) error {
	done, err := r.Steps.Done(orderID, step)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	return r.Steps.MarkDone(orderID, step)
}

func (r *Runtime) itemsOf(orderID string) []domain.OrderItem {
	_, items, err := r.Orders.Get(orderID)
	if err != nil {
		return nil
	}
	return items
}
