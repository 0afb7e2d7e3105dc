package repos

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	TopicOrderCreated = "order.created"
	TopicOrderUpdated = "order.updated"
)

type OutboxRecord struct {
	ID        int64  `db:"id"`
	EventID   string `db:"event_id"`
	Topic     string `db:"topic"`
	OrderID   string `db:"order_id"`
	Payload   []byte `db:"payload"`
	CreatedAt string `db:"created_at"`
}

// OutboxRepo implements the transactional outbox: rows are inserted inside
// the transaction that produced the event and marked sent only after the
// dispatcher handled them, giving at-least-once delivery.
type OutboxRepo struct{ db *sqlx.DB }

func NewOutboxRepo(db *sqlx.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Insert takes any Execer so it can ride a caller's transaction.
func (r *OutboxRepo) Insert(e sqlx.Execer, topic, orderID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = e.Exec(`
	  INSERT INTO outbox(event_id, topic, order_id, payload)
	  VALUES(?,?,?,?)`, uuid.NewString(), topic, orderID, string(data))
	return err
}

func (r *OutboxRepo) Pending(limit int) ([]OutboxRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []OutboxRecord
	err := r.db.Select(&out, `
	  SELECT id, event_id, topic, order_id, payload, created_at
	  FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`, limit)
	return out, err
}

func (r *OutboxRepo) MarkSent(id int64) error {
	_, err := r.db.Exec(`UPDATE outbox SET sent_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}
