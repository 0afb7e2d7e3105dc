package repos

import "github.com/jmoiron/sqlx"

// StepRepo is the saga's durable checkpoint log, keyed (order id, step name).
// A recorded step means its side effect completed and must not run again.
type StepRepo struct{ db *sqlx.DB }

func NewStepRepo(db *sqlx.DB) *StepRepo { return &StepRepo{db: db} }

func (r *StepRepo) Done(orderID, step string) (bool, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM saga_steps WHERE order_id = ? AND step = ?`, orderID, step)
	return n > 0, err
}

func (r *StepRepo) MarkDone(orderID, step string) error {
	_, err := r.db.Exec(`
	  INSERT INTO saga_steps(order_id, step) VALUES(?,?)
	  ON CONFLICT(order_id, step) DO NOTHING`, orderID, step)
	return err
}

// Purge drops all checkpoints for an order once its saga reaches the
// terminal status.
func (r *StepRepo) Purge(orderID string) error {
	_, err := r.db.Exec(`DELETE FROM saga_steps WHERE order_id = ?`, orderID)
	return err
}
