package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one pooled connection avoids
	// SQLITE_BUSY under concurrent requests and keeps :memory: databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Products carry their own stock counter; the available flag is the
-- operator override, effective availability also requires stock > 0.
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  available INTEGER NOT NULL DEFAULT 1,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_slug ON products(slug);

-- Carts: one per user, keyed by user id. Cleared, not deleted, at checkout.
CREATE TABLE IF NOT EXISTS carts(
  user_id TEXT PRIMARY KEY,
  voucher_code TEXT,
  total_price NUMERIC NOT NULL DEFAULT 0,
  savings NUMERIC NOT NULL DEFAULT 0,
  total_after_code NUMERIC NOT NULL DEFAULT 0,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS cart_items(
  user_id    TEXT NOT NULL REFERENCES carts(user_id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  price_at_add NUMERIC NOT NULL,
  item_total NUMERIC NOT NULL,
  created_at TEXT,
  updated_at TEXT,
  PRIMARY KEY (user_id, product_id)
);

CREATE TABLE IF NOT EXISTS vouchers(
  code TEXT PRIMARY KEY,
  type TEXT NOT NULL CHECK (type IN ('PERCENTAGE','FIXED')),
  value NUMERIC NOT NULL CHECK (value >= 0),
  max_discount NUMERIC,
  min_order_value NUMERIC,
  is_global INTEGER NOT NULL DEFAULT 1,
  allowed_users_json TEXT NOT NULL DEFAULT '',
  max_total_usage INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  once_per_user INTEGER NOT NULL DEFAULT 0,
  start_date TEXT NOT NULL DEFAULT '',
  end_date TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE','DISABLED')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  total_price NUMERIC NOT NULL,
  voucher_code TEXT NOT NULL DEFAULT '',
  savings NUMERIC NOT NULL DEFAULT 0,
  total_after_code NUMERIC NOT NULL,
  delivery_address TEXT NOT NULL,
  payment_method TEXT NOT NULL DEFAULT 'CASH',
  status TEXT NOT NULL DEFAULT 'PENDING',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items(
  order_id  TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  qty INTEGER NOT NULL,
  price NUMERIC NOT NULL,
  PRIMARY KEY (order_id, product_id)
);

-- Durable saga step checkpoints: a (order, step) row means the step's side
-- effect completed and must not run again.
CREATE TABLE IF NOT EXISTS saga_steps(
  order_id TEXT NOT NULL,
  step TEXT NOT NULL,
  done_at TEXT DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (order_id, step)
);

-- Transactional outbox: events written in the same transaction as the state
-- change they announce, dispatched after commit.
CREATE TABLE IF NOT EXISTS outbox(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  order_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  sent_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo products/vouchers")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO products(id,slug,title,description,price,stock,available) VALUES
	  ('p-kettle','stovetop-kettle','Stovetop Kettle','Enamel kettle, 1.7L',39.90,12,1),
	  ('p-grinder','burr-grinder','Burr Coffee Grinder','Conical burr, 18 settings',89.00,5,1),
	  ('p-press','french-press','French Press','Borosilicate glass, 1L',24.50,20,1),
	  ('p-scale','pour-over-scale','Pour-over Scale','0.1g resolution with timer',54.00,0,1)`)

	tx.MustExec(`INSERT INTO vouchers(code,type,value,max_discount,min_order_value,is_global,once_per_user) VALUES
	  ('WELCOME10','PERCENTAGE',10,15,NULL,1,1),
	  ('SAVE5','FIXED',5,NULL,15,1,0)`)

	return tx.Commit()
}

// seedUsers ensures two USERs and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), 12)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-alice", "alice@shopline.test", "Alice", "USER", "Passw0rd!"),
		mk("u-bob", "bob@shopline.test", "Bob", "USER", "Passw0rd!"),
		mk("u-admin", "admin@shopline.test", "Admin", "ADMIN", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
