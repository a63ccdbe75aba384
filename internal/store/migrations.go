package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Ordered schema versions. PRAGMA user_version records the last one applied;
// each step runs at most once, inside its own transaction, at startup.
var migrations = []string{
	// 1: base schema
	`
CREATE TABLE IF NOT EXISTS books(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  author TEXT,
  price TEXT NOT NULL,
  image TEXT,
  content TEXT NOT NULL,
  origin TEXT
);
CREATE TABLE IF NOT EXISTS buyers(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_unix INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS admins(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cart_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  buyer_id INTEGER NOT NULL,
  book_id INTEGER NOT NULL,
  added_unix INTEGER NOT NULL,
  UNIQUE(buyer_id, book_id),
  FOREIGN KEY(book_id) REFERENCES books(id)
);
CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL,
  book_id INTEGER NOT NULL,
  buyer_id INTEGER,
  status TEXT NOT NULL,
  total TEXT NOT NULL,
  pix_ref TEXT,
  created_unix INTEGER NOT NULL,
  FOREIGN KEY(book_id) REFERENCES books(id)
);
CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_cart_buyer ON cart_items(buyer_id);
`,
	// 2: free-text manifest for consolidated orders
	`ALTER TABLE orders ADD COLUMN manifest TEXT;`,
	// 3: rejection reason
	`ALTER TABLE orders ADD COLUMN reject_reason TEXT;`,
}

func migrate(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, `PRAGMA user_version`); err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary", version)
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Beginx()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema version %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Info().Int("version", i+1).Msg("applied schema migration")
	}
	return nil
}
