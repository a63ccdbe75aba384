package store

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go driver
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyInCart     = errors.New("book already in cart")
	ErrEmailTaken        = errors.New("email already in use")
)

const bookCacheSize = 256

// Store owns every Order, CartItem, Book, Buyer and Admin row. All mutation
// of order state goes through it.
type Store struct {
	db        *sqlx.DB
	bookCache *lru.Cache[int64, Book]
}

func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL&_pragma=foreign_keys(ON)", dbPath)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cache, err := lru.New[int64, Book](bookCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, bookCache: cache}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Transact runs fn inside a single transaction, rolling back on error or
// panic. Used wherever several writes must land (or vanish) together.
func (s *Store) Transact(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
