package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending          Status = "PENDING"
	StatusAwaitingPayment  Status = "AWAITING_PAYMENT_CONFIRMATION"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusPaid             Status = "PAID"
	StatusRejected         Status = "REJECTED"
)

// ErrSettlementRefSet is returned when a settlement reference would be
// overwritten; a reference is written once and never reissued.
var ErrSettlementRefSet = errors.New("settlement reference already set")

type Order struct {
	ID           int64           `db:"id"`
	Email        string          `db:"email"`
	BookID       int64           `db:"book_id"`
	BuyerID      sql.NullInt64   `db:"buyer_id"`
	Status       Status          `db:"status"`
	Total        decimal.Decimal `db:"total"`
	PixRef       sql.NullString  `db:"pix_ref"`
	Manifest     sql.NullString  `db:"manifest"`
	RejectReason sql.NullString  `db:"reject_reason"`
	CreatedUnix  int64           `db:"created_unix"`
}

// CreateOrder inserts o and returns its id. It accepts an ExtContext so a
// caller can make the insert part of a larger transaction.
func (s *Store) CreateOrder(ctx context.Context, q sqlx.ExtContext, o *Order) (int64, error) {
	if q == nil {
		q = s.db
	}
	if o.CreatedUnix == 0 {
		o.CreatedUnix = time.Now().Unix()
	}
	res, err := q.ExecContext(ctx, `
  INSERT INTO orders(email, book_id, buyer_id, status, total, pix_ref, manifest, created_unix)
  VALUES(?,?,?,?,?,?,?,?)`,
		o.Email, o.BookID, o.BuyerID, o.Status, o.Total, o.PixRef, o.Manifest, o.CreatedUnix)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Order(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := s.db.GetContext(ctx, &o, `
  SELECT id, email, book_id, buyer_id, status, total, pix_ref, manifest, reject_reason, created_unix
  FROM orders WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// SetSettlementRef records the payment reference for an order. The reference
// is write-once: a second call for the same order fails without touching it.
func (s *Store) SetSettlementRef(ctx context.Context, q sqlx.ExtContext, id int64, ref string) error {
	if q == nil {
		q = s.db
	}
	res, err := q.ExecContext(ctx,
		`UPDATE orders SET pix_ref=? WHERE id=? AND pix_ref IS NULL`, ref, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Order(ctx, id); err != nil {
			return err
		}
		return ErrSettlementRefSet
	}
	return nil
}

// Transition moves an order to status `to`, but only when its current status
// is one of `from`. The update is a single atomic read-modify-write: of two
// concurrent callers only one observes an eligible row.
func (s *Store) Transition(ctx context.Context, id int64, to Status, from ...Status) error {
	query, args, err := sqlx.In(
		`UPDATE orders SET status=? WHERE id=? AND status IN (?)`, to, id, from)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Order(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// RejectOrder is the terminal admin rejection: status and reason land in the
// same atomic update, valid only while the order awaits approval.
func (s *Store) RejectOrder(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
  UPDATE orders SET status=?, reject_reason=? WHERE id=? AND status=?`,
		StatusRejected, reason, id, StatusAwaitingApproval)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Order(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// PendingOrder is the admin review row: the order plus buyer and book info.
type PendingOrder struct {
	ID          int64           `db:"id"`
	CreatedUnix int64           `db:"created_unix"`
	Total       decimal.Decimal `db:"total"`
	Status      Status          `db:"status"`
	BuyerName   string          `db:"buyer_name"`
	BuyerEmail  string          `db:"buyer_email"`
	BookTitle   string          `db:"book_title"`
	BookImage   sql.NullString  `db:"book_image"`
}

func (s *Store) PendingApproval(ctx context.Context) ([]PendingOrder, error) {
	var out []PendingOrder
	err := s.db.SelectContext(ctx, &out, `
  SELECT p.id, p.created_unix, p.total, p.status,
         COALESCE(u.name, 'Cliente') AS buyer_name,
         p.email AS buyer_email,
         l.title AS book_title, l.image AS book_image
  FROM orders p
  LEFT JOIN buyers u ON p.buyer_id = u.id
  JOIN books l ON p.book_id = l.id
  WHERE p.status=?
  ORDER BY p.created_unix DESC`, StatusAwaitingApproval)
	return out, err
}

// BuyerOrder is an order row shown on the buyer's profile page.
type BuyerOrder struct {
	ID          int64           `db:"id"`
	Status      Status          `db:"status"`
	CreatedUnix int64           `db:"created_unix"`
	Title       string          `db:"title"`
	Author      sql.NullString  `db:"author"`
	Price       decimal.Decimal `db:"price"`
	Image       sql.NullString  `db:"image"`
}

func (s *Store) OrdersByBuyer(ctx context.Context, buyerID int64) ([]BuyerOrder, error) {
	var out []BuyerOrder
	err := s.db.SelectContext(ctx, &out, `
  SELECT p.id, p.status, p.created_unix, l.title, l.author, l.price, l.image
  FROM orders p
  JOIN books l ON p.book_id = l.id
  WHERE p.buyer_id=?
  ORDER BY p.created_unix DESC`, buyerID)
	return out, err
}
