package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Buyer struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedUnix  int64  `db:"created_unix"`
}

func (s *Store) CreateBuyer(ctx context.Context, name, email, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
  INSERT INTO buyers(name, email, password_hash, created_unix) VALUES(?,?,?,?)`,
		name, email, passwordHash, time.Now().Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrEmailTaken
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Buyer(ctx context.Context, id int64) (Buyer, error) {
	var b Buyer
	err := s.db.GetContext(ctx, &b, `
  SELECT id, name, email, password_hash, created_unix FROM buyers WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Buyer{}, ErrNotFound
	}
	return b, err
}

func (s *Store) BuyerByEmail(ctx context.Context, email string) (Buyer, error) {
	var b Buyer
	err := s.db.GetContext(ctx, &b, `
  SELECT id, name, email, password_hash, created_unix FROM buyers WHERE email=?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Buyer{}, ErrNotFound
	}
	return b, err
}

// DisplayName resolves a buyer's name for notification bodies.
func (s *Store) DisplayName(ctx context.Context, buyerID int64) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name, `SELECT name FROM buyers WHERE id=?`, buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

// UpdateBuyerProfile changes name and email, keeping emails unique across
// buyers.
func (s *Store) UpdateBuyerProfile(ctx context.Context, id int64, name, email string) error {
	var taken int
	err := s.db.GetContext(ctx, &taken,
		`SELECT COUNT(*) FROM buyers WHERE email=? AND id!=?`, email, id)
	if err != nil {
		return err
	}
	if taken > 0 {
		return ErrEmailTaken
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE buyers SET name=?, email=? WHERE id=?`, name, email, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateBuyerPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE buyers SET password_hash=? WHERE id=?`, passwordHash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BuyerStats summarises a buyer's purchase history for the profile page.
type BuyerStats struct {
	TotalOrders   int             `db:"total_orders"`
	PaidOrders    int             `db:"paid_orders"`
	PendingOrders int             `db:"pending_orders"`
	TotalSpent    decimal.Decimal `db:"-"`
}

func (s *Store) StatsForBuyer(ctx context.Context, buyerID int64) (BuyerStats, error) {
	var st BuyerStats
	err := s.db.GetContext(ctx, &st, `
  SELECT COUNT(*) AS total_orders,
         COUNT(CASE WHEN p.status=? THEN 1 END) AS paid_orders,
         COUNT(CASE WHEN p.status IN (?,?) THEN 1 END) AS pending_orders
  FROM orders p
  WHERE p.buyer_id=?`,
		StatusPaid, StatusPending, StatusAwaitingPayment, buyerID)
	if err != nil {
		return st, err
	}

	// SUM over the TEXT total column would coerce to float; totals are summed
	// here to keep money exact.
	var totals []decimal.Decimal
	err = s.db.SelectContext(ctx, &totals,
		`SELECT total FROM orders WHERE buyer_id=? AND status=?`, buyerID, StatusPaid)
	if err != nil {
		return st, err
	}
	st.TotalSpent = sumTotals(totals)
	return st, nil
}
