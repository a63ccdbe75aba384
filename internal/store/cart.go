package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CartLine is a cart item joined with its book.
type CartLine struct {
	ID     int64           `db:"id"`
	BookID int64           `db:"book_id"`
	Title  string          `db:"title"`
	Author sql.NullString  `db:"author"`
	Price  decimal.Decimal `db:"price"`
	Image  sql.NullString  `db:"image"`
}

// AddCartItem puts a book in the buyer's open cart. The (buyer, book) pair is
// unique; adding the same book twice fails with ErrAlreadyInCart.
func (s *Store) AddCartItem(ctx context.Context, buyerID, bookID int64) error {
	if _, err := s.Book(ctx, bookID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
  INSERT INTO cart_items(buyer_id, book_id, added_unix) VALUES(?,?,?)`,
		buyerID, bookID, time.Now().Unix())
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadyInCart
	}
	return err
}

func (s *Store) RemoveCartItem(ctx context.Context, itemID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id=?`, itemID)
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

// CartLines lists the buyer's cart, oldest first, so the first line is the
// primary book of a consolidated order.
func (s *Store) CartLines(ctx context.Context, q sqlx.ExtContext, buyerID int64) ([]CartLine, error) {
	if q == nil {
		q = s.db
	}
	var out []CartLine
	err := sqlx.SelectContext(ctx, q, &out, `
  SELECT c.id, c.book_id, l.title, l.author, l.price, l.image
  FROM cart_items c
  JOIN books l ON c.book_id = l.id
  WHERE c.buyer_id=?
  ORDER BY c.added_unix ASC, c.id ASC`, buyerID)
	return out, err
}

// ClearCart deletes every cart item for the buyer.
func (s *Store) ClearCart(ctx context.Context, q sqlx.ExtContext, buyerID int64) error {
	if q == nil {
		q = s.db
	}
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE buyer_id=?`, buyerID)
	return err
}
