package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
)

// Book is catalog data, read-only from the fulfillment pipeline's point of
// view. Content is the locator of the ebook file: either a filename under the
// local ebooks directory or a remote URL.
type Book struct {
	ID      int64           `db:"id"`
	Title   string          `db:"title"`
	Author  sql.NullString  `db:"author"`
	Price   decimal.Decimal `db:"price"`
	Image   sql.NullString  `db:"image"`
	Content string          `db:"content"`
	Origin  sql.NullString  `db:"origin"`
}

// Book returns a catalog row. Rows are immutable at runtime, so hits are
// served from an in-process LRU.
func (s *Store) Book(ctx context.Context, id int64) (Book, error) {
	if b, ok := s.bookCache.Get(id); ok {
		return b, nil
	}
	var b Book
	err := s.db.GetContext(ctx, &b, `
  SELECT id, title, author, price, image, content, origin FROM books WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, err
	}
	s.bookCache.Add(id, b)
	return b, nil
}

func (s *Store) Books(ctx context.Context, limit int) ([]Book, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Book
	err := s.db.SelectContext(ctx, &out, `
  SELECT id, title, author, price, image, content, origin
  FROM books ORDER BY id DESC LIMIT ?`, limit)
	return out, err
}

func (s *Store) CreateBook(ctx context.Context, b *Book) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
  INSERT INTO books(title, author, price, image, content, origin)
  VALUES(?,?,?,?,?,?)`,
		b.Title, b.Author, b.Price, b.Image, b.Content, b.Origin)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Seed loads a handful of catalog rows for a fresh local database.
func (s *Store) Seed(ctx context.Context) error {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM books`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	seeds := []Book{
		{Title: "Dom Casmurro", Author: ns("Machado de Assis"), Price: decimal.NewFromFloat(19.90),
			Content: "dom_casmurro.pdf", Origin: ns("local")},
		{Title: "Memórias Póstumas de Brás Cubas", Author: ns("Machado de Assis"), Price: decimal.NewFromFloat(24.90),
			Content: "https://archive.org/download/memorias-postumas/memorias-postumas.pdf", Origin: ns("archive")},
		{Title: "Iracema", Author: ns("José de Alencar"), Price: decimal.NewFromFloat(14.90),
			Content: "iracema.pdf", Origin: ns("local")},
	}
	for i := range seeds {
		if _, err := s.CreateBook(ctx, &seeds[i]); err != nil {
			return err
		}
	}
	return nil
}

func ns(v string) sql.NullString { return sql.NullString{String: v, Valid: true} }
