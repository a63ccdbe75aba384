package store

import (
	"context"
	"database/sql"
	"errors"
)

type Admin struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	err := s.db.GetContext(ctx, &a,
		`SELECT id, email, password_hash FROM admins WHERE email=?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrNotFound
	}
	return a, err
}

func (s *Store) CreateAdmin(ctx context.Context, email, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins(email, password_hash) VALUES(?,?)`, email, passwordHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
