package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	Username string
	ClinicID string
	Roles    string
}

// CreateUser registers a staff member of a clinic.
func (s *Store) CreateUser(ctx context.Context, username, password, clinicID string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user (username, password_hash, clinic_id)
		VALUES (?, ?, ?)`,
		username, hash, clinicID,
	)
	return err
}

// CheckPassword returns nil when password matches the one of username.
func (s *Store) CheckPassword(ctx context.Context, username, password string) error {
	var hash []byte
	err := s.db.
		QueryRowContext(ctx, "SELECT password_hash FROM user WHERE username=?", username).
		Scan(&hash)
	if err != nil {
		return err
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

func (s *Store) User(ctx context.Context, username string) (u User, err error) {
	err = s.db.
		QueryRowContext(ctx, "SELECT username, clinic_id, roles FROM user WHERE username=?", username).
		Scan(&u.Username, &u.ClinicID, &u.Roles)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return
}

func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		username,
		tokenID,
		refreshTokenID,
		s.now().Add(8760*time.Hour).Unix(),
	)
	return err
}

var ErrTokenRevoked = errors.New("could not refresh")

// ConsumeToken deletes a stored refresh token pair; it fails when the pair
// is unknown or expired.
func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error {
	var expiration int64
	err := s.db.
		QueryRowContext(ctx, `
			DELETE FROM token
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?
			RETURNING expiration`,
			username,
			tokenID,
			refreshTokenID,
		).
		Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenRevoked
	}
	if err != nil {
		return err
	}

	if time.Unix(expiration, 0).Before(s.now()) {
		return ErrTokenRevoked
	}
	return nil
}
