package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Store persists the session in a single-table sqlite database so identity
// survives restarts the way the clients' local storage did.
type Store struct {
	Bun *bun.DB
}

func Open(path string) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*Session)(nil)).
		IfNotExists().
		Exec(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &Store{Bun: db}, nil
}

func (s *Store) Close() error {
	return s.Bun.Close()
}

// Current returns the active session, or LoggedOut when nobody is signed in.
func (s *Store) Current(ctx context.Context) (Session, error) {
	var sess Session
	err := s.Bun.NewSelect().
		Model(&sess).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return LoggedOut, nil
	}
	if err != nil {
		return LoggedOut, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// SignIn derives the user id from the token, replaces any previous session
// and returns the new one.
func (s *Store) SignIn(ctx context.Context, token, email string) (Session, error) {
	userID, err := UserIDFromToken(token)
	if err != nil {
		return LoggedOut, err
	}

	now := time.Now()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CartID:    userID, // carts are bound 1:1 to users
		Email:     email,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.Bun.NewDelete().Model((*Session)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return LoggedOut, fmt.Errorf("failed to drop previous session: %w", err)
	}
	if _, err := s.Bun.NewInsert().Model(&sess).Exec(ctx); err != nil {
		return LoggedOut, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// SignOut removes the stored session.
func (s *Store) SignOut(ctx context.Context) error {
	if _, err := s.Bun.NewDelete().Model((*Session)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
