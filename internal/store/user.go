package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/infectwatch/apiserver/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// UserRepository handles persistence for users in Postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT email, name, password_hash, created_at, login_count, last_login
		FROM users
		WHERE email = $1`
	var user types.User
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.LoginCount,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (email, name, password_hash, created_at, login_count, last_login)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.CreatedAt,
		user.LoginCount,
		nullTime(user),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.User{}, ErrAlreadyExists
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		UPDATE users
		SET name = $1,
			password_hash = $2,
			login_count = $3,
			last_login = $4
		WHERE email = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.PasswordHash,
		user.LoginCount,
		nullTime(user),
		user.Email,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func nullTime(user types.User) sql.NullTime {
	if user.LastLogin == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *user.LastLogin, Valid: true}
}
