package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/infectwatch/apiserver/types"
	"github.com/lib/pq"
)

// SessionRepository handles persistence for login sessions in Postgres.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session types.LoginSession) (types.LoginSession, error) {
	deviceJSON, err := json.Marshal(session.DeviceInfo)
	if err != nil {
		return types.LoginSession{}, err
	}

	const query = `
		INSERT INTO login_sessions (session_id, email, login_time, ip, device_info)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.SessionID,
		session.Email,
		session.LoginTime,
		session.IP,
		deviceJSON,
	); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.LoginSession{}, ErrAlreadyExists
		}
		return types.LoginSession{}, err
	}
	return session, nil
}

func (r *SessionRepository) ListByEmail(ctx context.Context, email string) ([]types.LoginSession, error) {
	const query = `
		SELECT session_id, email, login_time, ip, device_info
		FROM login_sessions
		WHERE email = $1
		ORDER BY login_time DESC`
	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]types.LoginSession, 0)
	for rows.Next() {
		var session types.LoginSession
		var deviceJSON []byte
		if err := rows.Scan(
			&session.SessionID,
			&session.Email,
			&session.LoginTime,
			&session.IP,
			&deviceJSON,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal(deviceJSON, &session.DeviceInfo); err != nil {
			return nil, fmt.Errorf("decode device info of session %s: %w", session.SessionID, err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
