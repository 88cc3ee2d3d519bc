package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/infectwatch/apiserver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	last := created.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"email", "name", "password_hash", "created_at", "login_count", "last_login"}).
			AddRow("alice@example.com", "Alice", "hash", created, 2, last))

	user, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, 2, user.LoginCount)
	require.NotNil(t, user.LastLogin)
	assert.True(t, last.Equal(*user.LastLogin))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.Create(context.Background(), types.User{Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUserRepositoryUpdateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.User{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepositoryCreateAndList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()

	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	device := types.DeviceInfo{Browser: "Chrome", OS: "macOS", Timezone: "Pacific/Auckland"}
	deviceJSON, err := json.Marshal(device)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_sessions")).
		WithArgs("s1", "alice@example.com", at, "10.0.0.1", deviceJSON).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = repo.Create(ctx, types.LoginSession{
		SessionID:  "s1",
		Email:      "alice@example.com",
		LoginTime:  at,
		IP:         "10.0.0.1",
		DeviceInfo: device,
	})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY login_time DESC")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "email", "login_time", "ip", "device_info"}).
			AddRow("s1", "alice@example.com", at, "10.0.0.1", deviceJSON))

	sessions, err := repo.ListByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, device, sessions[0].DeviceInfo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM login_sessions")).
		WithArgs("new@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "email", "login_time", "ip", "device_info"}))

	sessions, err := repo.ListByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestSessionRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_sessions")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	_, err := repo.Create(context.Background(), types.LoginSession{SessionID: "dup", Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSessionRepositoryListRejectsMalformedDeviceInfo(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM login_sessions")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "email", "login_time", "ip", "device_info"}).
			AddRow("s1", "alice@example.com", at, "1.2.3.4", []byte(`["Chrome"]`)))

	sessions, err := repo.ListByEmail(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode device info of session s1")
	assert.Nil(t, sessions)
}
