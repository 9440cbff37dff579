package handler

import (
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/queue"
)

func TestCreateAssistantUser(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("lisi", sqlmock.AnyArg(), "李四", "lisi@example.com", domain.RoleAssistant).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "version"}).AddRow(3, true, now, 1))
	env.mock.ExpectQuery(`INSERT INTO workers`).
		WithArgs(int64(3), sqlmock.AnyArg(), 12.0, 1, false).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at", "version"}).AddRow(now, 1))
	env.mock.ExpectCommit()

	body := map[string]any{
		"username": "lisi",
		"fullName": "李四",
		"email":    "lisi@example.com",
		"role":     "助理",
		"maxHours": 12,
		"priority": 1,
	}
	_, res := env.do(t, http.MethodPost, "/users", body, env.cookie(t, 1, domain.RoleAdmin))
	require.True(t, res.Success, res.Message)

	require.Len(t, env.publisher.messages, 1)
	msg := env.publisher.messages[0]
	assert.Equal(t, queue.EmailQueue, msg.queue)

	mail := msg.body.(domain.MailMessage)
	assert.Equal(t, domain.MailTypeCreateUser, mail.Type)
	assert.Equal(t, "lisi@example.com", mail.To)
	data := mail.Data.(domain.CreateUserMailData)
	assert.Equal(t, "lisi", data.Username)
	assert.Len(t, data.Password, 12)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	body := map[string]any{
		"username": "admin2",
		"fullName": "管理员二号",
		"email":    "admin2@example.com",
		"role":     "管理员",
	}
	_, res := env.do(t, http.MethodPost, "/users", body, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
	assert.Equal(t, "用户名已存在", res.Message)
	assert.Empty(t, env.publisher.messages)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"username": "lisi",
		"fullName": "李四",
		"email":    "lisi@example.com",
		"role":     "黑心",
	}
	_, res := env.do(t, http.MethodPost, "/users", body, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	user := assistant(2)

	env.expectUser(user)
	env.mock.ExpectQuery(`UPDATE users`).
		WithArgs(sqlmock.AnyArg(), "张三", "new@example.com", false, int64(2), int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))

	body := map[string]any{"email": "new@example.com", "isActive": false}
	_, res := env.do(t, http.MethodPatch, "/users/2", body, env.cookie(t, 1, domain.RoleAdmin))
	require.True(t, res.Success, res.Message)
	assert.Contains(t, string(res.Data), `"isActive":false`)
}

func TestDeleteInitialAdmin(t *testing.T) {
	env := newTestEnv(t)

	env.expectUser(&domain.User{ID: 1, Username: "admin", Role: domain.RoleAdmin, IsActive: true, Version: 1})

	_, res := env.do(t, http.MethodDelete, "/users/1", nil, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
	assert.Equal(t, "禁止操作初始管理员", res.Message)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)

	env.expectUser(assistant(2))
	env.mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, res := env.do(t, http.MethodDelete, "/users/2", nil, env.cookie(t, 1, domain.RoleAdmin))
	assert.True(t, res.Success, res.Message)
}

func TestUserNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, res := env.do(t, http.MethodGet, "/users/abc", nil, env.cookie(t, 1, domain.RoleAdmin))
	assert.False(t, res.Success)
	assert.Equal(t, "用户ID无效", res.Message)
}
