package handler

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func expectLoginUser(env *testEnv, username, password string, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	env.mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs(username).
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash", "full_name", "email", "role", "is_active", "created_at", "version"}).
			AddRow(2, string(hash), "张三", "zhangsan@example.com", "助理", active, time.Now(), 1))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	expectLoginUser(env, "zhangsan", "password123", true)

	rec, res := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan", "password": "password123"}, nil)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "登录成功", res.Message)
	assert.NotContains(t, string(res.Data), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// 拿到的 cookie 可以直接访问需要登录的接口
	env.expectUser(assistant(2))
	_, res = env.do(t, http.MethodGet, "/my-info", nil, cookies[0])
	assert.True(t, res.Success, res.Message)
}

func TestLoginFailures(t *testing.T) {
	t.Run("密码错误", func(t *testing.T) {
		env := newTestEnv(t)
		expectLoginUser(env, "zhangsan", "password123", true)

		_, res := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan", "password": "wrong"}, nil)
		assert.False(t, res.Success)
		assert.Equal(t, "用户名不存在或密码错误", res.Message)
	})

	t.Run("用户不存在", func(t *testing.T) {
		env := newTestEnv(t)
		env.mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

		_, res := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "x"}, nil)
		assert.False(t, res.Success)
		assert.Equal(t, "用户名不存在或密码错误", res.Message)
	})

	t.Run("账号已停用", func(t *testing.T) {
		env := newTestEnv(t)
		expectLoginUser(env, "zhangsan", "password123", false)

		_, res := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan", "password": "password123"}, nil)
		assert.False(t, res.Success)
		assert.Equal(t, "账号已停用", res.Message)
	})

	t.Run("请求体为空", func(t *testing.T) {
		env := newTestEnv(t)

		_, res := env.do(t, http.MethodPost, "/auth/login", nil, nil)
		assert.False(t, res.Success)
		assert.Equal(t, "请求体不能为空", res.Message)
	})

	t.Run("缺少密码", func(t *testing.T) {
		env := newTestEnv(t)

		_, res := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "zhangsan"}, nil)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Message)
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rec, res := env.do(t, http.MethodPost, "/auth/logout", nil, nil)
	assert.True(t, res.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
}
