package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmscli/internal/store"
)

func newUserTestRouter(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), store.Options{
		Fingerprint: func() string { return testFingerprint },
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := NewUserHandler(st, discardLogger())
	r := chi.NewRouter()
	r.Mount("/api/users", h.Routes())
	return st, r
}

func createUserRequest() CreateUserRequest {
	return CreateUserRequest{
		Name:         "Jane Ops",
		Organization: "Front Desk",
		UserID:       "jane01",
		Password:     "hunter22",
		Role:         "operator",
	}
}

func TestCreateAndListUsers(t *testing.T) {
	_, router := newUserTestRouter(t)

	rec := postJSON(t, router, "/api/users", createUserRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var users []store.User
	getJSON(t, router, "/api/users", &users)
	require.Len(t, users, 1)
	assert.Equal(t, "jane01", users[0].UserID)
	assert.Equal(t, "operator", users[0].Role)
	assert.True(t, users[0].IsActive)
	assert.NotContains(t, rec.Body.String(), "hunter22", "password never leaves the server")
}

func TestCreateUser_DuplicateID(t *testing.T) {
	_, router := newUserTestRouter(t)

	rec := postJSON(t, router, "/api/users", createUserRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, router, "/api/users", createUserRequest())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUser_Validation(t *testing.T) {
	_, router := newUserTestRouter(t)

	tests := []struct {
		name   string
		mutate func(*CreateUserRequest)
	}{
		{"missing name", func(r *CreateUserRequest) { r.Name = "" }},
		{"missing user id", func(r *CreateUserRequest) { r.UserID = "" }},
		{"short password", func(r *CreateUserRequest) { r.Password = "abc" }},
		{"unknown role", func(r *CreateUserRequest) { r.Role = "root" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createUserRequest()
			tt.mutate(&req)
			rec := postJSON(t, router, "/api/users", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUserLogin(t *testing.T) {
	_, router := newUserTestRouter(t)
	require.Equal(t, http.StatusCreated,
		postJSON(t, router, "/api/users", createUserRequest()).Code)

	rec := postJSON(t, router, "/api/users/login", UserLoginRequest{
		UserID: "jane01", Password: "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var user store.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "jane01", user.UserID)

	rec = postJSON(t, router, "/api/users/login", UserLoginRequest{
		UserID: "jane01", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/api/users/login", UserLoginRequest{
		UserID: "nobody", Password: "hunter22",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserLogin_DisabledAccount(t *testing.T) {
	st, router := newUserTestRouter(t)
	require.Equal(t, http.StatusCreated,
		postJSON(t, router, "/api/users", createUserRequest()).Code)
	require.NoError(t, st.SetUserActive("jane01", false))

	rec := postJSON(t, router, "/api/users/login", UserLoginRequest{
		UserID: "jane01", Password: "hunter22",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code,
		"a disabled account renders the same 401 as bad credentials")
}

func TestUserActiveAndRoleUpdates(t *testing.T) {
	st, router := newUserTestRouter(t)
	require.Equal(t, http.StatusCreated,
		postJSON(t, router, "/api/users", createUserRequest()).Code)

	off := false
	rec := putJSON(t, router, "/api/users/jane01/active", SetActiveRequest{Active: &off})
	require.Equal(t, http.StatusOK, rec.Code)
	user, err := st.UserByID("jane01")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.IsActive)

	rec = putJSON(t, router, "/api/users/jane01/role", SetRoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	user, err = st.UserByID("jane01")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role)

	rec = putJSON(t, router, "/api/users/jane01/role", SetRoleRequest{Role: "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	st, router := newUserTestRouter(t)
	require.Equal(t, http.StatusCreated,
		postJSON(t, router, "/api/users", createUserRequest()).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/users/jane01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	user, err := st.UserByID("jane01")
	require.NoError(t, err)
	assert.Nil(t, user)
}
