package login

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/http_server/cookies"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoginer struct {
	user         models.PublicUser
	accessToken  string
	refreshToken string
	err          error
}

func (f *fakeLoginer) Login(_ context.Context, _, _, _ string) (models.PublicUser, string, string, error) {
	if f.err != nil {
		return models.PublicUser{}, "", "", f.err
	}
	return f.user, f.accessToken, f.refreshToken, nil
}

func newHandler(loginer *fakeLoginer) http.HandlerFunc {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, validator.New(), loginer, cookies.NewHelper(false), 15*time.Minute, 24*time.Hour)
}

func doLogin(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	handler(w, req)

	return w
}

func TestLogin_Success(t *testing.T) {
	loginer := &fakeLoginer{
		user:         models.PublicUser{ID: "u1", Username: "ab", Email: "a@b.com"},
		accessToken:  "access-token",
		refreshToken: "refresh-token",
	}

	w := doLogin(t, newHandler(loginer), `{"username":"ab","password":"pw1"}`)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Equal(t, "access-token", data["accessToken"])
	assert.Equal(t, "refresh-token", data["refreshToken"])

	user := data["user"].(map[string]any)
	assert.Equal(t, "ab", user["username"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "refreshToken")

	resCookies := w.Result().Cookies()
	require.Len(t, resCookies, 2)
	for _, c := range resCookies {
		assert.True(t, c.HttpOnly)
	}
}

func TestLogin_MissingPassword(t *testing.T) {
	w := doLogin(t, newHandler(&fakeLoginer{}), `{"username":"ab"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_BadJSON(t *testing.T) {
	w := doLogin(t, newHandler(&fakeLoginer{}), `{`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown user", storage.ErrUserNotFound, http.StatusNotFound},
		{"wrong password", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"store failure", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doLogin(t, newHandler(&fakeLoginer{err: tt.err}), `{"username":"ab","password":"pw1"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Empty(t, w.Result().Cookies(), "no cookies may be set on failure")

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
		})
	}
}
