package account

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vidtube/internal/http_server/middleware/authenticate"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	gotUserID   string
	gotFullName string
	gotEmail    string
	user        models.PublicUser
	err         error
}

func (f *fakeUpdater) UpdateAccount(_ context.Context, userID, fullName, email string) (models.PublicUser, error) {
	f.gotUserID = userID
	f.gotFullName = fullName
	f.gotEmail = email
	return f.user, f.err
}

type staticParser struct{ userID string }

func (p staticParser) ParseAccessToken(string) (string, error) { return p.userID, nil }

func doUpdate(updater *fakeUpdater, body string) *httptest.ResponseRecorder {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(log, validator.New(), updater)

	req := httptest.NewRequest(http.MethodPatch, "/update-account", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()

	authenticate.New(log, staticParser{userID: "u1"}, nil)(handler).ServeHTTP(w, req)

	return w
}

func TestUpdateAccount_Success(t *testing.T) {
	updater := &fakeUpdater{user: models.PublicUser{ID: "u1", FullName: "New Name", Email: "new@example.com"}}

	w := doUpdate(updater, `{"fullname":"New Name","email":"new@example.com"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", updater.gotUserID)
	assert.Equal(t, "New Name", updater.gotFullName)
	assert.Equal(t, "new@example.com", updater.gotEmail)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "New Name", data["fullname"])
	assert.Equal(t, "new@example.com", data["email"])
}

func TestUpdateAccount_InvalidEmail(t *testing.T) {
	updater := &fakeUpdater{}

	w := doUpdate(updater, `{"fullname":"New Name","email":"not-an-email"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, updater.gotEmail, "service must not be called on invalid input")
}

func TestUpdateAccount_MissingFields(t *testing.T) {
	w := doUpdate(&fakeUpdater{}, `{"email":"new@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAccount_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"email taken", storage.ErrUserExists, http.StatusConflict, "Email already in use"},
		{"unknown user", storage.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doUpdate(&fakeUpdater{err: tt.err}, `{"fullname":"New Name","email":"new@example.com"}`)

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}
