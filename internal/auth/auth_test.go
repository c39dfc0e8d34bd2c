package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	jwtlib "vidtube/internal/lib/jwt"
	"vidtube/internal/media"
	"vidtube/internal/models"
	"vidtube/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes ---

type fakeUserStore struct {
	users map[string]*models.User

	saveErr   error
	saveCalls int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) SaveUser(_ context.Context, u models.User) (models.User, error) {
	f.saveCalls++

	if f.saveErr != nil {
		return models.User{}, f.saveErr
	}

	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return models.User{}, storage.ErrUserExists
		}
	}

	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = &u

	return u, nil
}

func (f *fakeUserStore) UserByID(_ context.Context, id string) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (f *fakeUserStore) UserByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	for _, u := range f.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return *u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeUserStore) SetRefreshToken(_ context.Context, userID, token string) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.RefreshToken = token
	return nil
}

func (f *fakeUserStore) RotateRefreshToken(_ context.Context, userID, oldToken, newToken string) error {
	u, ok := f.users[userID]
	if !ok || u.RefreshToken != oldToken {
		return storage.ErrTokenMismatch
	}
	u.RefreshToken = newToken
	return nil
}

func (f *fakeUserStore) ClearRefreshToken(_ context.Context, userID string) error {
	if u, ok := f.users[userID]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, userID string, passHash []byte) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	return nil
}

func (f *fakeUserStore) UpdateAccountDetails(_ context.Context, userID, fullName, email string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	u.FullName = fullName
	u.Email = email
	return *u, nil
}

func (f *fakeUserStore) UpdateAvatar(_ context.Context, userID, avatarURL string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	u.AvatarURL = avatarURL
	return *u, nil
}

func (f *fakeUserStore) UpdateCoverImage(_ context.Context, userID, coverURL string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	u.CoverURL = coverURL
	return *u, nil
}

type fakeMediaHost struct {
	uploads      int
	deleted      []string
	failUploadOn int // 1-based upload call to fail, 0 = never
	deleteErr    error
}

func (f *fakeMediaHost) Upload(_ context.Context, folder, filename string, _ io.Reader, _ int64, _ string) (media.Asset, error) {
	f.uploads++
	if f.failUploadOn != 0 && f.uploads == f.failUploadOn {
		return media.Asset{}, errors.New("media host unavailable")
	}

	key := fmt.Sprintf("%s/%s", folder, filename)
	return media.Asset{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (f *fakeMediaHost) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

type fakeBlacklist struct {
	tokens []string
}

func (f *fakeBlacklist) BlacklistAccessToken(_ context.Context, token string, _ time.Duration) error {
	f.tokens = append(f.tokens, token)
	return nil
}

type fakeNotifier struct {
	messages []models.Message
	err      error
}

func (f *fakeNotifier) SendMessage(_ context.Context, msg models.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

// --- helpers ---

func testAuth(t *testing.T) (*Auth, *fakeUserStore, *fakeMediaHost, *fakeBlacklist, *fakeNotifier) {
	t.Helper()

	users := newFakeUserStore()
	mediaHost := &fakeMediaHost{}
	blacklist := &fakeBlacklist{}
	notifier := &fakeNotifier{}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens := jwtlib.Tokens{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}

	return New(log, users, mediaHost, blacklist, notifier, tokens), users, mediaHost, blacklist, notifier
}

func avatarFile() *File {
	return &File{
		Name:        "avatar.png",
		ContentType: "image/png",
		Size:        3,
		Reader:      strings.NewReader("img"),
	}
}

func coverFile() *File {
	return &File{
		Name:        "cover.jpg",
		ContentType: "image/jpeg",
		Size:        3,
		Reader:      strings.NewReader("img"),
	}
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		FullName: "A B",
		Email:    "a@b.com",
		Username: "ab",
		Password: "pw1",
		Avatar:   avatarFile(),
	}
}

func registerUser(t *testing.T, a *Auth) models.PublicUser {
	t.Helper()

	user, err := a.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	return user
}

// --- register ---

func TestRegister_Success(t *testing.T) {
	a, users, mediaHost, _, notifier := testAuth(t)

	in := validRegisterInput()
	in.Username = "  AB  "
	in.Cover = coverFile()

	user, err := a.Register(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "ab", user.Username, "username must be lowercased and trimmed")
	assert.Equal(t, "a@b.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.Contains(t, user.AvatarURL, "avatars/")
	assert.Contains(t, user.CoverURL, "covers/")
	assert.Equal(t, 2, mediaHost.uploads)

	stored, err := users.UserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PassHash, []byte("pw1")),
		"stored password must be a bcrypt hash of the input")
	assert.NotContains(t, string(stored.PassHash), "pw1")

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, "a@b.com", notifier.messages[0].Email)
}

func TestRegister_BlankFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"blank fullname", func(in *RegisterInput) { in.FullName = "   " }},
		{"blank email", func(in *RegisterInput) { in.Email = "" }},
		{"blank username", func(in *RegisterInput) { in.Username = "\t" }},
		{"blank password", func(in *RegisterInput) { in.Password = " " }},
		{"missing avatar", func(in *RegisterInput) { in.Avatar = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, users, mediaHost, _, _ := testAuth(t)

			in := validRegisterInput()
			tt.mutate(&in)

			_, err := a.Register(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, mediaHost.uploads, "no upload may happen on validation failure")
			assert.Zero(t, users.saveCalls, "no record may be created on validation failure")
		})
	}
}

func TestRegister_Conflict(t *testing.T) {
	a, _, mediaHost, _, _ := testAuth(t)

	registerUser(t, a)
	mediaHost.uploads = 0

	_, err := a.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.Zero(t, mediaHost.uploads, "conflict must be detected before any upload")
}

func TestRegister_AvatarUploadFails(t *testing.T) {
	a, users, mediaHost, _, _ := testAuth(t)
	mediaHost.failUploadOn = 1

	_, err := a.Register(context.Background(), validRegisterInput())
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Zero(t, users.saveCalls, "no record may be created when the avatar upload fails")
}

func TestRegister_CoverUploadFails(t *testing.T) {
	a, users, mediaHost, _, _ := testAuth(t)
	mediaHost.failUploadOn = 2

	in := validRegisterInput()
	in.Cover = coverFile()

	_, err := a.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Zero(t, users.saveCalls)
}

func TestRegister_CompensatesUploadsWhenCreateFails(t *testing.T) {
	a, users, mediaHost, _, _ := testAuth(t)
	users.saveErr = errors.New("insert failed")

	in := validRegisterInput()
	in.Cover = coverFile()

	_, err := a.Register(context.Background(), in)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUploadFailed)

	assert.ElementsMatch(t, []string{"avatars/avatar.png", "covers/cover.jpg"}, mediaHost.deleted,
		"both uploaded assets must be deleted when record creation fails")
}

func TestRegister_CleanupIgnoresDeleteErrors(t *testing.T) {
	a, users, mediaHost, _, _ := testAuth(t)
	users.saveErr = errors.New("insert failed")
	mediaHost.deleteErr = errors.New("already gone")

	_, err := a.Register(context.Background(), validRegisterInput())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUploadFailed, "a failing delete must not mask the original failure")
	assert.Len(t, mediaHost.deleted, 1)
}

func TestRegister_NotifierFailureIsNotFatal(t *testing.T) {
	a, _, _, _, notifier := testAuth(t)
	notifier.err = errors.New("broker down")

	_, err := a.Register(context.Background(), validRegisterInput())
	assert.NoError(t, err)
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	a, users, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	user, access, refreshToken, err := a.Login(context.Background(), "ab", "", "pw1")
	require.NoError(t, err)

	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refreshToken)

	stored, err := users.UserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, refreshToken, stored.RefreshToken, "refresh token must be persisted on login")
}

func TestLogin_ByEmailOnly(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	registerUser(t, a)

	_, _, _, err := a.Login(context.Background(), "", "a@b.com", "pw1")
	assert.NoError(t, err)
}

func TestLogin_MissingIdentifierOrPassword(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	_, _, _, err := a.Login(context.Background(), "", "", "pw1")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, _, err = a.Login(context.Background(), "ab", "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin_UnknownUser(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	_, _, _, err := a.Login(context.Background(), "nobody", "", "pw1")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestLogin_WrongPassword(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	registerUser(t, a)

	_, _, _, err := a.Login(context.Background(), "ab", "", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// --- refresh ---

func TestRefresh_RotationRoundTrip(t *testing.T) {
	a, users, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	_, _, firstRefresh, err := a.Login(context.Background(), "ab", "", "pw1")
	require.NoError(t, err)

	access, secondRefresh, err := a.Refresh(context.Background(), firstRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEqual(t, firstRefresh, secondRefresh)

	stored, err := users.UserByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, secondRefresh, stored.RefreshToken)

	// Replaying the rotated-out token must fail.
	_, _, err = a.Refresh(context.Background(), firstRefresh)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The current token still works.
	_, _, err = a.Refresh(context.Background(), secondRefresh)
	assert.NoError(t, err)
}

func TestRefresh_EmptyToken(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	_, _, err := a.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_MalformedToken(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	_, _, err := a.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, jwtlib.ErrInvalidToken)
}

func TestRefresh_UnknownUser(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	token, err := a.tokens.NewRefreshToken("ghost")
	require.NoError(t, err)

	_, _, err = a.Refresh(context.Background(), token)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRefresh_ForeignToken(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	_, _, _, err := a.Login(context.Background(), "ab", "", "pw1")
	require.NoError(t, err)

	// Validly signed for the right user, but never stored on the record.
	forged, err := a.tokens.NewRefreshToken(created.ID)
	require.NoError(t, err)

	_, _, err = a.Refresh(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// --- logout ---

func TestLogout_InvalidatesSession(t *testing.T) {
	a, users, _, blacklist, _ := testAuth(t)
	created := registerUser(t, a)

	_, access, refreshToken, err := a.Login(context.Background(), "ab", "", "pw1")
	require.NoError(t, err)

	require.NoError(t, a.Logout(context.Background(), created.ID, access))

	stored, err := users.UserByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	assert.Contains(t, blacklist.tokens, access)

	// The pre-logout refresh token is now useless.
	_, _, err = a.Refresh(context.Background(), refreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// --- profile mutations ---

func TestChangePassword(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	err := a.ChangePassword(context.Background(), created.ID, "wrong", "new-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, a.ChangePassword(context.Background(), created.ID, "pw1", "new-pw"))

	_, _, _, err = a.Login(context.Background(), "ab", "", "new-pw")
	assert.NoError(t, err)

	_, _, _, err = a.Login(context.Background(), "ab", "", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword_BlankInput(t *testing.T) {
	a, _, _, _, _ := testAuth(t)

	err := a.ChangePassword(context.Background(), "any", "", "new")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateAccount(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	user, err := a.UpdateAccount(context.Background(), created.ID, "New Name", "new@b.com")
	require.NoError(t, err)
	assert.Equal(t, "New Name", user.FullName)
	assert.Equal(t, "new@b.com", user.Email)

	_, err = a.UpdateAccount(context.Background(), created.ID, "", "new@b.com")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateAvatar(t *testing.T) {
	a, _, mediaHost, _, _ := testAuth(t)
	created := registerUser(t, a)

	user, err := a.UpdateAvatar(context.Background(), created.ID, &File{
		Name:        "new.png",
		ContentType: "image/png",
		Size:        3,
		Reader:      strings.NewReader("img"),
	})
	require.NoError(t, err)
	assert.Contains(t, user.AvatarURL, "avatars/new.png")

	mediaHost.failUploadOn = mediaHost.uploads + 1
	_, err = a.UpdateAvatar(context.Background(), created.ID, avatarFile())
	assert.ErrorIs(t, err, ErrUploadFailed)

	_, err = a.UpdateAvatar(context.Background(), created.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateCoverImage(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	user, err := a.UpdateCoverImage(context.Background(), created.ID, coverFile())
	require.NoError(t, err)
	assert.Contains(t, user.CoverURL, "covers/cover.jpg")
}

func TestCurrentUser(t *testing.T) {
	a, _, _, _, _ := testAuth(t)
	created := registerUser(t, a)

	user, err := a.CurrentUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = a.CurrentUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}
