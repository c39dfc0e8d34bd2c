package cookies

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Helper writes and clears the auth cookie pair. Cookies are always httpOnly;
// Secure is only set for production deployments.
type Helper struct {
	secure bool
}

func NewHelper(secure bool) *Helper {
	return &Helper{secure: secure}
}

func (h *Helper) SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	h.set(w, AccessTokenCookie, accessToken, int(accessTTL.Seconds()))
	h.set(w, RefreshTokenCookie, refreshToken, int(refreshTTL.Seconds()))
}

func (h *Helper) ClearAuthCookies(w http.ResponseWriter) {
	h.set(w, AccessTokenCookie, "", -1)
	h.set(w, RefreshTokenCookie, "", -1)
}

func (h *Helper) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// AccessToken reads the access token cookie, returning "" when absent.
func AccessToken(r *http.Request) string {
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// RefreshToken reads the refresh token cookie, returning "" when absent.
func RefreshToken(r *http.Request) string {
	c, err := r.Cookie(RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
