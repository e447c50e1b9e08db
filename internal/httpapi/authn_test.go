package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenFromRequest(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"none", "", "", ""},
		{"cookie", "c1", "", "c1"},
		{"bearer", "", "Bearer b1", "b1"},
		{"bearer case insensitive", "", "bearer b2", "b2"},
		{"cookie wins", "c1", "Bearer b1", "c1"},
		{"bare scheme", "", "Bearer ", ""},
		{"other scheme", "", "Basic dXNlcjpwYXNz", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: tc.cookie})
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if got := tokenFromRequest(req); got != tc.want {
				t.Fatalf("tokenFromRequest = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSessionCookiePolicy(t *testing.T) {
	dev := &API{opts: Options{}}
	prod := &API{opts: Options{Production: true}}

	rec := httptest.NewRecorder()
	dev.clearSessionCookie(rec)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if c := cookies[0]; c.MaxAge >= 0 || c.Secure || c.SameSite != http.SameSiteLaxMode || !c.HttpOnly {
		t.Fatalf("unexpected dev cookie %+v", c)
	}

	rec = httptest.NewRecorder()
	prod.clearSessionCookie(rec)
	c := rec.Result().Cookies()[0]
	if !c.Secure || c.SameSite != http.SameSiteNoneMode {
		t.Fatalf("production cookie must be Secure and SameSite=None, got %+v", c)
	}
}
