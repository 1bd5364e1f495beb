package tiktok

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const storageStateJSON = `{
  "cookies": [
    {"name": "sessionid", "value": "sess-1", "domain": ".tiktok.com", "path": "/", "expires": 4102444800, "httpOnly": true, "secure": true},
    {"name": "msToken", "value": "ms-1", "domain": ".tiktok.com", "path": "/", "expires": -1},
    {"name": "tt_csrf_token", "value": "csrf", "domain": ".tiktok.com"}
  ],
  "origins": [
    {"origin": "https://www.tiktok.com", "localStorage": [
      {"name": "webapp-session-id", "value": "abc"},
      {"name": "tt_lang", "value": "en"}
    ]},
    {"origin": "", "localStorage": [{"name": "ignored", "value": "x"}]}
  ]
}`

func cookieValue(sess *Session, name string) string {
	for _, c := range sess.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestParseSession_StorageState(t *testing.T) {
	t.Parallel()
	sess, err := parseSession([]byte(storageStateJSON))
	if err != nil {
		t.Fatalf("parseSession: %v", err)
	}
	if len(sess.Cookies) != 3 {
		t.Fatalf("expected 3 cookies, got %d", len(sess.Cookies))
	}
	if got := cookieValue(sess, "sessionid"); got != "sess-1" {
		t.Errorf("expected sessionid sess-1, got %q", got)
	}
	if exp := sess.Cookies[0].Expires; !exp.Equal(time.Unix(4102444800, 0)) {
		t.Errorf("unexpected expiry %v", exp)
	}
	if !sess.Cookies[1].Expires.IsZero() {
		t.Error("expires -1 should be a session cookie")
	}
	if sess.Cookies[2].Path != "/" {
		t.Errorf("missing path should default to /, got %q", sess.Cookies[2].Path)
	}
	ls := sess.LocalStorage["https://www.tiktok.com"]
	if ls["webapp-session-id"] != "abc" || ls["tt_lang"] != "en" {
		t.Errorf("unexpected local storage %v", sess.LocalStorage)
	}
	if len(sess.LocalStorage) != 1 {
		t.Errorf("origins without a name should be skipped, got %v", sess.LocalStorage)
	}
	if err := sess.Validate(time.Now()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseSession_CookieArray(t *testing.T) {
	t.Parallel()
	data := `[{"name":"sid_tt","value":"s","domain":".tiktok.com","expires":"2100-01-01T00:00:00Z"}]`
	sess, err := parseSession([]byte(data))
	if err != nil {
		t.Fatalf("parseSession: %v", err)
	}
	if len(sess.Cookies) != 1 || sess.Cookies[0].Expires.Year() != 2100 {
		t.Errorf("unexpected cookies %+v", sess.Cookies[0])
	}
	if err := sess.Validate(time.Now()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseSession_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data string
	}{
		{"empty", "   "},
		{"bad array", "[{"},
		{"bad object", "{nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseSession([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseCookieExpiry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      string
		wantZero bool
		want     time.Time
	}{
		{"", true, time.Time{}},
		{"null", true, time.Time{}},
		{"-1", true, time.Time{}},
		{"0", true, time.Time{}},
		{"1700000000", false, time.Unix(1700000000, 0)},
		{`"2030-05-01T10:00:00Z"`, false, time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)},
		{`"0001-01-01T00:00:00Z"`, true, time.Time{}},
		{`"garbage"`, true, time.Time{}},
	}
	for _, tt := range tests {
		got := parseCookieExpiry(json.RawMessage(tt.raw))
		if tt.wantZero {
			if !got.IsZero() {
				t.Errorf("parseCookieExpiry(%s) = %v, want zero", tt.raw, got)
			}
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseCookieExpiry(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSessionValidate(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sessWith := func(name, value string, expires time.Time) *Session {
		return &Session{Cookies: []*http.Cookie{{Name: name, Value: value, Expires: expires}}}
	}
	tests := []struct {
		name    string
		sess    *Session
		wantErr bool
	}{
		{"nil session", nil, true},
		{"no cookies", &Session{}, true},
		{"no login cookie", sessWith("msToken", "x", time.Time{}), true},
		{"empty login cookie", sessWith("sessionid", "", time.Time{}), true},
		{"expired", sessWith("sessionid", "x", now.Add(-time.Hour)), true},
		{"session cookie", sessWith("sessionid_ss", "x", time.Time{}), false},
		{"future expiry", sessWith("sid_tt", "x", now.Add(time.Hour)), false},
		{"one expired one valid", &Session{Cookies: []*http.Cookie{
			{Name: "sessionid", Value: "x", Expires: now.Add(-time.Hour)},
			{Name: "sid_tt", Value: "y", Expires: now.Add(time.Hour)},
		}}, false},
		{"all expired", &Session{Cookies: []*http.Cookie{
			{Name: "sessionid", Value: "x", Expires: now.Add(-time.Hour)},
			{Name: "sid_tt", Value: "y", Expires: now.Add(-time.Minute)},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.sess.Validate(now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrSessionInvalid) {
				t.Errorf("expected ErrSessionInvalid, got %v", err)
			}
		})
	}
}

func TestLoadSession(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "state.json")
	if err := writeFile(good, []byte(storageStateJSON)); err != nil {
		t.Fatalf("write: %v", err)
	}
	sess, err := LoadSession(good)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got := cookieValue(sess, "msToken"); got != "ms-1" {
		t.Errorf("expected msToken cookie, got %q", got)
	}

	_, err = LoadSession(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, ErrSessionInvalid) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: expected ErrSessionInvalid wrapping ErrNotExist, got %v", err)
	}

	expired := filepath.Join(dir, "expired.json")
	if err := writeFile(expired, []byte(`[{"name":"sessionid","value":"x","expires":1000}]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSession(expired); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("expired: expected ErrSessionInvalid, got %v", err)
	}
}

func TestApplySession(t *testing.T) {
	t.Parallel()
	sess, err := parseSession([]byte(storageStateJSON))
	if err != nil {
		t.Fatalf("parseSession: %v", err)
	}

	s := New()
	if err := s.ApplySession(sess); err != nil {
		t.Fatalf("ApplySession: %v", err)
	}
	if !s.IsLoggedIn() {
		t.Error("expected logged in after ApplySession")
	}
	if s.msToken != "ms-1" {
		t.Errorf("expected msToken from session, got %q", s.msToken)
	}

	s2 := New()
	if err := s2.ApplySession(&Session{}); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("expected ErrSessionInvalid, got %v", err)
	}
	if s2.IsLoggedIn() {
		t.Error("invalid session must not mark the scraper logged in")
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		origin, page string
		want         bool
	}{
		{"https://www.tiktok.com", "https://www.tiktok.com/foryou", true},
		{"https://www.tiktok.com", "https://m.tiktok.com/foryou", false},
		{"http://www.tiktok.com", "https://www.tiktok.com/", false},
		{"://bad", "https://www.tiktok.com/", false},
	}
	for _, tt := range tests {
		if got := sameOrigin(tt.origin, tt.page); got != tt.want {
			t.Errorf("sameOrigin(%q, %q) = %v, want %v", tt.origin, tt.page, got, tt.want)
		}
	}
}
