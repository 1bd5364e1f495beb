package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"time"
)

// sessionCookieNames are the cookies TikTok sets on a logged-in account.
var sessionCookieNames = []string{"sessionid", "sessionid_ss", "sid_tt"}

// Session is saved browser authentication state, captured by an external
// login step and loaded read-only.
type Session struct {
	Cookies []*http.Cookie
	// LocalStorage maps origin to key/value entries.
	LocalStorage map[string]map[string]string
}

// storageState mirrors the browser storage-state document.
type storageState struct {
	Cookies []sessionCookie `json:"cookies"`
	Origins []struct {
		Origin       string `json:"origin"`
		LocalStorage []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"localStorage"`
	} `json:"origins"`
}

// sessionCookie accepts both storage-state cookies (expires as unix seconds)
// and encoded http.Cookie values (Expires as a timestamp string).
type sessionCookie struct {
	Name     string          `json:"name"`
	Value    string          `json:"value"`
	Domain   string          `json:"domain"`
	Path     string          `json:"path"`
	Expires  json.RawMessage `json:"expires"`
	HTTPOnly bool            `json:"httpOnly"`
	Secure   bool            `json:"secure"`
}

func (c sessionCookie) toHTTP() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if hc.Path == "" {
		hc.Path = "/"
	}
	hc.Expires = parseCookieExpiry(c.Expires)
	return hc
}

// parseCookieExpiry returns the zero time for session cookies (-1, 0, null).
func parseCookieExpiry(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		if secs <= 0 {
			return time.Time{}
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9))
	}
	var ts time.Time
	if err := json.Unmarshal(raw, &ts); err == nil && ts.Year() > 1 {
		return ts
	}
	return time.Time{}
}

// LoadSession reads a session file. Both a storage-state document and a bare
// cookie array are accepted. The session is validated before it is returned.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read session file: %w", ErrSessionInvalid, err)
	}
	sess, err := parseSession(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse session %q: %w", ErrSessionInvalid, path, err)
	}
	if err := sess.Validate(time.Now()); err != nil {
		return nil, err
	}
	return sess, nil
}

func parseSession(data []byte) (*Session, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty session file", ErrSessionInvalid)
	}

	sess := &Session{LocalStorage: map[string]map[string]string{}}

	if data[0] == '[' {
		var cookies []sessionCookie
		if err := json.Unmarshal(data, &cookies); err != nil {
			return nil, fmt.Errorf("unmarshal cookies: %w", err)
		}
		for _, c := range cookies {
			sess.Cookies = append(sess.Cookies, c.toHTTP())
		}
		return sess, nil
	}

	var state storageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal storage state: %w", err)
	}
	for _, c := range state.Cookies {
		sess.Cookies = append(sess.Cookies, c.toHTTP())
	}
	for _, o := range state.Origins {
		if o.Origin == "" {
			continue
		}
		entries := sess.LocalStorage[o.Origin]
		if entries == nil {
			entries = map[string]string{}
			sess.LocalStorage[o.Origin] = entries
		}
		for _, kv := range o.LocalStorage {
			entries[kv.Name] = kv.Value
		}
	}
	return sess, nil
}

// Validate checks that the session carries at least one unexpired login
// cookie.
func (sess *Session) Validate(now time.Time) error {
	if sess == nil || len(sess.Cookies) == 0 {
		return fmt.Errorf("%w: no cookies", ErrSessionInvalid)
	}
	var expired *http.Cookie
	for _, c := range sess.Cookies {
		if !isSessionCookie(c.Name) || c.Value == "" {
			continue
		}
		if c.Expires.IsZero() || !c.Expires.Before(now) {
			return nil
		}
		if expired == nil {
			expired = c
		}
	}
	if expired != nil {
		return fmt.Errorf("%w: %s expired at %s", ErrSessionInvalid, expired.Name, expired.Expires.Format(time.RFC3339))
	}
	return fmt.Errorf("%w: no login cookie", ErrSessionInvalid)
}

func isSessionCookie(name string) bool {
	for _, n := range sessionCookieNames {
		if n == name {
			return true
		}
	}
	return false
}

// ApplySession loads the session cookies into the HTTP client. The browser
// receives them separately when the feed is opened.
func (s *Scraper) ApplySession(sess *Session) error {
	if err := sess.Validate(time.Now()); err != nil {
		return fmt.Errorf("apply session: %w", err)
	}
	s.SetCookies(sess.Cookies)
	s.isLogged = true
	return nil
}

// sameOrigin reports whether origin matches the scheme and host of pageURL.
func sameOrigin(origin, pageURL string) bool {
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	p, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return o.Scheme == p.Scheme && o.Host == p.Host
}
