package tiktok

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"golang.org/x/net/proxy"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var tiktokURL, _ = url.Parse("https://www.tiktok.com")

// Scraper talks to TikTok over plain HTTP for sound pages and API calls, and
// drives a headless browser for the For You feed and for URL signing.
type Scraper struct {
	client    *http.Client
	proxy     string
	userAgent string
	isLogged  bool
	baseURL   string // defaults to "https://www.tiktok.com"

	// Browser for the feed and URL signing.
	browser      *rod.Browser
	page         *rod.Page
	browserMu    sync.Mutex
	signingReady atomic.Bool
	headless     bool
	locale       string

	// signFunc signs a raw URL via browser JS. Replaceable for testing.
	signFunc func(rawURL string) (string, error)

	// Per-operation rate limiting.
	// API (trending/music detail): ~30/min → 2s min. Sound pages: 0.5s min.
	apiDelay   time.Duration
	soundDelay time.Duration
	lastAPI    time.Time
	lastSound  time.Time
	apiMu      sync.Mutex
	soundMu    sync.Mutex

	// Session token.
	msToken string
}

// defaultTransport returns an http.Transport optimized for scraping:
// connection pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// New creates a Scraper with sensible defaults. The browser is not launched
// until InitBrowser or OpenFeed is called.
func New() *Scraper {
	jar, _ := cookiejar.New(nil)
	s := &Scraper{
		client: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: defaultTransport(),
		},
		baseURL:    "https://www.tiktok.com",
		userAgent:  defaultUserAgent,
		headless:   true,
		locale:     "en-AU",
		apiDelay:   2 * time.Second,
		soundDelay: 500 * time.Millisecond,
	}
	s.signFunc = s.signURL
	return s
}

// WithAPIDelay sets the minimum delay between signed API requests.
func (s *Scraper) WithAPIDelay(d time.Duration) *Scraper {
	s.apiDelay = d
	return s
}

// WithSoundDelay sets the minimum delay between sound lookups.
func (s *Scraper) WithSoundDelay(d time.Duration) *Scraper {
	s.soundDelay = d
	return s
}

// WithHeadless controls whether the browser is launched without a window.
func (s *Scraper) WithHeadless(headless bool) *Scraper {
	s.headless = headless
	return s
}

// WithLocale sets the Accept-Language locale used by the browser.
func (s *Scraper) WithLocale(locale string) *Scraper {
	if locale != "" {
		s.locale = locale
	}
	return s
}

// SetMsToken sets the msToken sent with API requests.
func (s *Scraper) SetMsToken(token string) {
	if token == "" {
		return
	}
	s.msToken = token
	s.client.Jar.SetCookies(tiktokURL, []*http.Cookie{{Name: "msToken", Value: token, Path: "/"}})
}

// SetProxy configures an HTTP/HTTPS or SOCKS5 proxy for the HTTP client and
// the browser launched afterwards. A bare "host:port" is taken as an HTTP
// proxy. An empty address removes the proxy.
func (s *Scraper) SetProxy(proxyAddr string) error {
	if proxyAddr == "" {
		s.client.Transport = defaultTransport()
		s.proxy = ""
		return nil
	}
	if !strings.Contains(proxyAddr, "://") {
		proxyAddr = "http://" + proxyAddr
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy %q has no host", proxyAddr)
	}

	transport := defaultTransport()
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		dc, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("socks5: context dialer not supported")
		}
		transport.DialContext = dc.DialContext
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	s.client.Transport = transport
	s.proxy = proxyAddr
	return nil
}

// browserProxy splits the configured proxy into the server Chrome accepts on
// its command line and the credentials it must answer auth challenges with.
func browserProxy(proxyAddr string) (server, user, pass string) {
	u, err := url.Parse(proxyAddr)
	if err != nil || u.Host == "" {
		return proxyAddr, "", ""
	}
	scheme := u.Scheme
	if scheme == "socks5h" {
		scheme = "socks5"
	}
	server = scheme + "://" + u.Host
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	return server, user, pass
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// closeOnError closes c when the surrounding function returns a non-nil
// *errp. Used with a named error result.
func closeOnError(errp *error, c io.Closer) {
	if *errp == nil {
		return
	}
	if cerr := c.Close(); cerr != nil {
		logger().Debug().Err(cerr).Msg("close after failed setup")
	}
}

// doRequest builds and executes an HTTP request with standard TikTok headers.
// No built-in rate limiting; callers use waitForAPI or waitForSound.
func (s *Scraper) doRequest(ctx context.Context, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.tiktok.com/")
	req.Header.Set("Origin", "https://www.tiktok.com")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrAuthRequired
	}

	return resp, nil
}

// waitForAPI enforces rate limiting for signed API calls.
func (s *Scraper) waitForAPI() {
	s.apiMu.Lock()
	defer s.apiMu.Unlock()
	s.throttle(&s.lastAPI, s.apiDelay)
}

// waitForSound enforces rate limiting for sound lookups.
func (s *Scraper) waitForSound() {
	s.soundMu.Lock()
	defer s.soundMu.Unlock()
	s.throttle(&s.lastSound, s.soundDelay)
}

// throttle sleeps if needed to enforce min delay + jitter between requests.
func (s *Scraper) throttle(lastReq *time.Time, delay time.Duration) {
	if delay <= 0 {
		return
	}
	elapsed := time.Since(*lastReq)
	jitter := time.Duration(rand.Int64N(int64(delay/4) + 1))
	wait := delay + jitter - elapsed
	if wait > 0 {
		time.Sleep(wait)
	}
	*lastReq = time.Now()
}

// GetCookies returns the current session cookies for tiktok.com.
func (s *Scraper) GetCookies() []*http.Cookie {
	return s.client.Jar.Cookies(tiktokURL)
}

// SetCookies sets session cookies and extracts the msToken.
func (s *Scraper) SetCookies(cookies []*http.Cookie) {
	s.client.Jar.SetCookies(tiktokURL, cookies)
	for _, c := range cookies {
		if c.Name == "msToken" {
			s.msToken = c.Value
		}
	}
}

// IsLoggedIn reports whether a session has been applied.
func (s *Scraper) IsLoggedIn() bool {
	return s.isLogged
}

// Close releases all resources including the headless browser if running.
func (s *Scraper) Close() error {
	return s.closeBrowser()
}
