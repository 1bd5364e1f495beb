//go:build !unittest

package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// InitBrowser launches a Chrome instance with stealth mode. It is used for
// URL signing and, through OpenFeed, for driving the For You feed.
func (s *Scraper) InitBrowser() error {
	return s.launchBrowser()
}

func (s *Scraper) launchBrowser() (err error) {
	l := launcher.New().Headless(s.headless).Set("lang", s.locale)
	var proxyUser, proxyPass string
	if s.proxy != "" {
		var server string
		server, proxyUser, proxyPass = browserProxy(s.proxy)
		l = l.Proxy(server)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer closeOnError(&err, closerFunc(func() error {
		s.browser, s.page = nil, nil
		return browser.Close()
	}))
	if proxyUser != "" {
		// Each HandleAuth call answers one challenge; keep re-arming until
		// the browser goes away.
		go func() {
			for browser.HandleAuth(proxyUser, proxyPass)() == nil {
			}
		}()
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return fmt.Errorf("create stealth page: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1280, Height: 720, DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	s.browser = browser
	s.page = page

	s.setupResourceBlocking()

	if err := s.page.Navigate(s.baseURL); err != nil {
		return fmt.Errorf("navigate to tiktok: %w", err)
	}
	if err := s.page.WaitStable(2 * time.Second); err != nil {
		return fmt.Errorf("wait for page stable: %w", err)
	}

	// Cache that signing is ready after initial page load.
	s.signingReady.Store(true)

	// Sync browser cookies (including fresh msToken) to the HTTP client.
	return s.syncCookiesFromBrowser()
}

// setupResourceBlocking drops fonts, images and trackers. Stylesheets stay so
// that feed layout and element geometry are real.
func (s *Scraper) setupResourceBlocking() {
	router := s.browser.HijackRequests()
	blocked := []string{"*.png", "*.jpg", "*.jpeg", "*.webp", "*.woff*", "*.svg", "*analytics*"}
	for _, pattern := range blocked {
		router.MustAdd(pattern, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
}

// syncCookiesFromBrowser copies browser cookies to the HTTP client's cookie jar.
// An msToken already set from configuration is kept.
func (s *Scraper) syncCookiesFromBrowser() error {
	cookies, err := s.page.Cookies([]string{s.baseURL})
	if err != nil {
		return fmt.Errorf("get browser cookies: %w", err)
	}

	configured := s.msToken
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "msToken" && configured != "" {
			continue
		}
		httpCookies = append(httpCookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: time.Unix(int64(c.Expires), 0),
		})
	}

	s.SetCookies(httpCookies)
	return nil
}

// applySessionToBrowser sets session cookies on the page and writes local
// storage entries for the page's current origin.
func (s *Scraper) applySessionToBrowser(sess *Session) error {
	params := make([]*proto.NetworkCookieParam, 0, len(sess.Cookies))
	for _, c := range sess.Cookies {
		domain := c.Domain
		if domain == "" {
			domain = ".tiktok.com"
		}
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if !c.Expires.IsZero() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, p)
	}
	if err := s.page.SetCookies(params); err != nil {
		return fmt.Errorf("set browser cookies: %w", err)
	}

	info, err := s.page.Info()
	if err != nil {
		return fmt.Errorf("page info: %w", err)
	}
	for origin, entries := range sess.LocalStorage {
		if len(entries) == 0 || !sameOrigin(origin, info.URL) {
			continue
		}
		if _, err := s.page.Eval(setLocalStorageJS, entries); err != nil {
			return fmt.Errorf("set local storage for %s: %w", origin, err)
		}
	}
	return nil
}

// OpenFeed opens the For You feed with the given session. The session is
// checked against the page: a visible login button means it is no longer valid.
func (s *Scraper) OpenFeed(ctx context.Context, sess *Session, opts FeedOptions) (*FeedPage, error) {
	opts = opts.withDefaults()

	if err := s.ApplySession(sess); err != nil {
		return nil, err
	}
	if s.browser == nil {
		if err := s.launchBrowser(); err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	s.browserMu.Lock()
	defer s.browserMu.Unlock()

	if err := s.applySessionToBrowser(sess); err != nil {
		return nil, fmt.Errorf("apply session to browser: %w", err)
	}

	page := s.page.Context(ctx)
	if err := page.Navigate(s.baseURL + "/foryou"); err != nil {
		return nil, fmt.Errorf("navigate to feed: %w", err)
	}
	if err := page.WaitStable(opts.LoadWait); err != nil {
		return nil, fmt.Errorf("wait for feed: %w", err)
	}

	if blocked, _, _ := page.Has(captchaSelector); blocked {
		return nil, fmt.Errorf("open feed: %w", ErrCaptcha)
	}
	loggedOut, _, err := page.Has(loginButtonSelector)
	if err != nil {
		return nil, fmt.Errorf("check login state: %w", err)
	}
	if loggedOut {
		return nil, fmt.Errorf("open feed: %w", ErrSessionInvalid)
	}

	f := &FeedPage{page: s.page, opts: opts, mu: &s.browserMu}
	f.dismissPopups(page)
	if err := f.focusPlayer(page); err != nil {
		return nil, fmt.Errorf("focus player: %w", err)
	}
	logger().Info().Str("url", s.baseURL+"/foryou").Msg("feed opened")
	return f, nil
}

// Next advances the feed by one video and returns what is rendered afterwards.
func (f *FeedPage) Next(ctx context.Context) ([]FeedItem, error) {
	if f.page == nil {
		return nil, ErrBrowserNotReady
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	page := f.page.Context(ctx)

	f.dismissPopups(page)
	prev := f.centred(page)

	if err := f.advance(ctx, page, f.opts.Delay); err != nil {
		return nil, err
	}
	if !f.waitForChange(ctx, page, prev, f.opts.ChangeTimeout) {
		logger().Debug().Str("prev", prev).Msg("feed stuck, nudging")
		for i := 0; i < f.opts.Nudges; i++ {
			if err := f.advance(ctx, page, f.opts.NudgeDelay); err != nil {
				return nil, err
			}
			if f.waitForChange(ctx, page, prev, f.opts.NudgeTimeout) {
				break
			}
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("snapshot feed: %w", err)
	}
	now := time.Now().UTC()
	items, err := parseFeedHTML(html, now)
	if err != nil {
		return nil, err
	}
	if cur, ok := feedItemFromURL(f.centred(page), now); ok {
		items = mergeCentred(items, cur)
	}

	perfLog("FeedPage.Next: visible=%d total=%v", len(items), time.Since(start))
	return items, nil
}

func (f *FeedPage) advance(ctx context.Context, page *rod.Page, wait time.Duration) error {
	if err := f.focusPlayer(page); err != nil {
		return fmt.Errorf("focus player: %w", err)
	}
	if err := page.Keyboard.Type(input.ArrowDown); err != nil {
		return fmt.Errorf("press arrow down: %w", err)
	}
	return sleepCtx(ctx, wait)
}

// focusPlayer clicks the viewport centre so keyboard navigation reaches the player.
func (f *FeedPage) focusPlayer(page *rod.Page) error {
	if _, err := page.Activate(); err != nil {
		return err
	}
	if err := page.Mouse.MoveTo(proto.Point{X: 640, Y: 360}); err != nil {
		return err
	}
	if err := page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return sleepCtx(page.GetContext(), 200*time.Millisecond)
}

// dismissPopups clicks through consent and upsell dialogs. Failures are ignored.
func (f *FeedPage) dismissPopups(page *rod.Page) {
	for _, p := range popupSelectors {
		var (
			has bool
			el  *rod.Element
			err error
		)
		if p.text == "" {
			has, el, err = page.Has(p.selector)
		} else {
			has, el, err = page.HasR(p.selector, "^\\s*"+p.text+"\\s*$")
		}
		if err != nil || !has {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := el.Timeout(800*time.Millisecond).Click(proto.InputMouseButtonLeft, 1); err == nil {
			logger().Debug().Str("selector", p.selector).Str("text", p.text).Msg("dismissed popup")
			_ = sleepCtx(page.GetContext(), 250*time.Millisecond)
		}
	}
}

// centred returns the URL of the video nearest the viewport centre, or "".
func (f *FeedPage) centred(page *rod.Page) string {
	res, err := page.Timeout(3 * time.Second).Eval(centredVideoJS)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// waitForChange polls until the centred video differs from prev.
func (f *FeedPage) waitForChange(ctx context.Context, page *rod.Page, prev string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cur := f.centred(page); cur != "" && cur != prev {
			return true
		}
		if sleepCtx(ctx, 250*time.Millisecond) != nil {
			return false
		}
	}
	return false
}

// Close detaches from the feed. The browser itself is released by Scraper.Close.
func (f *FeedPage) Close() error {
	f.page = nil
	return nil
}

// signURL calls TikTok's frontierSign JS to generate the X-Bogus signature.
// frontierSign returns an object like {"X-Bogus": "xxx"} whose entries are
// appended as query params to the original URL.
// Caller must hold browserMu.
func (s *Scraper) signURL(rawURL string) (string, error) {
	if s.page == nil {
		return "", ErrBrowserNotReady
	}

	if err := s.ensureSigningReady(); err != nil {
		return "", fmt.Errorf("ensure signing ready: %w", err)
	}

	// Timeout the JS eval to avoid hanging forever.
	page := s.page.Timeout(5 * time.Second)

	result, err := page.Eval(`(url) => {
		if (typeof window.byted_acrawler === 'undefined') {
			throw new Error('signing function not available');
		}
		const params = window.byted_acrawler.frontierSign(url);
		if (typeof params === 'string') {
			return params;
		}
		const u = new URL(url);
		for (const [k, v] of Object.entries(params)) {
			u.searchParams.set(k, v);
		}
		return u.toString();
	}`, rawURL)
	if err != nil {
		// Mark signing as not ready so next call will reload.
		s.signingReady.Store(false)
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	return result.Value.String(), nil
}

// ensureSigningReady checks if the signing JS is available, reloading only if
// a previous call failed (cached via atomic bool to avoid overhead per call).
func (s *Scraper) ensureSigningReady() error {
	if s.signingReady.Load() {
		return nil
	}

	result, err := s.page.Timeout(3 * time.Second).Eval(`() => typeof window.byted_acrawler !== 'undefined'`)
	if err != nil || !result.Value.Bool() {
		if err := s.page.Navigate(s.baseURL); err != nil {
			return fmt.Errorf("reload for signing: %w", err)
		}
		if err := s.page.WaitStable(2 * time.Second); err != nil {
			return fmt.Errorf("wait after reload: %w", err)
		}
	}

	s.signingReady.Store(true)
	return nil
}

func (s *Scraper) closeBrowser() error {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			return fmt.Errorf("close page: %w", err)
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
		s.browser = nil
	}
	return nil
}
