//go:build unittest

package tiktok

import (
	"context"
	"fmt"
)

func (s *Scraper) InitBrowser() error {
	return fmt.Errorf("browser: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (s *Scraper) launchBrowser() error {
	return fmt.Errorf("browser: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (s *Scraper) setupResourceBlocking() {}

func (s *Scraper) syncCookiesFromBrowser() error {
	return fmt.Errorf("sync cookies: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (s *Scraper) OpenFeed(ctx context.Context, sess *Session, opts FeedOptions) (*FeedPage, error) {
	if err := s.ApplySession(sess); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("open feed: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (f *FeedPage) Next(ctx context.Context) ([]FeedItem, error) {
	return nil, ErrBrowserNotReady
}

func (f *FeedPage) Close() error {
	f.page = nil
	return nil
}

func (s *Scraper) signURL(rawURL string) (string, error) {
	if s.page == nil {
		return "", ErrBrowserNotReady
	}
	return "", ErrBrowserNotReady
}

func (s *Scraper) ensureSigningReady() error {
	if s.signingReady.Load() {
		return nil
	}
	return ErrBrowserNotReady
}

func (s *Scraper) closeBrowser() error {
	s.page = nil
	s.browser = nil
	return nil
}
