package tiktok

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
)

var videoURLPattern = regexp.MustCompile(`/@([^/?#]+)/video/(\d+)`)

// FeedItem is one video observed on the For You feed.
type FeedItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Author    string    `json:"author,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	Sound     string    `json:"sound,omitempty"`
	Likes     *int      `json:"likes"`
	Comments  *int      `json:"comments"`
	Shares    *int      `json:"shares"`
	ScrapedAt time.Time `json:"scraped_at"`
}

func feedItemKey(it FeedItem) string { return it.ID }

// parseVideoURL returns the author handle and video id from a video URL.
func parseVideoURL(raw string) (author, id string, ok bool) {
	m := videoURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// canonicalVideoURL resolves href against tiktok.com and drops the query.
func canonicalVideoURL(href string) string {
	u, err := tiktokURL.Parse(href)
	if err != nil {
		return href
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// parseFeedHTML extracts every video rendered in a feed DOM snapshot, in
// document order. Items without a video id are skipped.
func parseFeedHTML(html string, now time.Time) ([]FeedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed html: %v", ErrInvalidResponse, err)
	}

	var items []FeedItem
	containers := doc.Find(feedItemSelector)
	if containers.Length() > 0 {
		containers.Each(func(_ int, sel *goquery.Selection) {
			if it, ok := parseFeedContainer(sel, now); ok {
				items = append(items, it)
			}
		})
		return items, nil
	}

	// Layouts without item containers: fall back to bare links.
	doc.Find(videoLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		author, id, ok := parseVideoURL(href)
		if !ok {
			return
		}
		items = append(items, FeedItem{
			ID:        id,
			URL:       canonicalVideoURL(href),
			Author:    author,
			ScrapedAt: now,
		})
	})
	return items, nil
}

func parseFeedContainer(sel *goquery.Selection, now time.Time) (FeedItem, bool) {
	var href, author, id string
	sel.Find(videoLinkSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if au, vid, ok := parseVideoURL(h); ok {
			href, author, id = h, au, vid
			return false
		}
		return true
	})
	if id == "" {
		return FeedItem{}, false
	}

	it := FeedItem{
		ID:        id,
		URL:       canonicalVideoURL(href),
		Author:    firstText(sel, authorSelector),
		Caption:   firstText(sel, captionSelector),
		Sound:     firstText(sel, soundSelector),
		Likes:     countPtr(firstText(sel, likeCountSelector)),
		Comments:  countPtr(firstText(sel, commentCountSelector)),
		Shares:    countPtr(firstText(sel, shareCountSelector)),
		ScrapedAt: now,
	}
	if it.Author == "" {
		it.Author = author
	}
	return it, true
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

// feedItemFromURL builds a bare item for the centred video when the DOM
// snapshot did not include it.
func feedItemFromURL(raw string, now time.Time) (FeedItem, bool) {
	author, id, ok := parseVideoURL(raw)
	if !ok {
		return FeedItem{}, false
	}
	return FeedItem{ID: id, URL: canonicalVideoURL(raw), Author: author, ScrapedAt: now}, true
}

// mergeCentred puts the centred item first unless the snapshot already has it.
func mergeCentred(items []FeedItem, centred FeedItem) []FeedItem {
	for _, it := range items {
		if it.ID == centred.ID {
			return items
		}
	}
	return append([]FeedItem{centred}, items...)
}

// FeedOptions tunes how the feed is advanced. Zero fields take defaults.
type FeedOptions struct {
	// Delay is the pause after each ArrowDown press.
	Delay time.Duration
	// ChangeTimeout bounds the wait for the centred video to change.
	ChangeTimeout time.Duration
	// Nudges is the number of extra presses when the feed is stuck.
	Nudges       int
	NudgeDelay   time.Duration
	NudgeTimeout time.Duration
	// LoadWait is how long the page must be stable after navigation.
	LoadWait time.Duration
}

func (o FeedOptions) withDefaults() FeedOptions {
	if o.Delay <= 0 {
		o.Delay = 1200 * time.Millisecond
	}
	if o.ChangeTimeout <= 0 {
		o.ChangeTimeout = 6 * time.Second
	}
	if o.Nudges < 0 {
		o.Nudges = 0
	} else if o.Nudges == 0 {
		o.Nudges = 6
	}
	if o.NudgeDelay <= 0 {
		o.NudgeDelay = 900 * time.Millisecond
	}
	if o.NudgeTimeout <= 0 {
		o.NudgeTimeout = 2500 * time.Millisecond
	}
	if o.LoadWait <= 0 {
		o.LoadWait = 4 * time.Second
	}
	return o
}

// FeedPage drives an open For You feed. Obtain one with Scraper.OpenFeed.
type FeedPage struct {
	page *rod.Page
	opts FeedOptions
	mu   *sync.Mutex
}

// CollectFeed gathers unique videos from the feed until limits stop it.
func CollectFeed(ctx context.Context, src Source[FeedItem], limits Limits) (Result[FeedItem], error) {
	return Collect(ctx, src, feedItemKey, limits)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
