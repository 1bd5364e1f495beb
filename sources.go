package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxItemPages caps cursor paging for one account, hashtag or sound.
const maxItemPages = 5

// fetchItemList signs rawURL, waits for the API throttle and decodes an item
// list. what names the endpoint in errors.
func (s *Scraper) fetchItemList(ctx context.Context, rawURL, what string) (itemListResponse, error) {
	s.browserMu.Lock()
	signedURL, err := s.signFunc(rawURL)
	s.browserMu.Unlock()
	if err != nil {
		return itemListResponse{}, fmt.Errorf("sign %s url: %w", what, err)
	}

	// Rate limit before the HTTP call, not the signing.
	s.waitForAPI()

	resp, err := s.doRequest(ctx, "GET", signedURL, nil)
	if err != nil {
		return itemListResponse{}, err
	}
	defer resp.Body.Close()

	var result itemListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return itemListResponse{}, fmt.Errorf("%w: decode %s response: %v", ErrInvalidResponse, what, err)
	}
	if result.StatusCode != 0 {
		return itemListResponse{}, fmt.Errorf("%w: %s status %d", ErrInvalidResponse, what, result.StatusCode)
	}
	return result, nil
}

func parseItems(items []rawVideo) []Video {
	videos := make([]Video, 0, len(items))
	for _, raw := range items {
		if raw.ID == "" {
			continue
		}
		videos = append(videos, parseVideo(raw))
	}
	return videos
}

// pagedItems follows the cursor of an item list endpoint until limit videos
// are gathered or the endpoint has no more.
func (s *Scraper) pagedItems(ctx context.Context, limit int, what string, page func(cursor string) string) ([]Video, error) {
	var videos []Video
	cursor := "0"
	for range maxItemPages {
		res, err := s.fetchItemList(ctx, page(cursor), what)
		if err != nil {
			return videos, err
		}
		videos = append(videos, parseItems(res.ItemList)...)
		next := res.Cursor.String()
		if len(videos) >= limit || !res.HasMore || next == "" || next == cursor {
			break
		}
		cursor = next
	}
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func pageSize(limit int) string {
	return strconv.Itoa(min(max(limit, 1), 35))
}

// HashtagVideos returns up to limit videos posted under tag.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) HashtagVideos(ctx context.Context, tag string, limit int) ([]Video, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return nil, fmt.Errorf("hashtag videos: tag is required")
	}
	start := time.Now()

	challengeID, err := s.challengeID(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("hashtag videos %q: %w", tag, err)
	}
	videos, err := s.pagedItems(ctx, limit, "hashtag", func(cursor string) string {
		return s.apiURL("/api/challenge/item_list/", url.Values{
			"challengeID": {challengeID},
			"count":       {pageSize(limit)},
			"cursor":      {cursor},
		})
	})
	if err != nil {
		return videos, fmt.Errorf("hashtag videos %q: %w", tag, err)
	}
	perfLog("HashtagVideos: tag=%s got=%d total=%v", tag, len(videos), time.Since(start))
	return videos, nil
}

func (s *Scraper) challengeID(ctx context.Context, tag string) (string, error) {
	rawURL := s.apiURL("/api/challenge/detail/", url.Values{"challengeName": {tag}})

	s.browserMu.Lock()
	signedURL, err := s.signFunc(rawURL)
	s.browserMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("sign challenge url: %w", err)
	}

	s.waitForAPI()

	resp, err := s.doRequest(ctx, "GET", signedURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result challengeDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode challenge detail: %v", ErrInvalidResponse, err)
	}
	if result.ChallengeInfo.Challenge.ID == "" {
		return "", fmt.Errorf("%w: challenge %q", ErrNotFound, tag)
	}
	return result.ChallengeInfo.Challenge.ID, nil
}

// SoundVideos returns up to limit videos that use the sound.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) SoundVideos(ctx context.Context, soundID string, limit int) ([]Video, error) {
	soundID = strings.TrimSpace(soundID)
	if soundID == "" {
		return nil, fmt.Errorf("sound videos: id is required")
	}
	videos, err := s.pagedItems(ctx, limit, "sound", func(cursor string) string {
		return s.apiURL("/api/music/item_list/", url.Values{
			"musicID": {soundID},
			"count":   {pageSize(limit)},
			"cursor":  {cursor},
		})
	})
	if err != nil {
		return videos, fmt.Errorf("sound videos %q: %w", soundID, err)
	}
	return videos, nil
}

// AccountVideos returns up to limit of the account's latest posts. The
// profile page supplies the secUid the post list is keyed by.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) AccountVideos(ctx context.Context, username string, limit int) ([]Video, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil, fmt.Errorf("account videos: username is required")
	}

	secUID, err := s.secUID(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("account videos %q: %w", username, err)
	}
	videos, err := s.pagedItems(ctx, limit, "account", func(cursor string) string {
		return s.apiURL("/api/post/item_list/", url.Values{
			"secUid": {secUID},
			"count":  {pageSize(limit)},
			"cursor": {cursor},
		})
	})
	if err != nil {
		return videos, fmt.Errorf("account videos %q: %w", username, err)
	}
	return videos, nil
}

func (s *Scraper) secUID(ctx context.Context, username string) (string, error) {
	s.waitForSound()

	resp, err := s.doRequest(ctx, "GET", s.baseURL+"/@"+url.PathEscape(username), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read profile page: %w", err)
	}
	data, err := extractUniversalData(body)
	if err != nil {
		if isCaptchaPage(body) {
			return "", fmt.Errorf("profile page: %w", ErrCaptcha)
		}
		return "", err
	}
	detail := scopeValue(data, "webapp.user-detail")
	if code := detail.Get("statusCode").Int(); code != 0 {
		return "", fmt.Errorf("%w: profile status %d", ErrNotFound, code)
	}
	id := detail.Get("userInfo.user.secUid").String()
	if id == "" {
		return "", fmt.Errorf("%w: secUid missing for %q", ErrNotFound, username)
	}
	return id, nil
}
