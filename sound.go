package tiktok

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// videoCountPaths are tried in order; the first numeric value wins.
var videoCountPaths = []string{
	"stats.videoCount",
	"stats.videoCountV2",
	"stats.videoCountStr",
	"music.stats.videoCount",
	"music.videoCount",
	"videoCount",
}

// soundVideoCount extracts the aggregate video count from a sound info object.
// Numbers and numeric strings (commas allowed) are accepted.
func soundVideoCount(info gjson.Result) *int {
	for _, p := range videoCountPaths {
		if n, ok := coerceCount(info.Get(p)); ok {
			return &n
		}
	}
	return nil
}

func coerceCount(r gjson.Result) (int, bool) {
	switch r.Type {
	case gjson.Number:
		return int(r.Int()), true
	case gjson.String:
		s := strings.TrimSpace(strings.ReplaceAll(r.Str, ",", ""))
		if s == "" {
			return 0, false
		}
		for _, c := range s {
			if c < '0' || c > '9' {
				return 0, false
			}
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// soundFromInfo builds a Sound from a musicInfo-shaped object. Fields may live
// at the top level or under "music".
func soundFromInfo(id string, info gjson.Result) Sound {
	str := func(key string) string {
		if v := info.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
		return info.Get("music." + key).String()
	}
	original := info.Get("original")
	if !original.Exists() {
		original = info.Get("music.original")
	}
	return Sound{
		ID:         id,
		Title:      str("title"),
		AuthorName: str("authorName"),
		Original:   original.Bool(),
		VideoCount: soundVideoCount(info),
	}
}

// GetSound looks up a sound and its aggregate video count. The public sound
// page is tried first (pure HTTP); when it carries no count and a browser is
// available for signing, the music detail API is used instead.
func (s *Scraper) GetSound(ctx context.Context, id string) (Sound, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Sound{}, fmt.Errorf("get sound: id is required")
	}

	totalStart := time.Now()
	snd, ssrErr := s.soundFromPage(ctx, id)
	if ssrErr == nil && snd.VideoCount != nil {
		perfLog("GetSound: id=%s source=ssr total=%v", id, time.Since(totalStart))
		return snd, nil
	}
	if errors.Is(ssrErr, ErrNotFound) || errors.Is(ssrErr, ErrRateLimited) || ctx.Err() != nil {
		return Sound{}, fmt.Errorf("get sound %q: %w", id, ssrErr)
	}

	apiSnd, apiErr := s.soundFromAPI(ctx, id)
	if apiErr != nil {
		if ssrErr == nil {
			// The page had the sound but no count; report that rather than the
			// signing failure.
			return snd, nil
		}
		return Sound{}, fmt.Errorf("get sound %q: %w (page: %w)", id, apiErr, ssrErr)
	}
	perfLog("GetSound: id=%s source=api total=%v", id, time.Since(totalStart))
	return apiSnd, nil
}

func (s *Scraper) soundFromPage(ctx context.Context, id string) (Sound, error) {
	s.waitForSound()

	resp, err := s.doRequest(ctx, "GET", s.baseURL+"/music/-"+url.PathEscape(id), nil)
	if err != nil {
		return Sound{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Sound{}, fmt.Errorf("read sound page: %w", err)
	}

	data, err := extractUniversalData(body)
	if err != nil {
		if isCaptchaPage(body) {
			return Sound{}, fmt.Errorf("sound page: %w", ErrCaptcha)
		}
		return Sound{}, err
	}
	detail := scopeValue(data, "webapp.music-detail")
	if code := detail.Get("statusCode").Int(); code != 0 {
		return Sound{}, fmt.Errorf("%w: sound page status %d", ErrNotFound, code)
	}
	info := detail.Get("musicInfo")
	if !info.Exists() {
		return Sound{}, fmt.Errorf("%w: music info missing in ssr response", ErrInvalidResponse)
	}
	return soundFromInfo(id, info), nil
}

func (s *Scraper) soundFromAPI(ctx context.Context, id string) (Sound, error) {
	rawURL := s.apiURL("/api/music/detail/", url.Values{
		"musicId":  {id},
		"language": {"en"},
	})

	s.browserMu.Lock()
	signedURL, err := s.signFunc(rawURL)
	s.browserMu.Unlock()
	if err != nil {
		return Sound{}, fmt.Errorf("sign music detail url: %w", err)
	}

	s.waitForAPI()

	resp, err := s.doRequest(ctx, "GET", signedURL, nil)
	if err != nil {
		return Sound{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Sound{}, fmt.Errorf("read music detail: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return Sound{}, fmt.Errorf("%w: music detail is not valid json", ErrInvalidResponse)
	}

	root := gjson.ParseBytes(body)
	if code := root.Get("statusCode").Int(); code != 0 {
		return Sound{}, fmt.Errorf("%w: music detail status %d", ErrNotFound, code)
	}
	info := root.Get("musicInfo")
	if !info.Exists() {
		info = root
	}
	return soundFromInfo(id, info), nil
}

// apiURL builds a web API URL with the query parameters the web client sends.
func (s *Scraper) apiURL(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("aid", "1988")
	q.Set("app_name", "tiktok_web")
	q.Set("device_platform", "web_pc")
	if s.msToken != "" {
		q.Set("msToken", s.msToken)
	}
	return s.baseURL + path + "?" + q.Encode()
}
