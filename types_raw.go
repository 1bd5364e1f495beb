package tiktok

import (
	"encoding/json"
	"strings"
	"time"
)

// Item list response shared by the recommend, challenge, music and post
// endpoints. Cursor is a number on some endpoints and a string on others.

type itemListResponse struct {
	StatusCode int         `json:"statusCode"`
	ItemList   []rawVideo  `json:"itemList"`
	HasMore    bool        `json:"hasMore"`
	Cursor     json.Number `json:"cursor"`
}

// Challenge (hashtag) detail response.

type challengeDetailResponse struct {
	StatusCode    int `json:"statusCode"`
	ChallengeInfo struct {
		Challenge rawChallenge `json:"challenge"`
	} `json:"challengeInfo"`
}

// Raw video/author/stats structs (match TikTok JSON exactly).

type rawVideo struct {
	ID           string          `json:"id"`
	Desc         string          `json:"desc"`
	CreateTime   int64           `json:"createTime"`
	Author       rawAuthor       `json:"author"`
	Stats        rawStats        `json:"stats"`
	Music        rawMusic        `json:"music"`
	Video        rawVideoMedia   `json:"video"`
	TextExtra    []rawTextExtra  `json:"textExtra"`
	Challenges   []rawChallenge  `json:"challenges"`
	SuggestWords rawSuggestWords `json:"videoSuggestWordsList"`
}

type rawVideoMedia struct {
	Cover string `json:"cover"`
}

type rawSuggestWords struct {
	Blocks []struct {
		Words []struct {
			Word string `json:"word"`
		} `json:"words"`
	} `json:"video_suggest_words_struct"`
}

type rawAuthor struct {
	UniqueID    string `json:"uniqueId"`
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	AvatarThumb string `json:"avatarThumb"`
	Verified    bool   `json:"verified"`
}

type rawStats struct {
	PlayCount    int `json:"playCount"`
	DiggCount    int `json:"diggCount"`
	ShareCount   int `json:"shareCount"`
	CommentCount int `json:"commentCount"`
}

type rawMusic struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	AuthorName string `json:"authorName"`
	Original   bool   `json:"original"`
}

type rawTextExtra struct {
	HashtagName string `json:"hashtagName"`
}

type rawChallenge struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// parseVideo converts a raw TikTok API video to the public Video type.
func parseVideo(raw rawVideo) Video {
	v := Video{
		ID:            raw.ID,
		Description:   raw.Desc,
		AuthorID:      raw.Author.ID,
		Username:      raw.Author.UniqueID,
		Nickname:      raw.Author.Nickname,
		Verified:      raw.Author.Verified,
		CreatedAt:     time.Unix(raw.CreateTime, 0),
		Views:         raw.Stats.PlayCount,
		Likes:         raw.Stats.DiggCount,
		Comments:      raw.Stats.CommentCount,
		Shares:        raw.Stats.ShareCount,
		Hashtags:      rawHashtags(raw),
		SuggestWords:  rawSuggestions(raw),
		SoundID:       raw.Music.ID,
		SoundTitle:    raw.Music.Title,
		SoundAuthor:   raw.Music.AuthorName,
		SoundOriginal: raw.Music.Original,
		CoverURL:      raw.Video.Cover,
		AuthorAvatar:  raw.Author.AvatarThumb,
	}
	if v.Username != "" && v.ID != "" {
		v.URL = "https://www.tiktok.com/@" + v.Username + "/video/" + v.ID
	}
	return v
}

// rawHashtags merges text-extra hashtags and challenge titles, lowercased and
// deduplicated in order.
func rawHashtags(raw rawVideo) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}
	for _, te := range raw.TextExtra {
		add(te.HashtagName)
	}
	for _, ch := range raw.Challenges {
		add(ch.Title)
	}
	return tags
}

// rawSuggestions flattens the related-search phrases attached to a video,
// lowercased and deduplicated in order.
func rawSuggestions(raw rawVideo) []string {
	var words []string
	seen := map[string]bool{}
	for _, b := range raw.SuggestWords.Blocks {
		for _, w := range b.Words {
			word := strings.ToLower(strings.TrimSpace(w.Word))
			if word == "" || seen[word] {
				continue
			}
			seen[word] = true
			words = append(words, word)
		}
	}
	return words
}
