package tiktok

import "time"

// Video represents a TikTok video returned by the API, with its engagement
// metrics and the sound it uses.
type Video struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Description   string    `json:"desc"`
	AuthorID      string    `json:"author_id"`
	Username      string    `json:"username"`
	Nickname      string    `json:"nickname,omitempty"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
	Views         int       `json:"views"`
	Likes         int       `json:"likes"`
	Comments      int       `json:"comments"`
	Shares        int       `json:"shares"`
	Hashtags      []string  `json:"hashtags,omitempty"`
	SuggestWords  []string  `json:"suggest_words,omitempty"`
	SoundID       string    `json:"sound_id,omitempty"`
	SoundTitle    string    `json:"sound_title,omitempty"`
	SoundAuthor   string    `json:"sound_author,omitempty"`
	SoundOriginal bool      `json:"sound_original"`
	CoverURL      string    `json:"cover_url,omitempty"`
	AuthorAvatar  string    `json:"author_avatar_url,omitempty"`
}

func videoKey(v Video) string { return v.ID }

// Sound is a TikTok audio clip with its aggregate usage count. VideoCount is
// nil when the platform did not report one.
type Sound struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
	Original   bool   `json:"original"`
	VideoCount *int   `json:"video_count"`
}
