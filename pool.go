package tiktok

import "slices"

// Source labels used in PoolVideo.Sources.
const (
	SourceTrending = "trending"
	sourceAccount  = "account:"
	sourceHashtag  = "hashtag:"
	sourceSound    = "sound:"
)

// PoolVideo is a video in the merged pool with every collector that
// returned it, its sound's usage count once hydrated, and its score.
type PoolVideo struct {
	Video
	Sources         []string `json:"sources"`
	SoundVideoCount *int     `json:"sound_video_count"`
	ScoreBase       float64  `json:"score_base"`
	Score           float64  `json:"score"`
}

// Pool merges videos from several collectors keyed by id. The first copy of
// a video wins; later copies only add their source and fill empty media URLs.
// It is not safe for concurrent use.
type Pool struct {
	items []PoolVideo
	index map[string]int
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{index: map[string]int{}}
}

// Add merges videos returned by source and reports how many were new.
func (p *Pool) Add(source string, videos []Video) int {
	fresh := 0
	for _, v := range videos {
		if v.ID == "" {
			continue
		}
		i, ok := p.index[v.ID]
		if !ok {
			p.index[v.ID] = len(p.items)
			p.items = append(p.items, PoolVideo{Video: v, Sources: []string{source}, ScoreBase: baseScore(v)})
			fresh++
			continue
		}
		it := &p.items[i]
		if !slices.Contains(it.Sources, source) {
			it.Sources = append(it.Sources, source)
		}
		if it.CoverURL == "" {
			it.CoverURL = v.CoverURL
		}
		if it.AuthorAvatar == "" {
			it.AuthorAvatar = v.AuthorAvatar
		}
	}
	return fresh
}

// Len is the number of unique videos.
func (p *Pool) Len() int { return len(p.items) }

// Items returns a copy of the pool in insertion order.
func (p *Pool) Items() []PoolVideo {
	out := make([]PoolVideo, len(p.items))
	copy(out, p.items)
	return out
}

// AttachSoundCounts copies hydrated video counts onto the pool's videos.
func (p *Pool) AttachSoundCounts(h Hydration) {
	for i := range p.items {
		r, ok := h.Results[p.items[i].SoundID]
		if !ok || !r.Resolved {
			continue
		}
		n := r.Count
		p.items[i].SoundVideoCount = &n
	}
}
