package tiktok

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// Pool-level bonuses. A hashtag or sound is rare when at most rareMaxUses
// videos in the pool carry it.
const (
	rareMaxUses         = 2
	rareHashtagBonus    = 0.5
	maxRareHashtagBonus = 3.0
	rareSoundBonus      = 1.0
	bigAccountBonus     = 1.0
)

// baseScore rates a video on its own: share, comment and like rates weighted
// 4:3:1, plus 2 when it carries related searches and 1 when it has a sound.
func baseScore(v Video) float64 {
	s := ratio(v.Shares, v.Views)*4 +
		ratio(v.Comments, v.Views)*3 +
		ratio(v.Likes, v.Views)
	if len(v.SuggestWords) > 0 {
		s += 2
	}
	if v.SoundID != "" {
		s++
	}
	return s
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Ranked scores every video against the whole pool and returns the pool
// sorted by score, highest first. Ties keep insertion order. bigAccounts are
// usernames, compared case-insensitively.
func (p *Pool) Ranked(bigAccounts []string) []PoolVideo {
	big := make(map[string]bool, len(bigAccounts))
	for _, a := range bigAccounts {
		if a = normalizeAccount(a); a != "" {
			big[a] = true
		}
	}

	tagUses := map[string]int{}
	soundUses := map[string]int{}
	for _, it := range p.items {
		for _, h := range it.Hashtags {
			tagUses[h]++
		}
		if it.SoundID != "" {
			soundUses[it.SoundID]++
		}
	}

	for i := range p.items {
		it := &p.items[i]
		score := it.ScoreBase

		rare := 0
		for _, h := range it.Hashtags {
			if tagUses[h] <= rareMaxUses {
				rare++
			}
		}
		score += math.Min(maxRareHashtagBonus, float64(rare)*rareHashtagBonus)

		if it.SoundID != "" && soundUses[it.SoundID] <= rareMaxUses {
			score += rareSoundBonus
		}
		if u := normalizeAccount(it.Username); u != "" && big[u] {
			score += bigAccountBonus
		}
		it.Score = math.Round(score*1e4) / 1e4
	}

	ranked := p.Items()
	slices.SortStableFunc(ranked, func(a, b PoolVideo) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

func normalizeAccount(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}
