package tiktok

import (
	"regexp"
	"slices"
	"sort"
	"strings"
)

// DefaultTopicsLimit is how many entries each topic ranking keeps.
const DefaultTopicsLimit = 25

const (
	minHashtagLen     = 3
	minSuggestWordLen = 4
)

// TagCount is a hashtag and the number of pool videos carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PhraseCount is a related-search phrase and the number of videos showing it.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// Topics ranks what the collected videos have in common.
type Topics struct {
	Hashtags     []TagCount    `json:"top_hashtags"`
	SuggestWords []PhraseCount `json:"top_suggest_words"`
	Sounds       []SoundUsage  `json:"top_sounds"`
}

// tally counts keys and remembers first-seen order for stable ranking.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(key string) {
	if key == "" {
		return
	}
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// top returns up to k keys by descending count; k <= 0 returns all.
func (t *tally) top(k int) []string {
	keys := slices.Clone(t.order)
	slices.SortStableFunc(keys, func(a, b string) int { return t.counts[b] - t.counts[a] })
	if k > 0 && len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

// TopTopics ranks hashtags, related searches and sounds across videos,
// keeping k of each.
func TopTopics(videos []Video, k int) Topics {
	tags, words := newTally(), newTally()
	for _, v := range videos {
		for _, h := range v.Hashtags {
			tags.add(h)
		}
		for _, w := range v.SuggestWords {
			words.add(w)
		}
	}

	t := Topics{
		Hashtags:     []TagCount{},
		SuggestWords: []PhraseCount{},
		Sounds:       TopSounds(videos, k),
	}
	for _, h := range tags.top(k) {
		t.Hashtags = append(t.Hashtags, TagCount{Tag: h, Count: tags.counts[h]})
	}
	for _, w := range words.top(k) {
		t.SuggestWords = append(t.SuggestWords, PhraseCount{Phrase: w, Count: words.counts[w]})
	}
	if t.Sounds == nil {
		t.Sounds = []SoundUsage{}
	}
	return t
}

// SeedLimits caps how many of each seed kind SeedsFrom keeps.
type SeedLimits struct {
	Creators     int
	Hashtags     int
	SuggestWords int
	Sounds       int
}

// Seeds are the accounts, hashtags and sounds worth following up after a
// trending collection.
type Seeds struct {
	Creators     []string `json:"creators"`
	Hashtags     []string `json:"hashtags"`
	SuggestWords []string `json:"suggest_words"`
	Sounds       []string `json:"sounds"`
}

// SeedsFrom picks the most frequent creators, hashtags, related searches and
// sounds among videos. Hashtags shorter than 3 and phrases shorter than 4
// characters are ignored.
func SeedsFrom(videos []Video, lim SeedLimits) Seeds {
	creators, tags, words, sounds := newTally(), newTally(), newTally(), newTally()
	for _, v := range videos {
		creators.add(normalizeAccount(v.Username))
		for _, h := range v.Hashtags {
			if len(h) >= minHashtagLen {
				tags.add(h)
			}
		}
		for _, w := range v.SuggestWords {
			if w = strings.ToLower(strings.TrimSpace(w)); len(w) >= minSuggestWordLen {
				words.add(w)
			}
		}
		sounds.add(v.SoundID)
	}
	return Seeds{
		Creators:     creators.top(lim.Creators),
		Hashtags:     tags.top(lim.Hashtags),
		SuggestWords: words.top(lim.SuggestWords),
		Sounds:       sounds.top(lim.Sounds),
	}
}

var (
	nonTagChars = regexp.MustCompile(`[^a-z0-9\s]+`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// suggestHashtags turns a related-search phrase into hashtag candidates:
// "raah skeleton" gives "raahskeleton" and "raah_skeleton".
func suggestHashtags(phrase string) []string {
	p := nonTagChars.ReplaceAllString(strings.ToLower(phrase), "")
	p = strings.TrimSpace(spaceRun.ReplaceAllString(p, " "))
	if p == "" {
		return nil
	}
	var out []string
	for _, c := range []string{strings.ReplaceAll(p, " ", ""), strings.ReplaceAll(p, " ", "_")} {
		if len(c) >= minHashtagLen && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// HashtagCandidates is Hashtags followed by the candidates derived from
// SuggestWords, deduplicated.
func (s Seeds) HashtagCandidates() []string {
	var derived []string
	for _, w := range s.SuggestWords {
		derived = append(derived, suggestHashtags(w)...)
	}
	return mergeUnique(s.Hashtags, derived)
}

// mergeUnique concatenates lists, dropping blanks and repeats.
func mergeUnique(lists ...[]string) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range lists {
		for _, v := range l {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// SoundUsage is how often a sound appeared among collected videos.
type SoundUsage struct {
	ID     string `json:"id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Videos int    `json:"videos"`
}

// TopSounds ranks sounds by how many of videos use them. Ties keep
// first-seen order. n <= 0 returns all.
func TopSounds(videos []Video, n int) []SoundUsage {
	index := map[string]int{}
	var usage []SoundUsage
	for _, v := range videos {
		if v.SoundID == "" {
			continue
		}
		i, ok := index[v.SoundID]
		if !ok {
			i = len(usage)
			index[v.SoundID] = i
			usage = append(usage, SoundUsage{ID: v.SoundID, Title: v.SoundTitle, Author: v.SoundAuthor})
		}
		usage[i].Videos++
	}
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].Videos > usage[j].Videos })
	if n > 0 && len(usage) > n {
		usage = usage[:n]
	}
	return usage
}
