package tiktok

import (
	"context"
	"strings"
)

// ExpandOptions configures the follow-up collectors run after a trending
// collection. A zero per-item or max limit skips that collector.
type ExpandOptions struct {
	Accounts []string
	Hashtags []string
	Sounds   []string

	PerAccount int
	PerHashtag int
	PerSound   int

	MaxAccounts int
	MaxHashtags int
	MaxSounds   int

	Seeds SeedLimits
}

// ExpansionPlan is what the follow-up collectors will visit.
type ExpansionPlan struct {
	Accounts []string `json:"accounts"`
	Hashtags []string `json:"hashtags"`
	Sounds   []string `json:"sounds"`
}

// PlanExpansion puts the configured accounts, hashtags and sounds ahead of
// the seeds found in the trending batch and caps each list.
func PlanExpansion(seeds Seeds, opts ExpandOptions) ExpansionPlan {
	accounts := make([]string, 0, len(opts.Accounts))
	for _, a := range opts.Accounts {
		accounts = append(accounts, normalizeAccount(a))
	}
	tags := make([]string, 0, len(opts.Hashtags))
	for _, t := range opts.Hashtags {
		tags = append(tags, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#")))
	}
	return ExpansionPlan{
		Accounts: capList(mergeUnique(accounts, seeds.Creators), opts.MaxAccounts),
		Hashtags: capList(mergeUnique(tags, seeds.HashtagCandidates()), opts.MaxHashtags),
		Sounds:   capList(mergeUnique(opts.Sounds, seeds.Sounds), opts.MaxSounds),
	}
}

func capList(l []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if len(l) > n {
		return l[:n]
	}
	if l == nil {
		return []string{}
	}
	return l
}

// ExpandStats counts the raw videos each follow-up collector returned,
// before merging.
type ExpandStats struct {
	Accounts int
	Hashtags int
	Sounds   int
}

// Expand runs the account, hashtag and sound collectors of plan and merges
// their videos into pool. A failing account, hashtag or sound is logged and
// skipped. Cancellation stops the remaining lookups.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) Expand(ctx context.Context, pool *Pool, plan ExpansionPlan, opts ExpandOptions) ExpandStats {
	var st ExpandStats
	st.Accounts = s.expandEach(ctx, pool, plan.Accounts, opts.PerAccount, sourceAccount, s.AccountVideos)
	st.Hashtags = s.expandEach(ctx, pool, plan.Hashtags, opts.PerHashtag, sourceHashtag, s.HashtagVideos)
	st.Sounds = s.expandEach(ctx, pool, plan.Sounds, opts.PerSound, sourceSound, s.SoundVideos)
	return st
}

type videoFetcher func(ctx context.Context, key string, limit int) ([]Video, error)

func (s *Scraper) expandEach(ctx context.Context, pool *Pool, keys []string, limit int, prefix string, fetch videoFetcher) int {
	if limit <= 0 {
		return 0
	}
	log := logger()
	raw := 0
	for _, k := range keys {
		if ctx.Err() != nil {
			break
		}
		videos, err := fetch(ctx, k, limit)
		if err != nil {
			log.Warn().Err(err).Str("source", prefix+k).Msg("expansion lookup failed")
		}
		raw += len(videos)
		fresh := pool.Add(prefix+k, videos)
		log.Debug().Str("source", prefix+k).Int("videos", len(videos)).Int("new", fresh).Msg("expansion lookup")
	}
	return raw
}
