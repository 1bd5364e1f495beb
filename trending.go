package tiktok

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"
)

const defaultTrendingBatch = 30

// TrendingVideos fetches one batch from the recommend endpoint. It reports
// whether the platform claims more items are available.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) TrendingVideos(ctx context.Context, count int) ([]Video, bool, error) {
	if count <= 0 {
		count = defaultTrendingBatch
	}

	rawURL := s.apiURL("/api/recommend/item_list/", url.Values{
		"count":     {strconv.Itoa(count)},
		"from_page": {"fyp"},
		"region":    {"AU"},
	})

	start := time.Now()
	result, err := s.fetchItemList(ctx, rawURL, "trending")
	if err != nil {
		return nil, false, err
	}
	videos := parseItems(result.ItemList)
	perfLog("TrendingVideos: got=%d hasMore=%v http=%v", len(videos), result.HasMore, time.Since(start))
	return videos, result.HasMore, nil
}

// CollectTrending pulls recommend batches until limits.Target distinct videos
// are collected or a bound is hit. batch is the per-request count.
func (s *Scraper) CollectTrending(ctx context.Context, limits Limits, batch int) (Result[Video], error) {
	src := SourceFunc[Video](func(ctx context.Context) ([]Video, error) {
		videos, _, err := s.TrendingVideos(ctx, batch)
		return videos, err
	})
	return Collect[Video](ctx, src, videoKey, limits)
}

// TrendingOptions configures RunTrending.
type TrendingOptions struct {
	Limits  Limits
	Batch   int
	Hydrate HydrateOptions
	// Expand is nil to keep the pool to trending videos only.
	Expand *ExpandOptions
}

// TrendingRun is everything a trending run produced.
type TrendingRun struct {
	Options   TrendingOptions
	Trending  Result[Video]
	Seeds     Seeds
	Plan      ExpansionPlan
	Expansion ExpandStats
	Hydration Hydration
	// Items is the merged pool, ranked by score.
	Items []PoolVideo
}

// RunTrending collects trending videos, widens the pool through the
// accounts, hashtags and sounds they point at, hydrates the trending sounds
// and ranks the pool. A canceled run still returns everything gathered so
// far along with the context error.
// Requires an initialized browser (InitBrowser) for URL signing.
func (s *Scraper) RunTrending(ctx context.Context, opts TrendingOptions) (TrendingRun, error) {
	run := TrendingRun{Options: opts, Plan: ExpansionPlan{Accounts: []string{}, Hashtags: []string{}, Sounds: []string{}}}
	log := logger()

	res, err := s.CollectTrending(ctx, opts.Limits, opts.Batch)
	run.Trending = res
	if errors.Is(err, ErrUnbounded) {
		return run, err
	}
	log.Info().Int("videos", len(res.Items)).Str("reason", string(res.Reason)).Msg("trending collected")

	pool := NewPool()
	pool.Add(SourceTrending, res.Items)

	if opts.Expand != nil {
		run.Seeds = SeedsFrom(res.Items, opts.Expand.Seeds)
		run.Plan = PlanExpansion(run.Seeds, *opts.Expand)
		log.Info().
			Int("accounts", len(run.Plan.Accounts)).
			Int("hashtags", len(run.Plan.Hashtags)).
			Int("sounds", len(run.Plan.Sounds)).
			Msg("expanding pool")
		run.Expansion = s.Expand(ctx, pool, run.Plan, *opts.Expand)
	}

	ids := SoundIDs(res.Items)
	log.Info().Int("sounds", len(ids)).Msg("hydrating trending sounds")
	run.Hydration = Hydrate(ctx, s, ids, opts.Hydrate)
	pool.AttachSoundCounts(run.Hydration)
	run.Items = pool.Ranked(run.Plan.Accounts)

	if err == nil {
		err = ctx.Err()
	}
	return run, err
}

// SoundIDs returns the distinct sound ids used by videos, in first-seen order.
func SoundIDs(videos []Video) []string {
	var ids []string
	seen := make(map[string]bool, len(videos))
	for _, v := range videos {
		if v.SoundID == "" || seen[v.SoundID] {
			continue
		}
		seen[v.SoundID] = true
		ids = append(ids, v.SoundID)
	}
	return ids
}
