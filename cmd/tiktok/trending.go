package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-fyp"
	"github.com/RavensCloud/tiktok-fyp/internal/config"
)

func newTrendingCmd(a *app) *cobra.Command {
	var (
		target      int
		output      string
		threshold   int
		batch       int
		maxAttempts int
		maxIdle     int
		maxDuration time.Duration
		expand      bool
		accounts    []string
		hashtags    []string
		sounds      []string
	)

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Collect and rank trending videos and hydrate the sounds they use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			tc := &a.cfg.Trending
			if f.Changed("target") {
				tc.Target = target
			}
			if f.Changed("output") {
				tc.Output = output
			}
			if f.Changed("threshold") {
				tc.Threshold = threshold
			}
			if f.Changed("batch") {
				tc.Batch = batch
			}
			if f.Changed("max-attempts") {
				tc.MaxAttempts = maxAttempts
			}
			if f.Changed("max-idle") {
				tc.MaxIdle = maxIdle
			}
			if f.Changed("max-duration") {
				tc.MaxDuration = maxDuration
			}
			if f.Changed("expand") {
				tc.Expand.Enabled = expand
			}
			tc.Expand.Accounts = append(tc.Expand.Accounts, accounts...)
			tc.Expand.Hashtags = append(tc.Expand.Hashtags, hashtags...)
			tc.Expand.Sounds = append(tc.Expand.Sounds, sounds...)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runTrending(cmd)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&target, "target", "n", 0, "number of distinct trending videos to collect")
	f.StringVarP(&output, "output", "o", "", "output JSON path")
	f.IntVar(&threshold, "threshold", 0, "video count below which a sound is emerging")
	f.IntVar(&batch, "batch", 0, "videos requested per recommend call")
	f.IntVar(&maxAttempts, "max-attempts", 0, "stop after this many recommend calls")
	f.IntVar(&maxIdle, "max-idle", 0, "consecutive calls without a new video before giving up")
	f.DurationVar(&maxDuration, "max-duration", 0, "wall-clock bound for the trending collection, e.g. 15m")
	f.BoolVar(&expand, "expand", true, "widen the pool with account, hashtag and sound videos")
	f.StringSliceVar(&accounts, "account", nil, "extra account to follow up (repeatable)")
	f.StringSliceVar(&hashtags, "hashtag", nil, "extra hashtag to follow up (repeatable)")
	f.StringSliceVar(&sounds, "sound", nil, "extra sound id to follow up (repeatable)")
	return cmd
}

func trendingOptions(tc config.TrendingConfig) tiktok.TrendingOptions {
	opts := tiktok.TrendingOptions{
		Limits: tiktok.Limits{
			Target:      tc.Target,
			MaxAttempts: tc.MaxAttempts,
			MaxIdle:     tc.MaxIdle,
			MaxDuration: tc.MaxDuration,
		},
		Batch:   tc.Batch,
		Hydrate: tiktok.HydrateOptions{Threshold: tc.Threshold},
	}
	if e := tc.Expand; e.Enabled {
		opts.Expand = &tiktok.ExpandOptions{
			Accounts:    e.Accounts,
			Hashtags:    e.Hashtags,
			Sounds:      e.Sounds,
			PerAccount:  e.PerAccount,
			PerHashtag:  e.PerHashtag,
			PerSound:    e.PerSound,
			MaxAccounts: e.MaxAccounts,
			MaxHashtags: e.MaxHashtags,
			MaxSounds:   e.MaxSounds,
			Seeds: tiktok.SeedLimits{
				Creators:     e.SeedCreators,
				Hashtags:     e.SeedHashtags,
				SuggestWords: e.SeedSuggestWords,
				Sounds:       e.SeedSounds,
			},
		}
	}
	return opts
}

func (a *app) runTrending(cmd *cobra.Command) error {
	ctx := cmd.Context()
	tc := a.cfg.Trending
	started := time.Now()

	s, err := a.newScraper()
	if err != nil {
		return err
	}
	defer s.Close()

	// Every API call here needs a signed URL.
	if err := s.InitBrowser(); err != nil {
		return fmt.Errorf("init browser: %w", err)
	}

	run, runErr := s.RunTrending(ctx, trendingOptions(tc))
	if errors.Is(runErr, tiktok.ErrUnbounded) {
		return runErr
	}
	return a.writeTrending(run, runErr, started)
}

// writeTrending writes the run's document even when runErr is set, then
// returns runErr.
func (a *app) writeTrending(run tiktok.TrendingRun, runErr error, started time.Time) error {
	tc := a.cfg.Trending
	doc := tiktok.NewTrendingDocument(run, a.runInfo("trending", "", tc.Output, started))
	if err := tiktok.WriteJSON(tc.Output, doc); err != nil {
		return errors.Join(runErr, err)
	}
	ev := a.log.Info()
	if doc.Partial {
		ev = a.log.Warn()
	}
	ev.Str("output", tc.Output).
		Int("trending", doc.Meta.Counts.Trending).
		Int("unique", doc.Meta.Counts.UniqueTotal).
		Int("emerging", len(doc.Emerging)).
		Bool("partial", doc.Partial).
		Str("reason", string(doc.StopReason)).
		Msg("trending written")
	return runErr
}
