package main

import (
	"time"

	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-fyp"
)

func newFypCmd(a *app) *cobra.Command {
	var (
		session     string
		target      int
		output      string
		maxAttempts int
		maxIdle     int
		maxDuration time.Duration
		delay       time.Duration
		headless    bool
	)

	cmd := &cobra.Command{
		Use:   "fyp",
		Short: "Collect distinct videos from the For You feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			fc := &a.cfg.Feed
			if f.Changed("session") {
				a.cfg.Session.File = session
			}
			if f.Changed("target") {
				fc.Target = target
			}
			if f.Changed("output") {
				fc.Output = output
			}
			if f.Changed("max-attempts") {
				fc.MaxAttempts = maxAttempts
			}
			if f.Changed("max-idle") {
				fc.MaxIdle = maxIdle
			}
			if f.Changed("headless") {
				fc.Headless = headless
			}
			if f.Changed("max-duration") {
				fc.MaxDuration = maxDuration
			}
			if f.Changed("delay") {
				fc.Delay = delay
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runFyp(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&session, "session", "s", "", "saved session file (storage state or cookie array)")
	f.IntVarP(&target, "target", "n", 0, "number of distinct videos to collect")
	f.StringVarP(&output, "output", "o", "", "output JSON path")
	f.IntVar(&maxAttempts, "max-attempts", 0, "stop after this many feed advancements (0 = unbounded)")
	f.IntVar(&maxIdle, "max-idle", 0, "consecutive advancements without a new video before giving up")
	f.DurationVar(&maxDuration, "max-duration", 0, "wall-clock bound, e.g. 10m")
	f.DurationVar(&delay, "delay", 0, "wait after each advancement, e.g. 1200ms")
	f.BoolVar(&headless, "headless", true, "run the browser headless")
	return cmd
}

func (a *app) runFyp(cmd *cobra.Command) error {
	ctx := cmd.Context()
	fc := a.cfg.Feed

	sess, err := tiktok.LoadSession(a.cfg.Session.File)
	if err != nil {
		return err
	}

	s, err := a.newScraper()
	if err != nil {
		return err
	}
	defer s.Close()

	a.log.Info().Str("session", a.cfg.Session.File).Int("target", fc.Target).Msg("opening feed")
	page, err := s.OpenFeed(ctx, sess, tiktok.FeedOptions{Delay: fc.Delay})
	if err != nil {
		return err
	}
	defer page.Close()

	res, collectErr := tiktok.CollectFeed(ctx, page, tiktok.Limits{
		Target:      fc.Target,
		MaxAttempts: fc.MaxAttempts,
		MaxIdle:     fc.MaxIdle,
		MaxDuration: fc.MaxDuration,
	})

	// A canceled run still writes what it collected.
	if err := tiktok.WriteJSON(fc.Output, tiktok.NewFeedDocument(res)); err != nil {
		return err
	}
	ev := a.log.Info()
	if res.Partial {
		ev = a.log.Warn()
	}
	ev.Str("output", fc.Output).
		Int("count", len(res.Items)).
		Int("target", fc.Target).
		Bool("partial", res.Partial).
		Str("reason", string(res.Reason)).
		Msg("feed written")
	return collectErr
}
