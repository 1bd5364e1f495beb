package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	tiktok "github.com/RavensCloud/tiktok-fyp"
)

func newHydrateCmd(a *app) *cobra.Command {
	var (
		input     string
		output    string
		sleep     time.Duration
		threshold int
		sign      bool
	)

	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Look up usage counts for seed sound ids and flag emerging sounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			hc := &a.cfg.Hydrate
			if f.Changed("input") {
				hc.Input = input
			}
			if f.Changed("output") {
				hc.Output = output
			}
			if f.Changed("sleep") {
				hc.Sleep = sleep
			}
			if f.Changed("threshold") {
				hc.Threshold = threshold
			}
			if hc.Input == "" {
				return errors.New("--input is required")
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runHydrate(cmd, sign)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "seed sound ids (.txt one per line, or .json)")
	f.StringVarP(&output, "output", "o", "", "output JSON path")
	f.DurationVar(&sleep, "sleep", 0, "pause between sound lookups, e.g. 500ms")
	f.IntVar(&threshold, "threshold", 0, "video count below which a sound is emerging")
	f.BoolVar(&sign, "sign", false, "start a browser so the signed music API can back up the sound page")
	return cmd
}

func (a *app) runHydrate(cmd *cobra.Command, sign bool) error {
	ctx := cmd.Context()
	hc := a.cfg.Hydrate
	started := time.Now()

	ids, err := tiktok.ReadSoundIDs(hc.Input)
	if err != nil {
		return err
	}
	a.log.Info().Int("sounds", len(ids)).Str("input", hc.Input).Msg("hydrating sounds")

	s, err := a.newScraper()
	if err != nil {
		return err
	}
	defer s.Close()
	if sign {
		if err := s.InitBrowser(); err != nil {
			return fmt.Errorf("init browser: %w", err)
		}
	}

	h := tiktok.Hydrate(ctx, s, ids, tiktok.HydrateOptions{Threshold: hc.Threshold})
	doc := tiktok.NewHydrationDocument(h, a.runInfo("hydrate", hc.Input, hc.Output, started))
	if err := tiktok.WriteJSON(hc.Output, doc); err != nil {
		return err
	}
	a.log.Info().
		Str("output", hc.Output).
		Int("total", doc.Meta.Total).
		Int("resolved", doc.Meta.Resolved).
		Int("emerging", doc.Meta.Emerging).
		Msg("hydration written")
	return ctx.Err()
}
