package tiktok

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// FeedDocument is the feed collector's output file.
type FeedDocument struct {
	Count      int        `json:"count"`
	Partial    bool       `json:"partial"`
	StopReason StopReason `json:"stop_reason"`
	Attempts   int        `json:"attempts"`
	Items      []FeedItem `json:"items"`
}

// NewFeedDocument builds the output document for a feed run.
func NewFeedDocument(r Result[FeedItem]) FeedDocument {
	items := r.Items
	if items == nil {
		items = []FeedItem{}
	}
	return FeedDocument{
		Count:      len(items),
		Partial:    r.Partial,
		StopReason: r.Reason,
		Attempts:   r.Attempts,
		Items:      items,
	}
}

// RunInfo describes the invocation a document came from.
type RunInfo struct {
	Source   string
	Input    string
	Output   string
	Started  time.Time
	Finished time.Time
	MsToken  bool
	Proxy    bool
}

// Meta describes a run.
type Meta struct {
	GeneratedAt    time.Time `json:"generated_at"`
	Source         string    `json:"source"`
	Input          string    `json:"input,omitempty"`
	Output         string    `json:"output,omitempty"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	MsTokenPresent bool      `json:"ms_token_present"`
	ProxyPresent   bool      `json:"proxy_present"`
	Threshold      int       `json:"threshold"`
	Total          int       `json:"total"`
	Resolved       int       `json:"resolved"`
	Emerging       int       `json:"emerging"`
}

func newMeta(h Hydration, info RunInfo) Meta {
	elapsed := 0.0
	if !info.Started.IsZero() && info.Finished.After(info.Started) {
		elapsed = math.Round(info.Finished.Sub(info.Started).Seconds()*1000) / 1000
	}
	return Meta{
		GeneratedAt:    info.Finished.UTC(),
		Source:         info.Source,
		Input:          info.Input,
		Output:         info.Output,
		ElapsedSeconds: elapsed,
		MsTokenPresent: info.MsToken,
		ProxyPresent:   info.Proxy,
		Threshold:      h.Threshold,
		Total:          len(h.IDs),
		Resolved:       h.Resolved(),
		Emerging:       len(h.Emerging()),
	}
}

// HydrationDocument is the hydrator's output file: one entry per unique sound
// id, plus the reason for every unresolved one.
type HydrationDocument struct {
	Meta   Meta                   `json:"meta"`
	Sounds map[string]SoundResult `json:"sounds"`
	Errors map[string]string      `json:"errors"`
}

// NewHydrationDocument builds the output document for a hydration run.
func NewHydrationDocument(h Hydration, info RunInfo) HydrationDocument {
	sounds := h.Results
	if sounds == nil {
		sounds = map[string]SoundResult{}
	}
	return HydrationDocument{
		Meta:   newMeta(h, info),
		Sounds: sounds,
		Errors: h.Errors(),
	}
}

// TrendingCounts sizes each stage of a trending run.
type TrendingCounts struct {
	Trending    int `json:"trending"`
	AccountsRaw int `json:"accounts_raw"`
	HashtagsRaw int `json:"hashtags_raw"`
	SoundsRaw   int `json:"sounds_raw"`
	UniqueTotal int `json:"unique_total"`
}

// TrendingTargets records the limits a trending run worked to.
type TrendingTargets struct {
	TrendingTarget  int `json:"trending_target"`
	AccountsChecked int `json:"accounts_checked"`
	PerAccountLimit int `json:"per_account_limit"`
	HashtagsChecked int `json:"hashtags_checked"`
	PerHashtagLimit int `json:"per_hashtag_limit"`
	SoundsChecked   int `json:"sounds_checked"`
	PerSoundLimit   int `json:"per_sound_limit"`
}

// TrendingMeta extends Meta with pipeline counts.
type TrendingMeta struct {
	Meta
	Counts  TrendingCounts  `json:"counts"`
	Targets TrendingTargets `json:"targets"`
}

// TrendingDocument is the trending command's output file. Items is the
// merged pool ranked by score.
type TrendingDocument struct {
	Meta       TrendingMeta           `json:"meta"`
	Partial    bool                   `json:"partial"`
	StopReason StopReason             `json:"stop_reason"`
	Topics     Topics                 `json:"topics"`
	Seeds      ExpansionPlan          `json:"seeds"`
	Sounds     map[string]SoundResult `json:"sounds"`
	Emerging   []string               `json:"emerging"`
	Errors     map[string]string      `json:"errors"`
	Items      []PoolVideo            `json:"items"`
}

// NewTrendingDocument builds the output document for a trending run.
func NewTrendingDocument(run TrendingRun, info RunInfo) TrendingDocument {
	items := run.Items
	if items == nil {
		items = []PoolVideo{}
	}
	videos := make([]Video, len(items))
	for i, it := range items {
		videos[i] = it.Video
	}
	emerging := run.Hydration.Emerging()
	if emerging == nil {
		emerging = []string{}
	}
	sounds := run.Hydration.Results
	if sounds == nil {
		sounds = map[string]SoundResult{}
	}

	targets := TrendingTargets{
		TrendingTarget:  run.Options.Limits.Target,
		AccountsChecked: len(run.Plan.Accounts),
		HashtagsChecked: len(run.Plan.Hashtags),
		SoundsChecked:   len(run.Plan.Sounds),
	}
	if e := run.Options.Expand; e != nil {
		targets.PerAccountLimit = e.PerAccount
		targets.PerHashtagLimit = e.PerHashtag
		targets.PerSoundLimit = e.PerSound
	}

	return TrendingDocument{
		Meta: TrendingMeta{
			Meta: newMeta(run.Hydration, info),
			Counts: TrendingCounts{
				Trending:    len(run.Trending.Items),
				AccountsRaw: run.Expansion.Accounts,
				HashtagsRaw: run.Expansion.Hashtags,
				SoundsRaw:   run.Expansion.Sounds,
				UniqueTotal: len(items),
			},
			Targets: targets,
		},
		Partial:    run.Trending.Partial,
		StopReason: run.Trending.Reason,
		Topics:     TopTopics(videos, DefaultTopicsLimit),
		Seeds:      run.Plan,
		Sounds:     sounds,
		Emerging:   emerging,
		Errors:     run.Hydration.Errors(),
		Items:      items,
	}
}

// WriteJSON writes v as indented JSON to path. The file is written next to
// path and renamed into place so readers never see a partial document.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
