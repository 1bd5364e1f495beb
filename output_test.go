package tiktok

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := WriteJSON(path, map[string]int{"count": 2}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "{\n  \"count\": 2\n}\n" {
		t.Errorf("unexpected content %q", data)
	}

	// Overwrite in place, leaving no temp files behind.
	if err := WriteJSON(path, []int{1}); err != nil {
		t.Fatalf("WriteJSON overwrite: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only out.json, got %d entries", len(entries))
	}
}

func TestWriteJSON_Unencodable(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSON(path, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("nothing should be written on encode failure")
	}
}

func TestFeedDocument(t *testing.T) {
	t.Parallel()
	likes := 10
	res := Result[FeedItem]{
		Items:    []FeedItem{{ID: "1", URL: "https://www.tiktok.com/@a/video/1", Likes: &likes, ScrapedAt: feedNow}},
		Partial:  true,
		Reason:   StopIdle,
		Attempts: 7,
	}
	data, err := json.Marshal(NewFeedDocument(res))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc struct {
		Count      int              `json:"count"`
		Partial    bool             `json:"partial"`
		StopReason string           `json:"stop_reason"`
		Attempts   int              `json:"attempts"`
		Items      []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Count != 1 || !doc.Partial || doc.StopReason != "idle_limit" || doc.Attempts != 7 {
		t.Errorf("unexpected document %s", data)
	}
	if doc.Items[0]["id"] != "1" || doc.Items[0]["likes"] != float64(10) || doc.Items[0]["comments"] != nil {
		t.Errorf("unexpected item %v", doc.Items[0])
	}

	empty, _ := json.Marshal(NewFeedDocument(Result[FeedItem]{}))
	var e map[string]any
	_ = json.Unmarshal(empty, &e)
	if items, ok := e["items"].([]any); !ok || len(items) != 0 {
		t.Errorf("empty run should write an empty items array, got %s", empty)
	}
}

func TestHydrationDocument(t *testing.T) {
	t.Parallel()
	lookup := &fakeLookup{counts: map[string]int{"x": 500, "y": 1000}}
	h := Hydrate(context.Background(), lookup, []string{"x", "y", "gone"}, HydrateOptions{Threshold: 1000})
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	info := RunInfo{
		Source:   "hydrate",
		Input:    "seeds.txt",
		Output:   "sounds.json",
		Started:  now.Add(-1500 * time.Millisecond),
		Finished: now,
		MsToken:  true,
	}

	data, err := json.Marshal(NewHydrationDocument(h, info))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc struct {
		Meta   Meta                       `json:"meta"`
		Sounds map[string]json.RawMessage `json:"sounds"`
		Errors map[string]string          `json:"errors"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Meta.Total != 3 || doc.Meta.Resolved != 2 || doc.Meta.Emerging != 1 || doc.Meta.Threshold != 1000 {
		t.Errorf("unexpected meta %+v", doc.Meta)
	}
	if doc.Meta.Input != "seeds.txt" || doc.Meta.Output != "sounds.json" || doc.Meta.Source != "hydrate" {
		t.Errorf("unexpected run paths %+v", doc.Meta)
	}
	if doc.Meta.ElapsedSeconds != 1.5 || !doc.Meta.MsTokenPresent || doc.Meta.ProxyPresent {
		t.Errorf("unexpected run info %+v", doc.Meta)
	}
	if !doc.Meta.GeneratedAt.Equal(now) {
		t.Errorf("unexpected generated_at %v", doc.Meta.GeneratedAt)
	}
	if len(doc.Sounds) != 3 {
		t.Fatalf("expected one entry per id, got %d", len(doc.Sounds))
	}
	if string(doc.Sounds["gone"]) != `"unresolved"` {
		t.Errorf("expected unresolved marker, got %s", doc.Sounds["gone"])
	}
	var x struct {
		Count    int  `json:"count"`
		Emerging bool `json:"emerging"`
	}
	if err := json.Unmarshal(doc.Sounds["x"], &x); err != nil || x.Count != 500 || !x.Emerging {
		t.Errorf("unexpected x entry %s", doc.Sounds["x"])
	}
	if doc.Errors["gone"] == "" {
		t.Error("expected a reason for the unresolved id")
	}
}

func TestTrendingDocument(t *testing.T) {
	t.Parallel()
	res := Result[Video]{
		Items: []Video{
			{ID: "1", SoundID: "s1", Hashtags: []string{"dance"}, Views: 100, Shares: 10},
			{ID: "2", SoundID: "s2", Hashtags: []string{"dance", "fyp"}},
			{ID: "3", SoundID: "s1"},
		},
		Reason: StopTarget,
	}
	lookup := &fakeLookup{counts: map[string]int{"s1": 50, "s2": 5000}}
	h := Hydrate(context.Background(), lookup, SoundIDs(res.Items), HydrateOptions{})

	pool := NewPool()
	pool.Add(SourceTrending, res.Items)
	pool.Add("hashtag:dance", []Video{{ID: "2"}, {ID: "4", Hashtags: []string{"dance"}}})
	pool.AttachSoundCounts(h)
	run := TrendingRun{
		Options:   TrendingOptions{Limits: Limits{Target: 3, MaxIdle: 6}, Expand: &ExpandOptions{PerHashtag: 2}},
		Trending:  res,
		Plan:      ExpansionPlan{Accounts: []string{}, Hashtags: []string{"dance"}, Sounds: []string{}},
		Expansion: ExpandStats{Hashtags: 2},
		Hydration: h,
		Items:     pool.Ranked(nil),
	}

	doc := NewTrendingDocument(run, RunInfo{Source: "trending", Finished: time.Now(), Proxy: true})
	if doc.Meta.Source != "trending" || doc.Meta.Total != 2 || !doc.Meta.ProxyPresent {
		t.Errorf("unexpected meta %+v", doc.Meta.Meta)
	}
	want := TrendingCounts{Trending: 3, HashtagsRaw: 2, UniqueTotal: 4}
	if doc.Meta.Counts != want {
		t.Errorf("expected counts %+v, got %+v", want, doc.Meta.Counts)
	}
	if doc.Meta.Targets.TrendingTarget != 3 || doc.Meta.Targets.HashtagsChecked != 1 || doc.Meta.Targets.PerHashtagLimit != 2 {
		t.Errorf("unexpected targets %+v", doc.Meta.Targets)
	}
	if len(doc.Emerging) != 1 || doc.Emerging[0] != "s1" {
		t.Errorf("expected s1 emerging, got %v", doc.Emerging)
	}
	if len(doc.Topics.Sounds) != 2 || doc.Topics.Sounds[0].ID != "s1" || doc.Topics.Sounds[0].Videos != 2 {
		t.Errorf("unexpected top sounds %+v", doc.Topics.Sounds)
	}
	if len(doc.Topics.Hashtags) == 0 || doc.Topics.Hashtags[0] != (TagCount{Tag: "dance", Count: 3}) {
		t.Errorf("unexpected top hashtags %+v", doc.Topics.Hashtags)
	}
	if lookup.calls["s1"] != 1 {
		t.Errorf("shared sound should be hydrated once, got %d", lookup.calls["s1"])
	}
	for i := 1; i < len(doc.Items); i++ {
		if doc.Items[i].Score > doc.Items[i-1].Score {
			t.Fatalf("items not sorted by score: %v before %v", doc.Items[i-1].Score, doc.Items[i].Score)
		}
	}
	for _, it := range doc.Items {
		switch it.ID {
		case "2":
			if len(it.Sources) != 2 || it.Sources[1] != "hashtag:dance" {
				t.Errorf("expected merged sources on video 2, got %v", it.Sources)
			}
			if it.SoundVideoCount == nil || *it.SoundVideoCount != 5000 {
				t.Errorf("expected sound count 5000 on video 2, got %v", it.SoundVideoCount)
			}
		case "4":
			if it.SoundVideoCount != nil {
				t.Errorf("video without a sound must not get a count, got %d", *it.SoundVideoCount)
			}
		}
	}
}

func TestTrendingDocument_EmptyRun(t *testing.T) {
	t.Parallel()
	doc := NewTrendingDocument(TrendingRun{}, RunInfo{Finished: time.Now()})
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"items":[]`, `"emerging":[]`, `"sounds":{}`, `"top_hashtags":[]`, `"top_sounds":[]`} {
		if !strings.Contains(string(data), frag) {
			t.Errorf("expected %s in %s", frag, data)
		}
	}
}
