package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DefaultEmergingThreshold is the video count below which a sound is emerging.
const DefaultEmergingThreshold = 1000

// errNoVideoCount marks a sound that was found but carried no usable count.
var errNoVideoCount = errors.New("no video count reported")

// SoundLookup resolves a single sound. *Scraper implements it.
type SoundLookup interface {
	GetSound(ctx context.Context, id string) (Sound, error)
}

// HydrateOptions configures Hydrate.
type HydrateOptions struct {
	// Threshold defaults to DefaultEmergingThreshold when zero.
	Threshold int
	// Pace is waited between lookups.
	Pace time.Duration
}

// SoundResult is the hydration outcome for one sound id.
type SoundResult struct {
	Sound
	Count    int
	Emerging bool
	Resolved bool
	Reason   string
}

// MarshalJSON writes a resolved sound as an object and an unresolved one as
// the string "unresolved".
func (r SoundResult) MarshalJSON() ([]byte, error) {
	if !r.Resolved {
		return json.Marshal("unresolved")
	}
	return json.Marshal(struct {
		Count      int    `json:"count"`
		Emerging   bool   `json:"emerging"`
		Title      string `json:"title,omitempty"`
		AuthorName string `json:"author_name,omitempty"`
		Original   bool   `json:"original"`
	}{r.Count, r.Emerging, r.Title, r.AuthorName, r.Original})
}

// Hydration holds one result per unique input id, in input order.
type Hydration struct {
	IDs       []string
	Results   map[string]SoundResult
	Threshold int
}

// Resolved counts ids with a usable count.
func (h Hydration) Resolved() int {
	n := 0
	for _, r := range h.Results {
		if r.Resolved {
			n++
		}
	}
	return n
}

// Emerging lists resolved emerging ids in input order.
func (h Hydration) Emerging() []string {
	var out []string
	for _, id := range h.IDs {
		if r := h.Results[id]; r.Resolved && r.Emerging {
			out = append(out, id)
		}
	}
	return out
}

// Errors maps every unresolved id to its reason.
func (h Hydration) Errors() map[string]string {
	out := map[string]string{}
	for _, id := range h.IDs {
		if r := h.Results[id]; !r.Resolved {
			out[id] = r.Reason
		}
	}
	return out
}

// Hydrate looks up every unique id once and classifies it against the
// threshold. A failed lookup only marks that id unresolved. Cancellation
// stops the run; ids not yet looked up are marked unresolved with the
// context error.
func Hydrate(ctx context.Context, lookup SoundLookup, ids []string, opts HydrateOptions) Hydration {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultEmergingThreshold
	}
	h := Hydration{
		Results:   make(map[string]SoundResult, len(ids)),
		Threshold: opts.Threshold,
	}
	log := logger()

	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, done := h.Results[id]; done {
			continue
		}
		h.IDs = append(h.IDs, id)

		if err := ctx.Err(); err != nil {
			h.Results[id] = SoundResult{Sound: Sound{ID: id}, Reason: err.Error()}
			continue
		}
		if len(h.IDs) > 1 && opts.Pace > 0 {
			if err := sleepCtx(ctx, opts.Pace); err != nil {
				h.Results[id] = SoundResult{Sound: Sound{ID: id}, Reason: err.Error()}
				continue
			}
		}

		h.Results[id] = hydrateOne(ctx, lookup, id, opts.Threshold)
		if r := h.Results[id]; r.Resolved {
			log.Info().Str("sound", id).Int("count", r.Count).Bool("emerging", r.Emerging).Msg("sound hydrated")
		} else {
			log.Warn().Str("sound", id).Str("reason", r.Reason).Msg("sound unresolved")
		}
	}
	return h
}

func hydrateOne(ctx context.Context, lookup SoundLookup, id string, threshold int) SoundResult {
	snd, err := lookup.GetSound(ctx, id)
	if err == nil && snd.VideoCount == nil {
		err = errNoVideoCount
	}
	if err != nil {
		return SoundResult{Sound: Sound{ID: id}, Reason: err.Error()}
	}
	snd.ID = id
	n := *snd.VideoCount
	return SoundResult{
		Sound:    snd,
		Count:    n,
		Emerging: n < threshold,
		Resolved: true,
	}
}
