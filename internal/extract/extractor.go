package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// Extractor turns raw pasted itinerary text into Day records. Implementations
// are interchangeable; callers pick one by configuration.
type Extractor interface {
	Extract(ctx context.Context, raw string) ([]trip.Day, error)
	Name() string
}

var (
	// ErrMissingInput is returned for empty input before any work is done.
	ErrMissingInput = errors.New("rawText is required")
	// ErrNoDays means no day marker was found in the text.
	ErrNoDays = errors.New("no days found in text")
)

// HeuristicExtractor splits text on day markers and runs the field
// extractors over each chunk. It needs no network access.
type HeuristicExtractor struct {
	// Places overrides KnownPlaces when non-empty.
	Places []Place
}

func (HeuristicExtractor) Name() string { return "heuristic" }

func (h HeuristicExtractor) Extract(_ context.Context, raw string) ([]trip.Day, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingInput
	}
	chunks := SplitDays(Prepare(raw))
	if len(chunks) == 0 {
		return nil, ErrNoDays
	}
	places := h.Places
	if len(places) == 0 {
		places = KnownPlaces
	}
	return assembleDays(chunks, places), nil
}

// Registry maps strategy names to extractors.
type Registry map[string]Extractor

// Get returns the extractor registered under name.
func (r Registry) Get(name string) (Extractor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "heuristic"
	}
	if e, ok := r[key]; ok && e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("unknown extraction strategy %q", name)
}
