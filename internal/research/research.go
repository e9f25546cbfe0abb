// Package research asks the model for points of interest along each day of
// the itinerary and keeps the answers as per-day side-files.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/itinerary/internal/images"
	"github.com/hyperifyio/itinerary/internal/llm"
	"github.com/hyperifyio/itinerary/internal/store"
	"github.com/hyperifyio/itinerary/internal/trip"
)

const systemPrompt = `You are a careful travel researcher. For the given itinerary day, list the notable points of interest a visitor will pass or visit.
Respond with JSON only: {"pois": [{"name": string, "summary": string, "historicalContext": string, "practicalTips": string, "links": [string], "status": "open"|"closed"|"unknown", "confidence": "high"|"medium"|"low"}]}.
Use at most 5 entries. Only include links you are confident exist; otherwise leave the array empty. Mark anything you are unsure about with confidence "low".`

// Report tallies a research run. A failed day does not stop the run.
type Report struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Researcher runs one model call per day.
type Researcher struct {
	Completer *llm.Completer
	Model     string
	Store     *store.Store
	// Limiter spaces out days. Nil means no throttle.
	Limiter *rate.Limiter
	// Images, when set, attaches search results to each POI.
	Images       images.Searcher
	ImagesPerPOI int
}

// ResearchDay returns the points of interest for one day without saving them.
func (r *Researcher) ResearchDay(ctx context.Context, day trip.Day) ([]trip.POI, error) {
	req := llm.Request{Model: r.Model, System: systemPrompt, User: dayPrompt(day), Temperature: 0.2, JSON: true}
	content, err := r.Completer.Complete(ctx, "research", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		POIs []trip.POI `json:"pois"`
	}
	if err := llm.DecodeJSON(content, &out); err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}
	if out.POIs == nil {
		return nil, errors.New("decode pois: missing \"pois\"")
	}
	r.Completer.Remember(ctx, "research", req, content)
	pois := make([]trip.POI, 0, len(out.POIs))
	for _, p := range out.POIs {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if p.Links == nil {
			p.Links = []string{}
		}
		if p.Images == nil {
			p.Images = []trip.Image{}
		}
		pois = append(pois, p)
	}
	r.attachImages(ctx, day, pois)
	return pois, nil
}

func (r *Researcher) attachImages(ctx context.Context, day trip.Day, pois []trip.POI) {
	if r.Images == nil {
		return
	}
	n := r.ImagesPerPOI
	if n <= 0 {
		n = 3
	}
	for i := range pois {
		q := pois[i].Name
		if day.Location != "" {
			q += " " + day.Location
		}
		imgs, err := r.Images.Search(ctx, images.Query{Text: q, Provider: "all", Count: n})
		if err != nil {
			log.Warn().Err(err).Str("poi", pois[i].Name).Msg("poi image search failed")
			continue
		}
		pois[i].Images = trip.DedupeImages(pois[i].Images, imgs)
	}
}

// Run researches the given days in order, saving each to the store. Days
// that fail are logged and counted; the rest carry on.
func (r *Researcher) Run(ctx context.Context, days []trip.Day) Report {
	var rep Report
	for i, d := range days {
		if r.Limiter != nil && i > 0 {
			if err := r.Limiter.Wait(ctx); err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("day %d: %v", d.Day, err))
				continue
			}
		}
		pois, err := r.ResearchDay(ctx, d)
		if err == nil {
			err = r.Store.SavePOIs(d.Day, pois)
		}
		if err != nil {
			log.Warn().Err(err).Int("day", d.Day).Msg("poi research failed")
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("day %d: %v", d.Day, err))
			continue
		}
		rep.Succeeded++
		log.Info().Int("day", d.Day).Int("pois", len(pois)).Int("done", i+1).Int("of", len(days)).Msg("poi research saved")
	}
	return rep
}

func dayPrompt(d trip.Day) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d", d.Day)
	if d.Date != "" {
		fmt.Fprintf(&b, " (%s)", d.Date)
	}
	b.WriteString("\n")
	if d.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", d.Title)
	}
	if d.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", d.Location)
	}
	if len(d.Highlights) > 0 {
		fmt.Fprintf(&b, "Highlights: %s\n", strings.Join(d.Highlights, "; "))
	}
	for _, s := range d.Segments {
		if s.Title != "" {
			fmt.Fprintf(&b, "- %s %s\n", s.Time, s.Title)
		}
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", d.Description)
	}
	return b.String()
}

// SyncPOIs copies every saved POI side-file into the matching day of doc.
// Days without a side-file keep what they had. It returns how many days
// were updated.
func SyncPOIs(doc trip.Document, st *store.Store) (trip.Document, int, error) {
	updated := 0
	days := append([]trip.Day(nil), doc.Days...)
	for i := range days {
		pois, err := st.LoadPOIs(days[i].Day)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return doc, 0, fmt.Errorf("day %d: %w", days[i].Day, err)
		}
		days[i].PointsOfInterest = pois
		updated++
	}
	doc.Days = days
	return doc, updated, nil
}
