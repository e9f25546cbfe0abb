// Package publish turns an itinerary document into the files the site and
// travellers read: canonical JSON, Markdown, and a print-friendly PDF.
package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// Export writes doc as indented JSON in the Day schema the site loads.
func Export(w io.Writer, doc trip.Document) error {
	if doc.Days == nil {
		doc.Days = []trip.Day{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// RenderMarkdown lays out doc as one section per day.
func RenderMarkdown(doc trip.Document) string {
	var b strings.Builder
	title := strings.TrimSpace(doc.Metadata.Title)
	if title == "" {
		title = "Itinerary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if doc.Metadata.Traveller != "" {
		fmt.Fprintf(&b, "Traveller: %s\n\n", doc.Metadata.Traveller)
	}
	for _, d := range doc.Days {
		heading := fmt.Sprintf("Day %d", d.Day)
		if d.Date != "" {
			heading += " (" + d.Date + ")"
		}
		if d.Title != "" {
			heading += ": " + d.Title
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		var meta []string
		if d.Location != "" {
			meta = append(meta, "Location: "+d.Location)
		}
		if d.Region != "" {
			meta = append(meta, "Region: "+d.Region)
		}
		if len(meta) > 0 {
			b.WriteString(strings.Join(meta, " | ") + "\n\n")
		}
		if d.Description != "" {
			b.WriteString(d.Description + "\n\n")
		}
		for _, h := range d.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		if len(d.Highlights) > 0 {
			b.WriteString("\n")
		}
		if len(d.Segments) > 0 {
			b.WriteString("### Schedule\n\n")
			for _, s := range d.Segments {
				b.WriteString("- " + segmentLine(s) + "\n")
			}
			b.WriteString("\n")
		}
		if d.Meals != "" {
			fmt.Fprintf(&b, "Meals: %s\n\n", d.Meals)
		}
		if !d.Accommodation.IsZero() {
			acc := d.Accommodation.Name
			if d.Accommodation.Rating != "" {
				acc += " (" + d.Accommodation.Rating + ")"
			}
			fmt.Fprintf(&b, "Accommodation: %s\n\n", acc)
		}
		if len(d.PointsOfInterest) > 0 {
			b.WriteString("### Points of interest\n\n")
			for _, p := range d.PointsOfInterest {
				line := "- " + p.Name
				if p.Summary != "" {
					line += ": " + p.Summary
				}
				b.WriteString(line + "\n")
				for _, l := range p.Links {
					fmt.Fprintf(&b, "  - [%s](%s)\n", l, l)
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func segmentLine(s trip.Segment) string {
	var parts []string
	if s.Time != "" {
		parts = append(parts, s.Time+":")
	}
	title := s.Title
	if s.Type == trip.SegmentTransfer && (s.From != "" || s.To != "") {
		route := strings.TrimSpace(s.From + " to " + s.To)
		if s.Mode != "" {
			route += " by " + s.Mode
		}
		if title == "" {
			title = route
		} else {
			title += " (" + route + ")"
		}
	}
	if title != "" {
		parts = append(parts, title)
	}
	if s.Duration != "" {
		parts = append(parts, "["+s.Duration+"]")
	}
	return strings.Join(parts, " ")
}
