package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Chunk is the slice of raw text belonging to one detected day.
// Start and End delimit the chunk within the input; the first chunk starts at
// offset 0 so that chunks together cover the whole input. MarkerStart is where
// the day marker itself begins, and Text runs from MarkerStart to End.
type Chunk struct {
	Marker      string
	Start       int
	MarkerStart int
	End         int
	Text        string
}

const monthNames = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

// dayMarkerRe matches "17th May" or "17 May", "3/5" or "3/5/2025", and "Day 4".
var dayMarkerRe = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+` + monthNames + `\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b|\bday\s+\d{1,2}\b`)

// shortSlashRe matches a slash date without a year. Followed by a unit word
// it reads as a fraction or rating ("1/2 day hike", "4/5 stars") instead.
var (
	shortSlashRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)
	unitWordRe   = regexp.MustCompile(`(?i)^\s*(?:days?|hours?|hrs?|stars?|nights?|km|miles?|of)\b`)
)

func isFraction(text string, loc []int) bool {
	return shortSlashRe.MatchString(text[loc[0]:loc[1]]) && unitWordRe.MatchString(text[loc[1]:])
}

// markerJoinRe matches the filler allowed between two markers that describe
// the same day, e.g. "Day 1 - 17th May".
var markerJoinRe = regexp.MustCompile(`^[ \t,:;()\-–—|/.]*$`)

// SplitDays scans text once, front to back, and cuts it at every day marker.
// A marker that follows another on the same line with only punctuation in
// between is folded into the earlier one. A yearless slash date followed by
// a unit word is not a marker. No markers means no chunks.
func SplitDays(text string) []Chunk {
	locs := dayMarkerRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	type span struct{ start, end int }
	var markers []span
	for _, loc := range locs {
		if isFraction(text, loc) {
			continue
		}
		if n := len(markers); n > 0 {
			prev := &markers[n-1]
			if markerJoinRe.MatchString(text[prev.end:loc[0]]) {
				prev.end = loc[1]
				continue
			}
		}
		markers = append(markers, span{start: loc[0], end: loc[1]})
	}
	if len(markers) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		start := m.start
		if i == 0 {
			start = 0
		}
		chunks = append(chunks, Chunk{
			Marker:      strings.TrimSpace(text[m.start:m.end]),
			Start:       start,
			MarkerStart: m.start,
			End:         end,
			Text:        text[m.start:end],
		})
	}
	return chunks
}

// Prepare turns pasted input into plain text ready for SplitDays: markup is
// flattened, line endings unified and the text NFC-normalised.
func Prepare(raw string) string {
	text := raw
	if LooksLikeHTML(text) {
		text = FlattenHTML([]byte(text))
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return norm.NFC.String(text)
}
