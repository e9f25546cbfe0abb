package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/hyperifyio/itinerary/internal/trip"
)

const (
	maxTitleRunes = 60
	// titleKeepRunes leaves room for the ellipsis within maxTitleRunes.
	titleKeepRunes = 57
	maxHighlights  = 6
)

// KnownPlaces is the curated list of place names tried before the
// preposition heuristic. Spelling variants map to the canonical name.
var KnownPlaces = []Place{
	{Name: "Xi'an", Aliases: []string{"Xi'an", "Xi’an", "Xian"}},
	{Name: "Beijing", Aliases: []string{"Beijing", "Peking"}},
	{Name: "Shanghai"},
	{Name: "Luoyang"},
	{Name: "Dengfeng"},
	{Name: "Shaolin"},
	{Name: "Huashan", Aliases: []string{"Huashan", "Hua Shan", "Mount Hua"}},
	{Name: "Pingyao"},
	{Name: "Zhangjiajie"},
	{Name: "Fenghuang"},
	{Name: "Changsha"},
	{Name: "Guilin"},
	{Name: "Yangshuo"},
	{Name: "Longji", Aliases: []string{"Longji", "Longsheng", "Dragon's Backbone"}},
	{Name: "Kunming"},
	{Name: "Dali"},
	{Name: "Lijiang"},
	{Name: "Tiger Leaping Gorge"},
	{Name: "Shangri-La", Aliases: []string{"Shangri-La", "Shangrila", "Zhongdian"}},
	{Name: "Chengdu"},
	{Name: "Hangzhou"},
	{Name: "Huangshan", Aliases: []string{"Huangshan", "Yellow Mountain"}},
	{Name: "Great Wall"},
}

// Place is a canonical place name and the spellings that refer to it.
type Place struct {
	Name    string
	Aliases []string
}

var (
	prepositionPlaceRe = regexp.MustCompile(`\b(?:in|to|at)\s+([A-Z][\w'’-]*(?:[ \t]+[A-Z][\w'’-]*)*)`)

	titlePrefixRe = regexp.MustCompile(`(?i)^(?:\s*(?:day\s+\d{1,2}|\d{1,2}(?:st|nd|rd|th)?\s+` + monthNames + `(?:\s+\d{4})?|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:mon|tues|wednes|thurs|fri|satur|sun)day\b|(?:mon|tue|wed|thu|fri|sat|sun)[.,])[\s,:;.\-–—|]*)+`)

	bulletLineRe = regexp.MustCompile(`^\s*[·•\-*]\s*(.*)$`)
	activityRe   = regexp.MustCompile(`(?i)\b(?:visit|tour|hike|walk|explore|transfer to|arrive at)\s+[^.,;:!?\n()]+`)

	mealToken        = `(?:breakfast|lunch|dinner|b|l|d)`
	mealParenRe      = regexp.MustCompile(`(?i)\((` + mealToken + `(?:\s*(?:,|/|&|\band\b)\s*` + mealToken + `)*)\)`)
	mealPrefixRe     = regexp.MustCompile(`(?i)\bmeals?\s*:\s*([^\n]+)`)
	mealRepetitionRe = regexp.MustCompile(`(?i)\b((?:breakfast|lunch|dinner)(?:\s*,\s*(?:breakfast|lunch|dinner))+)\b`)

	lodging          = `(?i:hotel|inn|lodge|house|resort|homestay)`
	lodgingNameTail  = `\b(?:[ \t]+[A-Z][\w'’&-]*){0,3}`
	lodgingName      = `((?:[\w'’&-]+[ \t]+){0,6}?` + lodging + `\w*` + lodgingNameTail + `)`
	accommodationRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i:check(?:[\s-]?in))[ \t]+(?i:at|to)[ \t]+(?i:the[ \t]+)?` + lodgingName),
		regexp.MustCompile(`(?i:stay(?:ing)?)[ \t]+(?i:at|in)[ \t]+(?i:the[ \t]+)?` + lodgingName),
		regexp.MustCompile(`(?i:overnight)[ \t]+(?i:at|in)[ \t]+(?i:the[ \t]+)?` + lodgingName),
		regexp.MustCompile(`\b((?:[A-Z0-9][\w'’&-]*[ \t]+){1,5}` + lodging + `s?` + lodgingNameTail + `)`),
	}
	ratingRe = regexp.MustCompile(`(?i)\b([1-5](?:\.5)?)[ \t-]*stars?\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

// ExtractLocation returns the first known place mentioned in text, or else the
// first capitalised phrase after "in", "to" or "at". Empty when neither hits.
func ExtractLocation(text string) string {
	return extractLocation(text, KnownPlaces)
}

func extractLocation(text string, places []Place) string {
	fold := cases.Fold()
	folded := fold.String(text)
	best, bestAt := "", -1
	for _, p := range places {
		aliases := p.Aliases
		if len(aliases) == 0 {
			aliases = []string{p.Name}
		}
		for _, a := range aliases {
			at := strings.Index(folded, fold.String(a))
			if at >= 0 && (bestAt < 0 || at < bestAt) {
				best, bestAt = p.Name, at
			}
		}
	}
	if best != "" {
		return best
	}
	if m := prepositionPlaceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractTitle takes the first line that still has text once its date or
// "Day N" prefix is removed, truncating long lines. Without any usable line it
// falls back to "Day in <location>".
func ExtractTitle(text, location string) string {
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(titlePrefixRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if s == "" {
			continue
		}
		return truncateTitle(s)
	}
	return "Day in " + location
}

func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	r := []rune(s)
	return string(r[:titleKeepRunes]) + "..."
}

// ExtractHighlights prefers bullet lines of 6..99 characters. Without any
// bullet it collects activity phrases ("visit ...", "hike ...") of 4..79
// characters. At most six are returned, in source order, without duplicates.
func ExtractHighlights(text string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	bullets := 0
	for _, line := range strings.Split(text, "\n") {
		m := bulletLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		bullets++
		s := strings.TrimSpace(m[1])
		if n := utf8.RuneCountInString(s); n > 5 && n < 100 {
			add(s)
		}
	}
	if bullets == 0 {
		for _, phrase := range activityRe.FindAllString(text, -1) {
			s := strings.TrimSpace(phrase)
			if n := utf8.RuneCountInString(s); n > 3 && n < 80 {
				add(s)
			}
		}
	}
	if len(out) > maxHighlights {
		out = out[:maxHighlights]
	}
	return out
}

// ExtractMeals tries a parenthesised list, then a "Meals:" line, then a bare
// run like "breakfast, lunch". The first pattern that matches wins.
func ExtractMeals(text string) string {
	for _, re := range []*regexp.Regexp{mealParenRe, mealPrefixRe, mealRepetitionRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// ExtractAccommodation tries "check in at", "stay at/in", "overnight at/in"
// and finally a bare "<Name> Hotel" mention. Each pattern needs a lodging
// keyword. Rating is picked from an "N star" mention when present.
func ExtractAccommodation(text string) trip.Accommodation {
	var acc trip.Accommodation
	for _, re := range accommodationRes {
		if m := re.FindStringSubmatch(text); m != nil {
			acc.Name = strings.TrimSpace(m[1])
			break
		}
	}
	if acc.Name == "" {
		return acc
	}
	if m := ratingRe.FindStringSubmatch(text); m != nil {
		acc.Rating = m[1] + "-star"
	}
	return acc
}

const bulletSentinel = "\x00"

// NormalizeDescription collapses whitespace and rewrites bullet markers to a
// uniform "\n• " prefix.
func NormalizeDescription(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			lines[i] = bulletSentinel + m[1]
		}
	}
	s := whitespaceRe.ReplaceAllString(strings.Join(lines, "\n"), " ")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " "+bulletSentinel, "\n• ")
	s = strings.ReplaceAll(s, bulletSentinel, "\n• ")
	return strings.TrimPrefix(s, "\n")
}
