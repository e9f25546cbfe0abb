package trip

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Days and segments usually come from a language model, so decoding never
// fails on a field of the wrong type. Values that convert cleanly (a day
// number sent as "3", a single highlight sent as a string, an accommodation
// sent as its name) are converted. Anything else, and every key the schema
// does not know, is kept in Extra and written back out unchanged.

type dayFields Day

type segmentFields Segment

var dayKeys = keySet("day", "date", "title", "location", "region", "description", "highlights",
	"meals", "accommodation", "segments", "pointsOfInterest")

var segmentKeys = keySet("id", "time", "type", "title", "description", "duration", "location",
	"mode", "from", "to", "walkDetails", "highlights", "images")

func keySet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func (d *Day) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var strict dayFields
	if json.Unmarshal(b, &strict) == nil {
		*d = Day(strict)
		d.Extra = unknownKeys(m, dayKeys)
		return nil
	}
	*d = Day{}
	extra := unknownKeys(m, dayKeys)
	for k, raw := range m {
		ok := true
		switch k {
		case "day":
			d.Day, ok = intOf(raw)
		case "date":
			d.Date, ok = textOf(raw)
		case "title":
			d.Title, ok = textOf(raw)
		case "location":
			d.Location, ok = textOf(raw)
		case "region":
			d.Region, ok = textOf(raw)
		case "description":
			d.Description, ok = textOf(raw)
		case "highlights":
			d.Highlights, ok = listOf(raw)
		case "meals":
			d.Meals, ok = textOf(raw)
		case "accommodation":
			d.Accommodation, ok = accommodationOf(raw)
		case "segments":
			d.Segments, ok = segmentsOf(raw)
		case "pointsOfInterest":
			d.PointsOfInterest, ok = poisOf(raw)
		}
		if !ok {
			extra = keep(extra, k, raw)
		}
	}
	d.Extra = extra
	return nil
}

func (d Day) MarshalJSON() ([]byte, error) {
	b, err := encode(dayFields(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	return withExtra(b, d.Extra)
}

func (s *Segment) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var strict segmentFields
	if json.Unmarshal(b, &strict) == nil {
		*s = Segment(strict)
		s.Extra = unknownKeys(m, segmentKeys)
		return nil
	}
	*s = Segment{}
	extra := unknownKeys(m, segmentKeys)
	text := map[string]*string{
		"id": &s.ID, "time": &s.Time, "type": &s.Type, "title": &s.Title, "description": &s.Description,
		"duration": &s.Duration, "location": &s.Location, "mode": &s.Mode, "from": &s.From, "to": &s.To,
	}
	for k, raw := range m {
		ok := true
		if p, isText := text[k]; isText {
			*p, ok = textOf(raw)
		} else {
			switch k {
			case "walkDetails":
				s.WalkDetails, ok = walkDetailsOf(raw)
			case "highlights":
				s.Highlights, ok = listOf(raw)
			case "images":
				s.Images, ok = imagesOf(raw)
			}
		}
		if !ok {
			extra = keep(extra, k, raw)
		}
	}
	s.Extra = extra
	return nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	b, err := encode(segmentFields(s))
	if err != nil || len(s.Extra) == 0 {
		return b, err
	}
	return withExtra(b, s.Extra)
}

func unknownKeys(m map[string]json.RawMessage, known map[string]bool) map[string]json.RawMessage {
	var extra map[string]json.RawMessage
	for k, v := range m {
		if !known[k] {
			extra = keep(extra, k, v)
		}
	}
	return extra
}

func keep(extra map[string]json.RawMessage, k string, v json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		extra = map[string]json.RawMessage{}
	}
	extra[k] = v
	return extra
}

// encode marshals without HTML escaping; escaping is left to the caller's
// encoder.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// withExtra adds the kept raw values to an encoded object. A kept value for
// a schema key only shows when the typed field encoded as empty.
func withExtra(b []byte, extra map[string]json.RawMessage) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if cur, ok := m[k]; !ok || isEmptyJSON(cur) {
			m[k] = v
		}
	}
	return encode(m)
}

func isEmptyJSON(raw json.RawMessage) bool {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return false
	}
	return emptyValue(v)
}

func emptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case float64:
		return x == 0
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		for _, e := range x {
			if !emptyValue(e) {
				return false
			}
		}
		return true
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || string(t) == "null"
}

// textOf accepts a string, or a number or boolean in its literal form.
func textOf(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	t := bytes.TrimSpace(raw)
	if t[0] == '{' || t[0] == '[' {
		return "", false
	}
	return string(t), true
}

// intOf accepts a whole number or a string holding one.
func intOf(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, true
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil && f == math.Trunc(f) {
		return int(f), true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// listOf accepts an array of text values, or a single one.
func listOf(raw json.RawMessage) ([]string, bool) {
	if isNull(raw) {
		return nil, true
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := textOf(it); ok && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	s, ok := textOf(raw)
	if !ok {
		return nil, false
	}
	if strings.TrimSpace(s) == "" {
		return []string{}, true
	}
	return []string{s}, true
}

// fieldsOf fills text fields from an object. It reports false when raw is
// not an object.
func fieldsOf(raw json.RawMessage, fields map[string]*string) bool {
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) != nil || m == nil {
		return false
	}
	for k, p := range fields {
		if v, ok := textOf(m[k]); ok {
			*p = v
		}
	}
	return true
}

func accommodationOf(raw json.RawMessage) (Accommodation, bool) {
	if isNull(raw) {
		return Accommodation{}, true
	}
	var a Accommodation
	if fieldsOf(raw, map[string]*string{"name": &a.Name, "rating": &a.Rating, "location": &a.Location}) {
		return a, true
	}
	var name string
	if json.Unmarshal(raw, &name) == nil {
		return Accommodation{Name: name}, true
	}
	return Accommodation{}, false
}

func walkDetailsOf(raw json.RawMessage) (*WalkDetails, bool) {
	if isNull(raw) {
		return nil, true
	}
	var w WalkDetails
	if fieldsOf(raw, map[string]*string{"distance": &w.Distance, "elevation": &w.Elevation, "difficulty": &w.Difficulty}) {
		return &w, true
	}
	return nil, false
}

func imageOf(raw json.RawMessage) (Image, bool) {
	var im Image
	ok := fieldsOf(raw, map[string]*string{
		"id": &im.ID, "url": &im.URL, "src": &im.Src, "thumb": &im.Thumb, "full": &im.Full, "alt": &im.Alt,
		"photographer": &im.Photographer, "photographerUrl": &im.PhotographerURL,
		"source": &im.Source, "sourceUrl": &im.SourceURL,
	})
	return im, ok
}

// objectsOf decodes an array, dropping entries that are not objects. A lone
// object counts as a one-element array.
func objectsOf(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, true
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		t := bytes.TrimSpace(raw)
		if t[0] != '{' {
			return nil, false
		}
		items = []json.RawMessage{t}
	}
	out := items[:0]
	for _, it := range items {
		if t := bytes.TrimSpace(it); len(t) > 0 && t[0] == '{' {
			out = append(out, it)
		}
	}
	return out, true
}

func imagesOf(raw json.RawMessage) ([]Image, bool) {
	items, ok := objectsOf(raw)
	if !ok {
		return nil, false
	}
	var out []Image
	for _, it := range items {
		if im, ok := imageOf(it); ok {
			out = append(out, im)
		}
	}
	return out, true
}

func segmentsOf(raw json.RawMessage) ([]Segment, bool) {
	items, ok := objectsOf(raw)
	if !ok {
		return nil, false
	}
	var out []Segment
	for _, it := range items {
		var s Segment
		if json.Unmarshal(it, &s) == nil {
			out = append(out, s)
		}
	}
	return out, true
}

func poisOf(raw json.RawMessage) ([]POI, bool) {
	items, ok := objectsOf(raw)
	if !ok {
		return nil, false
	}
	var out []POI
	for _, it := range items {
		var p POI
		if json.Unmarshal(it, &p) == nil {
			out = append(out, p)
			continue
		}
		var m map[string]json.RawMessage
		if json.Unmarshal(it, &m) != nil {
			continue
		}
		fieldsOf(it, map[string]*string{
			"name": &p.Name, "summary": &p.Summary, "historicalContext": &p.HistoricalContext,
			"practicalTips": &p.PracticalTips, "status": &p.Status, "confidence": &p.Confidence,
		})
		p.Links, _ = listOf(m["links"])
		p.Images, _ = imagesOf(m["images"])
		out = append(out, p)
	}
	return out, true
}
