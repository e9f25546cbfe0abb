package trip

import (
	"encoding/json"
	"time"
)

// Document is the publish-ready itinerary consumed by the site.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Days     []Day    `json:"days"`
}

// Metadata describes a Document. Version identifies the schema generation.
type Metadata struct {
	Version     string    `json:"version"`
	Title       string    `json:"title,omitempty"`
	Traveller   string    `json:"traveller,omitempty"`
	StartDate   string    `json:"startDate,omitempty"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
}

// Day is one calendar day of the itinerary.
type Day struct {
	Day              int           `json:"day"`
	Date             string        `json:"date"`
	Title            string        `json:"title"`
	Location         string        `json:"location"`
	Region           string        `json:"region,omitempty"`
	Description      string        `json:"description"`
	Highlights       []string      `json:"highlights"`
	Meals            string        `json:"meals"`
	Accommodation    Accommodation `json:"accommodation"`
	Segments         []Segment     `json:"segments,omitempty"`
	PointsOfInterest []POI         `json:"pointsOfInterest,omitempty"`

	// Extra holds keys outside the schema and values that did not fit their
	// field, verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

type Accommodation struct {
	Name     string `json:"name"`
	Rating   string `json:"rating"`
	Location string `json:"location"`
}

// IsZero reports whether no accommodation field is set.
func (a Accommodation) IsZero() bool {
	return a.Name == "" && a.Rating == "" && a.Location == ""
}

// Segment types used by the structuring prompt. Values outside this set are
// accepted and passed through.
const (
	SegmentActivity = "activity"
	SegmentTransfer = "transfer"
	SegmentCheckIn  = "check-in"
	SegmentCheckOut = "check-out"
	SegmentMeal     = "meal"
	SegmentFreeTime = "free-time"
)

// SegmentTypes lists the segment types in prompt order.
var SegmentTypes = []string{SegmentActivity, SegmentTransfer, SegmentCheckIn, SegmentCheckOut, SegmentMeal, SegmentFreeTime}

// TransferModes lists the modes allowed on transfer segments.
var TransferModes = []string{"train", "flight", "bus", "coach", "walk", "cable-car", "boat"}

// Segment is one activity, transfer, meal, or check-in/out unit within a Day.
type Segment struct {
	ID          string       `json:"id"`
	Time        string       `json:"time"`
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Duration    string       `json:"duration,omitempty"`
	Location    string       `json:"location,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	From        string       `json:"from,omitempty"`
	To          string       `json:"to,omitempty"`
	WalkDetails *WalkDetails `json:"walkDetails,omitempty"`
	Highlights  []string     `json:"highlights,omitempty"`
	Images      []Image      `json:"images,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type WalkDetails struct {
	Distance   string `json:"distance"`
	Elevation  string `json:"elevation"`
	Difficulty string `json:"difficulty"`
}

// Image is a single photo reference. URL is its identity.
type Image struct {
	ID              string `json:"id,omitempty"`
	URL             string `json:"url"`
	Src             string `json:"src,omitempty"`
	Thumb           string `json:"thumb,omitempty"`
	Full            string `json:"full,omitempty"`
	Alt             string `json:"alt,omitempty"`
	Photographer    string `json:"photographer,omitempty"`
	PhotographerURL string `json:"photographerUrl,omitempty"`
	Source          string `json:"source,omitempty"`
	SourceURL       string `json:"sourceUrl,omitempty"`
}

// Key returns the identity used for de-duplication. Older side-files only
// carry src, so it stands in for a missing url.
func (im Image) Key() string {
	if im.URL != "" {
		return im.URL
	}
	return im.Src
}

// DedupeImages concatenates the lists and drops images whose key was already
// seen, keeping the first occurrence.
func DedupeImages(lists ...[]Image) []Image {
	seen := map[string]struct{}{}
	var out []Image
	for _, list := range lists {
		for _, im := range list {
			k := im.Key()
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, im)
		}
	}
	return out
}

// POI is a researched point of interest attached to a day.
type POI struct {
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	HistoricalContext string   `json:"historicalContext"`
	PracticalTips     string   `json:"practicalTips"`
	Links             []string `json:"links"`
	Status            string   `json:"status"`
	Confidence        string   `json:"confidence"`
	Images            []Image  `json:"images"`
}

// POIFile is the layout of a per-day POI side-file.
type POIFile struct {
	Day  int   `json:"day"`
	POIs []POI `json:"pois"`
}

// Selection is one curated pick of images for a segment id (or id prefix).
type Selection struct {
	SegmentID string  `json:"segmentId"`
	Images    []Image `json:"images"`
}

// SelectionsFile is the layout of a per-day selections side-file.
type SelectionsFile struct {
	Day        int         `json:"day"`
	Selections []Selection `json:"selections"`
}
