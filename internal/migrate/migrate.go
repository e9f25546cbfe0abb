// Package migrate converts CMS-era itinerary records into the schema the
// public site reads.
package migrate

import (
	"encoding/json"
	"strings"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// SchemaVersion is written into migrated documents.
const SchemaVersion = "2.0"

// DefaultRegion is assigned to days past the last range in Regions.
const DefaultRegion = "Beijing"

// RegionRange assigns Name to every day number up to and including UpTo.
type RegionRange struct {
	UpTo int
	Name string
}

// Regions is checked in ascending order; the first UpTo that is not below the
// day number wins.
var Regions = []RegionRange{
	{UpTo: 4, Name: "Shaanxi"},
	{UpTo: 6, Name: "Henan"},
	{UpTo: 9, Name: "Hunan"},
	{UpTo: 12, Name: "Guangxi"},
	{UpTo: 15, Name: "Yunnan"},
}

// RegionFor returns the region of a one-indexed day number.
func RegionFor(day int) string {
	for _, r := range Regions {
		if day <= r.UpTo {
			return r.Name
		}
	}
	return DefaultRegion
}

// LegacyDay is a day as exported from the CMS. Its Day field is zero-indexed.
// Every field may be absent.
type LegacyDay struct {
	Day           int                 `json:"day"`
	Date          string              `json:"date"`
	Title         string              `json:"title"`
	Location      string              `json:"location"`
	Description   string              `json:"description"`
	Highlights    []string            `json:"highlights"`
	Meals         string              `json:"meals"`
	Accommodation LegacyAccommodation `json:"accommodation"`
	Segments      []trip.Segment      `json:"segments"`
}

// LegacyAccommodation accepts both the object form and the older bare hotel
// name string.
type LegacyAccommodation struct {
	trip.Accommodation
}

func (a *LegacyAccommodation) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		a.Accommodation = trip.Accommodation{Name: name}
		return nil
	}
	var acc trip.Accommodation
	if err := json.Unmarshal(b, &acc); err != nil {
		return err
	}
	a.Accommodation = acc
	return nil
}

// LegacyDocument is the CMS export layout.
type LegacyDocument struct {
	Metadata trip.Metadata `json:"metadata"`
	Days     []LegacyDay   `json:"days"`
}

// MigrateDay converts one legacy day. The CMS numbers days from zero, the
// site from one, so the result carries legacy.Day + 1. Segment images are
// merged from selections.
func MigrateDay(legacy LegacyDay, selections []trip.Selection) trip.Day {
	dayNum := legacy.Day + 1
	d := trip.Day{
		Day:           dayNum,
		Date:          legacy.Date,
		Title:         legacy.Title,
		Location:      legacy.Location,
		Region:        RegionFor(dayNum),
		Description:   legacy.Description,
		Highlights:    legacy.Highlights,
		Meals:         legacy.Meals,
		Accommodation: legacy.Accommodation.Accommodation,
	}
	if d.Highlights == nil {
		d.Highlights = []string{}
	}
	if len(legacy.Segments) > 0 {
		d.Segments = make([]trip.Segment, len(legacy.Segments))
		for i, seg := range legacy.Segments {
			d.Segments[i] = MergeSelections(seg, selections)
		}
	}
	return d
}

// Remigrate refreshes derived fields on a day that is already in the current
// schema. The day number is left alone, so running it twice is a no-op.
func Remigrate(d trip.Day) trip.Day {
	d.Region = RegionFor(d.Day)
	if d.Highlights == nil {
		d.Highlights = []string{}
	}
	return d
}

// MigrateDocument converts a whole CMS export. selectionsByDay is keyed by
// the migrated (one-indexed) day number and may be nil.
func MigrateDocument(legacy LegacyDocument, selectionsByDay map[int][]trip.Selection) trip.Document {
	doc := trip.Document{Metadata: legacy.Metadata, Days: make([]trip.Day, 0, len(legacy.Days))}
	doc.Metadata.Version = SchemaVersion
	for _, ld := range legacy.Days {
		doc.Days = append(doc.Days, MigrateDay(ld, selectionsByDay[ld.Day+1]))
	}
	return doc
}

// MergeSelections appends the images of every selection whose id equals the
// segment id, or shares its first two dash-separated components, to the
// segment's own images. Images are de-duplicated by URL in first-seen order.
func MergeSelections(seg trip.Segment, selections []trip.Selection) trip.Segment {
	prefix := idPrefix(seg.ID)
	lists := [][]trip.Image{seg.Images}
	for _, sel := range selections {
		if sel.SegmentID == seg.ID || (prefix != "" && idPrefix(sel.SegmentID) == prefix) {
			lists = append(lists, sel.Images)
		}
	}
	seg.Images = trip.DedupeImages(lists...)
	return seg
}

// idPrefix returns the first two dash-delimited components, "day3-morning"
// for "day3-morning-terracotta". Ids with fewer than two components have no
// prefix.
func idPrefix(id string) string {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "-" + parts[1]
}
