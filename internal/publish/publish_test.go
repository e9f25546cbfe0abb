package publish

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/itinerary/internal/trip"
)

func sampleDoc() trip.Document {
	return trip.Document{
		Metadata: trip.Metadata{Version: "2.0", Title: "China Hiking"},
		Days: []trip.Day{{
			Day: 1, Date: "17th May", Title: "Arrival in Xi'an", Location: "Xi'an", Region: "Shaanxi",
			Highlights:    []string{"City walls"},
			Meals:         "D",
			Accommodation: trip.Accommodation{Name: "Grand Hotel", Rating: "4-star"},
			Segments: []trip.Segment{
				{ID: "day1-am-flight", Time: "Morning", Type: trip.SegmentTransfer, Mode: "flight", From: "London", To: "Xi'an"},
			},
			PointsOfInterest: []trip.POI{{Name: "Bell Tower", Summary: "Ming tower & drum", Links: []string{"https://example.org/bell"}}},
		}},
	}
}

func TestExport_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sampleDoc()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), `\u0026`) {
		t.Fatal("html escaping should be off")
	}
	var got trip.Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Days[0].Region != "Shaanxi" || got.Days[0].PointsOfInterest[0].Name != "Bell Tower" {
		t.Fatalf("got %+v", got.Days[0])
	}
}

func TestExport_EmptyDaysIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, trip.Document{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"days": []`) {
		t.Fatalf("output=%s", buf.String())
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleDoc())
	for _, want := range []string{
		"# China Hiking",
		"## Day 1 (17th May): Arrival in Xi'an",
		"Location: Xi'an | Region: Shaanxi",
		"- Morning: London to Xi'an by flight",
		"Accommodation: Grand Hotel (4-star)",
		"- Bell Tower: Ming tower",
		"[https://example.org/bell](https://example.org/bell)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderPDF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "itinerary.pdf")
	if err := RenderPDF(sampleDoc(), out); err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}
