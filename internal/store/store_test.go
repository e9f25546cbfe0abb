package store

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hyperifyio/itinerary/internal/trip"
)

func TestDocumentRoundTrip(t *testing.T) {
	s := New(t.TempDir(), false)
	if _, err := s.LoadDocument(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	doc := trip.Document{Metadata: trip.Metadata{Version: "2.0"}, Days: []trip.Day{{Day: 1, Title: "Arrive"}}}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadDocument()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Metadata.Version != "2.0" || len(got.Days) != 1 || got.Days[0].Title != "Arrive" {
		t.Fatalf("got %+v", got)
	}
	entries, _ := os.ReadDir(s.Dir)
	for _, e := range entries {
		if e.Name() != "itinerary.json" {
			t.Fatalf("leftover file %q", e.Name())
		}
	}
}

func TestAllSelections(t *testing.T) {
	s := New(t.TempDir(), false)
	if all, err := s.AllSelections(); err != nil || len(all) != 0 {
		t.Fatalf("empty store: %v %v", all, err)
	}
	if err := s.SaveSelections(3, []trip.Selection{{SegmentID: "day3-am", Images: []trip.Image{{URL: "u"}}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveSelections(1, nil); err != nil {
		t.Fatal(err)
	}
	// unrelated files are ignored
	if err := os.WriteFile(filepath.Join(s.Dir, "selections", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	all, err := s.AllSelections()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || len(all[3]) != 1 || all[3][0].Images[0].URL != "u" {
		t.Fatalf("all=%+v", all)
	}
}

func TestPOIs(t *testing.T) {
	s := New(t.TempDir(), false)
	if err := s.SavePOIs(2, []trip.POI{{Name: "Bell Tower"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadPOIs(2)
	if err != nil || len(got) != 1 || got[0].Name != "Bell Tower" {
		t.Fatalf("got=%v err=%v", got, err)
	}
	days, err := s.POIDays()
	if err != nil || len(days) != 1 || days[0] != 2 {
		t.Fatalf("days=%v err=%v", days, err)
	}
	if _, err := s.LoadPOIs(5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestStrictPerms(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix permissions")
	}
	s := New(filepath.Join(t.TempDir(), "data"), true)
	if err := s.SavePOIs(1, nil); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(s.Dir, "pois", "day-1.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("file mode=%v", info.Mode().Perm())
	}
	dinfo, _ := os.Stat(filepath.Join(s.Dir, "pois"))
	if dinfo.Mode().Perm() != 0o700 {
		t.Fatalf("dir mode=%v", dinfo.Mode().Perm())
	}
}

func TestImagesDir(t *testing.T) {
	s := New(t.TempDir(), false)
	dir, err := s.ImagesDir()
	if err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("images dir not created: %v", err)
	}
}
