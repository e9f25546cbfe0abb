// Package store keeps the itinerary document and its per-day side-files in a
// data directory. Every write replaces the whole file. There is no locking:
// two writers racing on the same file lose one update.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// ErrNotFound is returned when a requested file does not exist.
var ErrNotFound = errors.New("not found")

const (
	documentFile   = "itinerary.json"
	selectionsDir  = "selections"
	poisDir        = "pois"
	imagesDir      = "images"
	sideFilePrefix = "day-"
)

var sideFileRe = regexp.MustCompile(`^day-(\d+)\.json$`)

// Store is rooted at Dir.
type Store struct {
	Dir string
	// StrictPerms writes directories 0700 and files 0600.
	StrictPerms bool
}

// New returns a Store rooted at dir.
func New(dir string, strict bool) *Store {
	return &Store{Dir: dir, StrictPerms: strict}
}

func (s *Store) dirPerm() os.FileMode {
	if s.StrictPerms {
		return 0o700
	}
	return 0o755
}

func (s *Store) filePerm() os.FileMode {
	if s.StrictPerms {
		return 0o600
	}
	return 0o644
}

// DocumentPath is the location of the itinerary document.
func (s *Store) DocumentPath() string { return filepath.Join(s.Dir, documentFile) }

// ImagesDir returns the directory downloaded images go into, creating it.
func (s *Store) ImagesDir() (string, error) {
	dir := filepath.Join(s.Dir, imagesDir)
	if err := os.MkdirAll(dir, s.dirPerm()); err != nil {
		return "", fmt.Errorf("mkdir images: %w", err)
	}
	return dir, nil
}

func sideFile(dir string, day int) string {
	return filepath.Join(dir, sideFilePrefix+strconv.Itoa(day)+".json")
}

// LoadDocument reads the itinerary document.
func (s *Store) LoadDocument() (trip.Document, error) {
	var doc trip.Document
	err := s.readJSON(s.DocumentPath(), &doc)
	return doc, err
}

// SaveDocument overwrites the itinerary document.
func (s *Store) SaveDocument(doc trip.Document) error {
	return s.writeJSON(s.DocumentPath(), doc)
}

// LoadSelections reads the curated image picks for a day.
func (s *Store) LoadSelections(day int) ([]trip.Selection, error) {
	var f trip.SelectionsFile
	if err := s.readJSON(sideFile(filepath.Join(s.Dir, selectionsDir), day), &f); err != nil {
		return nil, err
	}
	return f.Selections, nil
}

// SaveSelections overwrites the picks for a day.
func (s *Store) SaveSelections(day int, sel []trip.Selection) error {
	if sel == nil {
		sel = []trip.Selection{}
	}
	return s.writeJSON(sideFile(filepath.Join(s.Dir, selectionsDir), day), trip.SelectionsFile{Day: day, Selections: sel})
}

// AllSelections reads every selections side-file, keyed by day number.
// A missing selections directory yields an empty map.
func (s *Store) AllSelections() (map[int][]trip.Selection, error) {
	out := map[int][]trip.Selection{}
	days, err := s.sideFileDays(selectionsDir)
	if err != nil {
		return out, err
	}
	for _, d := range days {
		sel, err := s.LoadSelections(d)
		if err != nil {
			return out, fmt.Errorf("day %d: %w", d, err)
		}
		out[d] = sel
	}
	return out, nil
}

// LoadPOIs reads the researched points of interest for a day.
func (s *Store) LoadPOIs(day int) ([]trip.POI, error) {
	var f trip.POIFile
	if err := s.readJSON(sideFile(filepath.Join(s.Dir, poisDir), day), &f); err != nil {
		return nil, err
	}
	return f.POIs, nil
}

// SavePOIs overwrites the points of interest for a day.
func (s *Store) SavePOIs(day int, pois []trip.POI) error {
	if pois == nil {
		pois = []trip.POI{}
	}
	return s.writeJSON(sideFile(filepath.Join(s.Dir, poisDir), day), trip.POIFile{Day: day, POIs: pois})
}

// POIDays lists the days that have a POI side-file, ascending.
func (s *Store) POIDays() ([]int, error) {
	return s.sideFileDays(poisDir)
}

func (s *Store) sideFileDays(sub string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.Dir, sub))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var days []int
	for _, e := range entries {
		m := sideFileRe.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		days = append(days, n)
	}
	sort.Ints(days)
	return days, nil
}

func (s *Store) readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes to a temp file in the target directory and renames it into
// place, so readers never observe a half-written file.
func (s *Store) writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm()); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(s.filePerm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
