// Package images finds candidate photos for itinerary segments and downloads
// the curated picks into the data directory.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// Query is one image search request.
type Query struct {
	Text string `json:"query"`
	// Provider is "all" or the name of a single backend.
	Provider string `json:"provider"`
	Count    int    `json:"count"`
}

// Searcher finds images for a query.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]trip.Image, error)
	Name() string
}

// UpstreamError is a non-2xx answer from the search service.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image search status: %d", e.Status)
	}
	return fmt.Sprintf("image search status: %d: %s", e.Status, e.Message)
}

// HTTPSearcher talks to the image search service over JSON.
type HTTPSearcher struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

func (s *HTTPSearcher) Name() string { return "http" }

func (s *HTTPSearcher) Search(ctx context.Context, q Query) ([]trip.Image, error) {
	if s.BaseURL == "" {
		return nil, errors.New("missing image search base url")
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("query is required")
	}
	if q.Provider == "" {
		q.Provider = "all"
	}
	if q.Count <= 0 {
		q.Count = 10
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode image search: %w", err)
	}
	return keepUsable(sr.Images, q.Count), nil
}

type searchResponse struct {
	Images []trip.Image `json:"images"`
}

// errorMessage pulls {"error": "..."} out of a failure body, falling back to
// the trimmed body text.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}

// FileSearcher serves images from a local JSON array, for offline use.
type FileSearcher struct {
	Path string
}

func (f *FileSearcher) Name() string { return "file" }

func (f *FileSearcher) Search(_ context.Context, q Query) ([]trip.Image, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file searcher path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []trip.Image
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	var matched []trip.Image
	for _, im := range raw {
		if needle == "" || strings.Contains(strings.ToLower(im.Alt), needle) {
			matched = append(matched, im)
		}
	}
	return keepUsable(matched, q.Count), nil
}

// keepUsable drops images without a URL or src and duplicates, and caps the
// result at limit when limit is positive.
func keepUsable(in []trip.Image, limit int) []trip.Image {
	out := trip.DedupeImages(in)
	if out == nil {
		out = []trip.Image{}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
