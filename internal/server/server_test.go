package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hyperifyio/itinerary/internal/extract"
	"github.com/hyperifyio/itinerary/internal/images"
	"github.com/hyperifyio/itinerary/internal/store"
	"github.com/hyperifyio/itinerary/internal/structure"
	"github.com/hyperifyio/itinerary/internal/trip"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeExtractor struct {
	days []trip.Day
	err  error
}

func (f fakeExtractor) Name() string { return "fake" }
func (f fakeExtractor) Extract(_ context.Context, raw string) ([]trip.Day, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, extract.ErrMissingInput
	}
	return f.days, f.err
}

type fakeSearcher struct{ err error }

func (f fakeSearcher) Name() string { return "fake" }
func (f fakeSearcher) Search(context.Context, images.Query) ([]trip.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []trip.Image{{URL: "https://img/1.jpg"}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestStructure_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		ext    fakeExtractor
		body   string
		status int
	}{
		{"ok", fakeExtractor{days: []trip.Day{{Day: 1, Title: "Arrive"}}}, `{"rawText":"Day 1"}`, http.StatusOK},
		{"missing", fakeExtractor{}, `{"rawText":"  "}`, http.StatusBadRequest},
		{"bad json", fakeExtractor{}, `{`, http.StatusBadRequest},
		{"upstream", fakeExtractor{err: errors.New("llm call: 401")}, `{"rawText":"Day 1"}`, http.StatusBadGateway},
		{"unparseable", fakeExtractor{err: &structure.UnparseableError{Raw: "oops"}}, `{"rawText":"Day 1"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{Structurer: tc.ext}
			rec := do(t, s.Router(), http.MethodPost, "/api/structure", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
			m := decode(t, rec)
			switch tc.status {
			case http.StatusOK:
				if days, _ := m["days"].([]any); len(days) != 1 {
					t.Fatalf("body=%v", m)
				}
			case http.StatusUnprocessableEntity:
				if m["raw"] != "oops" || m["error"] == "" {
					t.Fatalf("body=%v", m)
				}
			default:
				if _, ok := m["error"]; !ok {
					t.Fatalf("body=%v", m)
				}
			}
		})
	}
}

func TestParse_NoDaysIsEmptyList(t *testing.T) {
	s := &Server{Parser: extract.HeuristicExtractor{}}
	rec := do(t, s.Router(), http.MethodPost, "/api/parse", `{"rawText":"just notes"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"days":[]`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, s.Router(), http.MethodPost, "/api/parse", `{"rawText":"Day 1: Xi'an\nDay 2: Beijing"}`)
	if days, _ := decode(t, rec)["days"].([]any); len(days) != 2 {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestUnconfiguredEndpoints(t *testing.T) {
	h := (&Server{}).Router()
	for _, p := range []string{"/api/structure", "/api/trip-info", "/api/images/search"} {
		if rec := do(t, h, http.MethodPost, p, `{"rawText":"x"}`); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status=%d", p, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/itinerary", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("itinerary status=%d", rec.Code)
	}
}

func TestItineraryAndSideFiles(t *testing.T) {
	st := store.New(t.TempDir(), false)
	h := (&Server{Store: st}).Router()

	if rec := do(t, h, http.MethodGet, "/api/itinerary", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get before save: %d", rec.Code)
	}
	doc := `{"metadata":{"version":"2.0"},"days":[{"day":1,"title":"Arrive"}]}`
	if rec := do(t, h, http.MethodPut, "/api/itinerary", doc); rec.Code != http.StatusOK {
		t.Fatalf("put: %d %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, "/api/itinerary", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Arrive"`) {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	sel := `{"selections":[{"segmentId":"day1-am","images":[{"url":"u"}]}]}`
	if rec := do(t, h, http.MethodPut, "/api/selections/1", sel); rec.Code != http.StatusNoContent {
		t.Fatalf("put selections: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/selections/1", "")
	if !strings.Contains(rec.Body.String(), `"segmentId":"day1-am"`) {
		t.Fatalf("selections body=%s", rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/selections/zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad day status=%d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/pois/3", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pois":[]`) {
		t.Fatalf("pois: %d %s", rec.Code, rec.Body.String())
	}
}

func TestImageSearch(t *testing.T) {
	h := (&Server{Images: fakeSearcher{}}).Router()
	if rec := do(t, h, http.MethodPost, "/api/images/search", `{"query":"walls"}`); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/images/search", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query status=%d", rec.Code)
	}
	h = (&Server{Images: fakeSearcher{err: &images.UpstreamError{Status: 429, Message: "slow down"}}}).Router()
	rec := do(t, h, http.MethodPost, "/api/images/search", `{"query":"walls"}`)
	if rec.Code != http.StatusBadGateway || decode(t, rec)["error"] != "slow down" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestImageSearch_UpstreamWithoutMessage(t *testing.T) {
	h := (&Server{Images: fakeSearcher{err: &images.UpstreamError{Status: 503}}}).Router()
	rec := do(t, h, http.MethodPost, "/api/images/search", `{"query":"walls"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}
	if msg, _ := decode(t, rec)["error"].(string); msg != "image search status: 503" {
		t.Fatalf("error=%q, want the status text", msg)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := (&Server{AllowedOrigins: []string{"http://localhost:3000"}}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/structure", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestHealthz(t *testing.T) {
	if rec := do(t, (&Server{}).Router(), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
}
