package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// stubLLM implements the OpenAI-compatible endpoints the app calls and picks
// an answer from the opening words of the system prompt.
func stubLLM(t *testing.T, model string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = req.Messages[0].Content
		}
		var content string
		switch {
		case strings.HasPrefix(sys, "You convert pasted travel itineraries"):
			content = `{"days":[{"day":1,"date":"17th May","title":"Arrival","location":"Xi'an","segments":[{"id":"day1-evening-walls","type":"activity","title":"City walls"}]},{"day":2,"title":"Terracotta","location":"Xi'an"}]}`
		case strings.HasPrefix(sys, "You extract practical trip details"):
			content = `{"tripInfo":{"tripName":"China Hiking","visa":null}}`
		case strings.HasPrefix(sys, "You are a careful travel researcher"):
			content = `{"pois":[{"name":"Bell Tower","summary":"Ming era","confidence":"high"}]}`
		default:
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	})
	return httptest.NewServer(mux)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(t.TempDir(), "data")
	}
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	a.Stdout = &bytes.Buffer{}
	return a
}

func TestStructure_HeuristicSavesToStore(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "paste.txt", "Day 1: Xi'an\n• Visit the city walls\nDay 2: Xi'an\n• Terracotta Army\nDay 5: Luoyang\nLongmen Grottoes")
	a := newTestApp(t, Config{Strategy: "heuristic", InputPath: in})
	if err := a.Structure(context.Background()); err != nil {
		t.Fatalf("structure: %v", err)
	}
	doc, err := a.Store().LoadDocument()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Days) != 3 {
		t.Fatalf("days=%d", len(doc.Days))
	}
	if doc.Days[0].Region != "Shaanxi" || doc.Metadata.Version == "" {
		t.Fatalf("doc=%+v", doc)
	}
}

func TestStructure_LLMWritesOutput(t *testing.T) {
	srv := stubLLM(t, "stub-model")
	defer srv.Close()
	dir := t.TempDir()
	in := writeFile(t, dir, "paste.txt", "17th May arrive in Xi'an. 18th May Terracotta Army.")
	out := filepath.Join(dir, "out.json")
	a := newTestApp(t, Config{Strategy: "llm", LLMBaseURL: srv.URL + "/v1", LLMModel: "stub-model", InputPath: in, OutputPath: out})
	if err := a.Structure(context.Background()); err != nil {
		t.Fatalf("structure: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var doc trip.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Days) != 2 || doc.Days[0].Segments[0].ID != "day1-evening-walls" {
		t.Fatalf("doc=%+v", doc)
	}
}

func TestStructure_EmptyInput(t *testing.T) {
	a := newTestApp(t, Config{Strategy: "heuristic"})
	a.Stdin = strings.NewReader("   \n")
	if err := a.Structure(context.Background()); err != ErrNoInput {
		t.Fatalf("err=%v, want ErrNoInput", err)
	}
}

func TestTripInfo_StdoutJSON(t *testing.T) {
	srv := stubLLM(t, "stub-model")
	defer srv.Close()
	a := newTestApp(t, Config{LLMBaseURL: srv.URL + "/v1", LLMModel: "stub-model"})
	a.Stdin = strings.NewReader("China Hiking with ExampleTours")
	if err := a.TripInfo(context.Background()); err != nil {
		t.Fatalf("trip info: %v", err)
	}
	out := a.Stdout.(*bytes.Buffer).String()
	if !strings.Contains(out, `"tripName": "China Hiking"`) || !strings.Contains(out, `"visa": null`) {
		t.Fatalf("output=%s", out)
	}
}

func TestMigrate_LegacyWithSelections(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cms.json", `{"metadata":{"title":"China"},"days":[{"day":0,"title":"Arrive","accommodation":"Grand Hotel","segments":[{"id":"day1-evening-walls"}]},{"day":4}]}`)
	a := newTestApp(t, Config{InputPath: in})
	if err := a.Store().SaveSelections(1, []trip.Selection{{SegmentID: "day1-evening", Images: []trip.Image{{URL: "https://img/walls.jpg"}}}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	doc, err := a.Store().LoadDocument()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Days[0].Day != 1 || doc.Days[1].Day != 5 || doc.Days[1].Region != "Henan" {
		t.Fatalf("days=%+v", doc.Days)
	}
	if doc.Days[0].Accommodation.Name != "Grand Hotel" {
		t.Fatalf("accommodation=%+v", doc.Days[0].Accommodation)
	}
	if imgs := doc.Days[0].Segments[0].Images; len(imgs) != 1 {
		t.Fatalf("images=%v", imgs)
	}

	// a second pass without input only refreshes derived fields
	a2 := newTestApp(t, Config{DataDir: a.cfg.DataDir})
	if err := a2.Migrate(context.Background()); err != nil {
		t.Fatalf("remigrate: %v", err)
	}
	again, _ := a2.Store().LoadDocument()
	if again.Days[1].Day != 5 || again.Days[1].Region != "Henan" {
		t.Fatalf("remigrate changed days: %+v", again.Days[1])
	}
}

func TestResearchThenSyncThenExport(t *testing.T) {
	srv := stubLLM(t, "stub-model")
	defer srv.Close()
	a := newTestApp(t, Config{LLMBaseURL: srv.URL + "/v1", LLMModel: "stub-model", Format: "md"})
	doc := trip.Document{Metadata: trip.Metadata{Title: "China"}, Days: []trip.Day{{Day: 1, Location: "Xi'an"}, {Day: 2, Location: "Beijing"}}}
	if err := a.Store().SaveDocument(doc); err != nil {
		t.Fatal(err)
	}
	rep, err := a.Research(context.Background(), []int{1})
	if err != nil {
		t.Fatalf("research: %v", err)
	}
	if rep.Succeeded != 1 || rep.Failed != 0 {
		t.Fatalf("report=%+v", rep)
	}
	n, err := a.SyncPOIs(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("sync: n=%d err=%v", n, err)
	}
	if err := a.Export(context.Background()); err != nil {
		t.Fatalf("export: %v", err)
	}
	if md := a.Stdout.(*bytes.Buffer).String(); !strings.Contains(md, "- Bell Tower: Ming era") {
		t.Fatalf("markdown=%s", md)
	}
}

func TestExport_PDFNeedsPath(t *testing.T) {
	a := newTestApp(t, Config{Format: "pdf"})
	if err := a.Store().SaveDocument(trip.Document{Days: []trip.Day{{Day: 1}}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Export(context.Background()); err == nil {
		t.Fatal("expected error without output path")
	}
	a.cfg.OutputPath = filepath.Join(t.TempDir(), "trip.pdf")
	if err := a.Export(context.Background()); err != nil {
		t.Fatalf("export pdf: %v", err)
	}
}

func TestDownloadImages_UpdatesSelections(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))); err != nil {
		t.Fatal(err)
	}
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/walls.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer imgSrv.Close()

	a := newTestApp(t, Config{})
	sels := []trip.Selection{
		{SegmentID: "day2-am", Images: []trip.Image{{URL: imgSrv.URL + "/walls.png"}, {URL: imgSrv.URL + "/gone.png"}}},
		{SegmentID: "day2-pm", Images: []trip.Image{{URL: imgSrv.URL + "/walls.png"}}},
	}
	if err := a.Store().SaveSelections(2, sels); err != nil {
		t.Fatal(err)
	}
	reports, err := a.DownloadImages(context.Background(), nil)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if r := reports[2]; r.Succeeded != 1 || r.Failed != 1 {
		t.Fatalf("report=%+v", r)
	}
	got, err := a.Store().LoadSelections(2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Images[0].Src != "images/day-2-image-1.png" || got[1].Images[0].Src != "images/day-2-image-1.png" {
		t.Fatalf("selections=%+v", got)
	}
	if got[0].Images[1].Src != "" {
		t.Fatalf("failed image should stay remote: %+v", got[0].Images[1])
	}
	if _, err := os.Stat(filepath.Join(a.cfg.DataDir, "images", "day-2-image-1.png")); err != nil {
		t.Fatalf("image file: %v", err)
	}
}

func TestServer_WiresCollaborators(t *testing.T) {
	srv := stubLLM(t, "stub-model")
	defer srv.Close()
	a := newTestApp(t, Config{LLMBaseURL: srv.URL + "/v1", LLMModel: "stub-model", ImageSearchFile: "images.json"})
	s := a.Server(context.Background())
	if s.Structurer == nil || s.Structurer.Name() != "llm" || s.TripInfo == nil || s.Images == nil || s.Parser == nil {
		t.Fatalf("server=%+v", s)
	}
}
