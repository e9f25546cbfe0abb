package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/itinerary/internal/cache"
	"github.com/hyperifyio/itinerary/internal/extract"
	"github.com/hyperifyio/itinerary/internal/images"
	"github.com/hyperifyio/itinerary/internal/llm"
	"github.com/hyperifyio/itinerary/internal/migrate"
	"github.com/hyperifyio/itinerary/internal/publish"
	"github.com/hyperifyio/itinerary/internal/research"
	"github.com/hyperifyio/itinerary/internal/server"
	"github.com/hyperifyio/itinerary/internal/store"
	"github.com/hyperifyio/itinerary/internal/structure"
	"github.com/hyperifyio/itinerary/internal/trip"
)

// App wires the configured collaborators behind the CLI subcommands.
type App struct {
	cfg   Config
	http  *http.Client
	store *store.Store
	cache *cache.LLMCache

	client    llm.Client
	closer    io.Closer
	completer *llm.Completer
	llmOnce   sync.Once
	llmErr    error

	// Stdin and Stdout default to the process streams; tests replace them.
	Stdin  io.Reader
	Stdout io.Writer
}

// ErrNoInput is returned when a command needs input text and got none.
var ErrNoInput = errors.New("no input text")

// New builds an App. It performs no network calls; the LLM client is set up
// on first use so heuristic-only commands start instantly.
func New(_ context.Context, cfg Config) (*App, error) {
	a := &App{
		cfg:    cfg,
		http:   newHTTPClient(90 * time.Second),
		store:  store.New(cfg.DataDir, cfg.StrictPerms),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeByAge(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		a.cache = &cache.LLMCache{Dir: cfg.CacheDir, StrictPerms: cfg.StrictPerms}
	}
	return a, nil
}

// WithClient injects an LLM client, bypassing provider setup.
func (a *App) WithClient(c llm.Client) *App {
	a.llmOnce.Do(func() {})
	a.client = c
	a.completer = &llm.Completer{Client: c, Cache: a.cache, CacheOnly: a.cfg.LLMCacheOnly, Verbose: a.cfg.Verbose}
	return a
}

func (a *App) Close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

// Store exposes the data directory.
func (a *App) Store() *store.Store { return a.store }

// llmCompleter sets up the provider once. Missing credentials are logged as a
// warning and left for the upstream call to reject.
func (a *App) llmCompleter(ctx context.Context) (*llm.Completer, error) {
	a.llmOnce.Do(func() {
		switch strings.ToLower(a.cfg.LLMProvider) {
		case "gemini":
			key := a.cfg.GeminiAPIKey
			if key == "" {
				key = a.cfg.LLMAPIKey
			}
			if key == "" {
				log.Warn().Msg("GEMINI_API_KEY is not set; LLM features are unavailable")
				a.llmErr = errors.New("gemini: api key is not configured")
				return
			}
			p, err := llm.NewGeminiProvider(ctx, key, a.cfg.LLMModel)
			if err != nil {
				a.llmErr = err
				return
			}
			if a.cfg.LLMModel == "" {
				a.cfg.LLMModel = p.DefaultModel
			}
			a.client, a.closer = p, p
		default:
			if a.cfg.LLMAPIKey == "" && a.cfg.LLMBaseURL == "" {
				log.Warn().Msg("LLM_API_KEY is not set; requests to the default endpoint will be rejected")
			}
			tc := openai.DefaultConfig(a.cfg.LLMAPIKey)
			if a.cfg.LLMBaseURL != "" {
				tc.BaseURL = a.cfg.LLMBaseURL
			}
			tc.HTTPClient = a.http
			a.client = &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(tc)}
		}
		a.completer = &llm.Completer{Client: a.client, Cache: a.cache, CacheOnly: a.cfg.LLMCacheOnly, Verbose: a.cfg.Verbose}
		a.preflight(ctx)
	})
	return a.completer, a.llmErr
}

// preflight lists models as a best-effort connectivity check.
func (a *App) preflight(ctx context.Context) {
	lister, ok := a.client.(llm.ModelLister)
	if !ok || a.cfg.LLMCacheOnly {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) == 0 {
		log.Warn().Msg("LLM returned zero models")
		return
	}
	log.Debug().Int("count", len(models.Models)).Msg("LLM models available")
}

// Extractors returns every strategy that can be built with the current
// configuration. The llm strategy is left out when the provider fails.
func (a *App) Extractors(ctx context.Context) extract.Registry {
	reg := extract.Registry{"heuristic": extract.HeuristicExtractor{}}
	if c, err := a.llmCompleter(ctx); err == nil {
		reg["llm"] = &structure.LLMExtractor{Completer: c, Model: a.cfg.LLMModel, SystemPrompt: a.cfg.StructurePrompt}
	}
	return reg
}

// Extractor returns the configured strategy.
func (a *App) Extractor(ctx context.Context) (extract.Extractor, error) {
	if strings.EqualFold(a.cfg.Strategy, "llm") {
		if _, err := a.llmCompleter(ctx); err != nil {
			return nil, err
		}
	}
	return a.Extractors(ctx).Get(a.cfg.Strategy)
}

func (a *App) tripInfoExtractor(ctx context.Context) (*structure.TripInfoExtractor, error) {
	c, err := a.llmCompleter(ctx)
	if err != nil {
		return nil, err
	}
	return &structure.TripInfoExtractor{Completer: c, Model: a.cfg.LLMModel}, nil
}

// Searcher returns the configured image search, or nil when none is set.
func (a *App) Searcher() images.Searcher {
	switch {
	case a.cfg.ImageSearchURL != "":
		return &images.HTTPSearcher{BaseURL: a.cfg.ImageSearchURL, HTTPClient: a.http, UserAgent: a.cfg.UserAgent}
	case a.cfg.ImageSearchFile != "":
		return &images.FileSearcher{Path: a.cfg.ImageSearchFile}
	}
	return nil
}

// Structure extracts days from the input text with the configured strategy
// and writes the document to OutputPath, or to the data directory when no
// output is given.
func (a *App) Structure(ctx context.Context) error {
	raw, err := a.readInput()
	if err != nil {
		return err
	}
	ext, err := a.Extractor(ctx)
	if err != nil {
		return err
	}
	days, err := ext.Extract(ctx, raw)
	if err != nil {
		return fmt.Errorf("%s extraction: %w", ext.Name(), err)
	}
	for i := range days {
		days[i] = migrate.Remigrate(days[i])
	}
	doc := trip.Document{
		Metadata: trip.Metadata{Version: migrate.SchemaVersion, GeneratedAt: time.Now().UTC()},
		Days:     days,
	}
	log.Info().Str("strategy", ext.Name()).Int("days", len(days)).Msg("structured itinerary")
	if a.cfg.OutputPath == "" {
		return a.store.SaveDocument(doc)
	}
	return a.writeOutput(func(w io.Writer) error { return publish.Export(w, doc) })
}

// TripInfo extracts practical trip details and writes {"tripInfo": ...}.
func (a *App) TripInfo(ctx context.Context) error {
	raw, err := a.readInput()
	if err != nil {
		return err
	}
	ext, err := a.tripInfoExtractor(ctx)
	if err != nil {
		return err
	}
	info, err := ext.Extract(ctx, raw)
	if err != nil {
		return err
	}
	return a.writeOutput(func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]trip.TripInfo{"tripInfo": info})
	})
}

// Migrate converts a CMS export at InputPath, merging the stored image
// selections. Without an input it refreshes the stored document in place.
func (a *App) Migrate(_ context.Context) error {
	if a.cfg.InputPath == "" {
		doc, err := a.store.LoadDocument()
		if err != nil {
			return err
		}
		for i := range doc.Days {
			doc.Days[i] = migrate.Remigrate(doc.Days[i])
		}
		doc.Metadata.Version = migrate.SchemaVersion
		log.Info().Int("days", len(doc.Days)).Msg("refreshed itinerary")
		return a.store.SaveDocument(doc)
	}
	raw, err := a.readInput()
	if err != nil {
		return err
	}
	var legacy migrate.LegacyDocument
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return fmt.Errorf("decode legacy document: %w", err)
	}
	selections, err := a.store.AllSelections()
	if err != nil {
		return fmt.Errorf("load selections: %w", err)
	}
	doc := migrate.MigrateDocument(legacy, selections)
	log.Info().Int("days", len(doc.Days)).Int("selection_days", len(selections)).Msg("migrated itinerary")
	if a.cfg.OutputPath == "" {
		return a.store.SaveDocument(doc)
	}
	return a.writeOutput(func(w io.Writer) error { return publish.Export(w, doc) })
}

// DownloadImages fetches the selected images for each day into the data
// directory and points the selections at the local copies. An empty days
// list means every day with selections.
func (a *App) DownloadImages(ctx context.Context, days []int) (map[int]images.BatchReport, error) {
	all, err := a.store.AllSelections()
	if err != nil {
		return nil, err
	}
	dir, err := a.store.ImagesDir()
	if err != nil {
		return nil, err
	}
	d := &images.Downloader{
		Dir:          dir,
		HTTPClient:   a.http,
		UserAgent:    a.cfg.UserAgent,
		Limiter:      images.NewThrottle(a.cfg.Throttle),
		PublicPrefix: "images",
	}
	if len(days) == 0 {
		for day := range all {
			days = append(days, day)
		}
		sort.Ints(days)
	}
	reports := map[int]images.BatchReport{}
	for _, day := range days {
		sels := all[day]
		var pending []trip.Image
		for _, s := range sels {
			for _, im := range s.Images {
				if !isLocal(im) {
					pending = append(pending, im)
				}
			}
		}
		pending = trip.DedupeImages(pending)
		if len(pending) == 0 {
			continue
		}
		saved, rep := d.DownloadDay(ctx, day, pending)
		reports[day] = rep
		log.Info().Int("day", day).Int("succeeded", rep.Succeeded).Int("failed", rep.Failed).Msg("image batch done")
		if len(saved) == 0 {
			continue
		}
		byKey := make(map[string]trip.Image, len(saved))
		for _, im := range saved {
			byKey[im.URL] = im
		}
		for i := range sels {
			for j, im := range sels[i].Images {
				if local, ok := byKey[im.Key()]; ok {
					sels[i].Images[j] = local
				}
			}
		}
		if err := a.store.SaveSelections(day, sels); err != nil {
			return reports, fmt.Errorf("save selections day %d: %w", day, err)
		}
	}
	return reports, nil
}

func isLocal(im trip.Image) bool {
	return strings.HasPrefix(im.Src, "images/")
}

// Research asks for points of interest for the given days (all days when
// empty) and saves them as side-files.
func (a *App) Research(ctx context.Context, days []int) (research.Report, error) {
	c, err := a.llmCompleter(ctx)
	if err != nil {
		return research.Report{}, err
	}
	doc, err := a.store.LoadDocument()
	if err != nil {
		return research.Report{}, err
	}
	r := &research.Researcher{
		Completer: c,
		Model:     a.cfg.LLMModel,
		Store:     a.store,
		Limiter:   images.NewThrottle(a.cfg.Throttle),
		Images:    a.Searcher(),
	}
	return r.Run(ctx, selectDays(doc.Days, days)), nil
}

func selectDays(all []trip.Day, want []int) []trip.Day {
	if len(want) == 0 {
		return all
	}
	keep := map[int]bool{}
	for _, d := range want {
		keep[d] = true
	}
	var out []trip.Day
	for _, d := range all {
		if keep[d.Day] {
			out = append(out, d)
		}
	}
	return out
}

// SyncPOIs merges POI side-files into the stored document.
func (a *App) SyncPOIs(_ context.Context) (int, error) {
	doc, err := a.store.LoadDocument()
	if err != nil {
		return 0, err
	}
	doc, n, err := research.SyncPOIs(doc, a.store)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, a.store.SaveDocument(doc)
}

// Export writes the stored document as json, md or pdf.
func (a *App) Export(_ context.Context) error {
	doc, err := a.store.LoadDocument()
	if err != nil {
		return err
	}
	switch strings.ToLower(a.cfg.Format) {
	case "", "json":
		return a.writeOutput(func(w io.Writer) error { return publish.Export(w, doc) })
	case "md", "markdown":
		return a.writeOutput(func(w io.Writer) error {
			_, err := io.WriteString(w, publish.RenderMarkdown(doc))
			return err
		})
	case "pdf":
		if a.cfg.OutputPath == "" || a.cfg.OutputPath == "-" {
			return errors.New("pdf export needs an output path")
		}
		return publish.RenderPDF(doc, a.cfg.OutputPath)
	default:
		return fmt.Errorf("unknown export format %q", a.cfg.Format)
	}
}

// Server builds the HTTP API over the configured collaborators.
func (a *App) Server(ctx context.Context) *server.Server {
	s := &server.Server{
		Parser:         extract.HeuristicExtractor{},
		Store:          a.store,
		Images:         a.Searcher(),
		AllowedOrigins: a.cfg.AllowedOrigins,
	}
	if ext, ok := a.Extractors(ctx)["llm"]; ok {
		s.Structurer = ext
	}
	if ti, err := a.tripInfoExtractor(ctx); err == nil {
		s.TripInfo = ti
	}
	return s
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	return a.Server(ctx).ListenAndServe(ctx, a.cfg.ListenAddr)
}

func (a *App) readInput() (string, error) {
	var (
		b   []byte
		err error
	)
	if a.cfg.InputPath == "" || a.cfg.InputPath == "-" {
		b, err = io.ReadAll(a.Stdin)
	} else {
		b, err = os.ReadFile(a.cfg.InputPath)
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", ErrNoInput
	}
	return string(b), nil
}

func (a *App) writeOutput(write func(io.Writer) error) error {
	if a.cfg.OutputPath == "" || a.cfg.OutputPath == "-" {
		return write(a.Stdout)
	}
	f, err := os.Create(a.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
