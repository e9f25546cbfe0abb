package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/itinerary/internal/app"
	"github.com/hyperifyio/itinerary/internal/images"
)

const usage = `usage: itinerary <command> [flags]

commands:
  parse       split pasted text into days with the heuristic parser
  structure   extract days with the configured strategy (heuristic or llm)
  trip-info   extract practical trip details as JSON
  migrate     convert a CMS export, or refresh the stored itinerary
  images      download selected images and build thumbnails
  research    gather points of interest per day
  sync-pois   merge researched points of interest into the itinerary
  export      write the stored itinerary as json, md or pdf
  serve       run the HTTP API
  version     print build information
`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	log.Error().Err(err).Msg("command failed")
	// Missing input is a usage problem rather than a runtime failure.
	if errors.Is(err, app.ErrNoInput) || errors.Is(err, errUsage) {
		os.Exit(2)
	}
	os.Exit(1)
}

var errUsage = errors.New("usage")

type options struct {
	cfg        app.Config
	configPath string
	envFiles   string
	origins    string
	days       string
}

func newFlagSet(cmd string, o *options, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	c := &o.cfg
	fs.StringVar(&o.configPath, "config", os.Getenv("ITINERARY_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&o.envFiles, "env", ".env", "Comma-separated dotenv files loaded before reading the environment")
	fs.StringVar(&c.InputPath, "input", "", "Input file; '-' or empty reads stdin")
	fs.StringVar(&c.OutputPath, "output", "", "Output file; '-' writes stdout")
	fs.StringVar(&c.Format, "format", "json", "Export format: json, md or pdf")
	fs.StringVar(&c.Strategy, "strategy", "", "Extraction strategy: heuristic or llm")
	fs.StringVar(&c.DataDir, "data", "", "Data directory holding the itinerary and side-files")
	fs.BoolVar(&c.StrictPerms, "strictPerms", false, "Write data with 0700 dirs and 0600 files")
	fs.StringVar(&c.LLMProvider, "llm.provider", "", "LLM provider: openai or gemini")
	fs.StringVar(&c.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&c.LLMModel, "llm.model", "", "Model name")
	fs.StringVar(&c.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.StringVar(&c.GeminiAPIKey, "gemini.key", "", "Gemini API key")
	fs.StringVar(&c.StructurePrompt, "structure.prompt", "", "Override the structuring system prompt (inline)")
	fs.StringVar(&c.StructurePromptFile, "structure.promptFile", "", "File containing the structuring system prompt")
	fs.StringVar(&c.ImageSearchURL, "images.searchURL", "", "Base URL of the image search service")
	fs.StringVar(&c.ImageSearchFile, "images.searchFile", "", "JSON file used as an offline image search")
	fs.StringVar(&c.UserAgent, "ua", "", "User-Agent for outbound requests")
	fs.DurationVar(&c.Throttle, "throttle", 0, "Delay between downloads and research calls; negative disables")
	fs.StringVar(&c.ListenAddr, "listen", "", "HTTP listen address for serve")
	fs.StringVar(&o.origins, "origins", "", "Comma-separated CORS allowed origins")
	fs.StringVar(&c.CacheDir, "cache.dir", "", "LLM response cache directory")
	fs.DurationVar(&c.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this; 0 disables")
	fs.BoolVar(&c.CacheClear, "cache.clear", false, "Clear the cache before running")
	fs.BoolVar(&c.LLMCacheOnly, "llm.cacheOnly", false, "Serve LLM calls from cache only")
	fs.StringVar(&o.days, "days", "", "Comma-separated day numbers for images and research; empty means all")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose logging")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fmt.Fprintln(out, "\nflags:")
		fs.PrintDefaults()
	}
	return fs
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}
	cmd := args[0]
	switch cmd {
	case "version":
		_, err := fmt.Fprintln(stdout, "itinerary", app.VersionString())
		return err
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	if strings.HasPrefix(cmd, "-") {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("%w: flags go after the command", errUsage)
	}

	var o options
	fs := newFlagSet(cmd, &o, os.Stderr)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if o.cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if err := app.LoadEnvFiles(splitList(o.envFiles)...); err != nil {
		return err
	}
	o.cfg.AllowedOrigins = splitList(o.origins)
	days, err := parseDays(o.days)
	if err != nil {
		return err
	}

	switch cmd {
	case "parse":
		o.cfg.Strategy = "heuristic"
		if o.cfg.OutputPath == "" {
			o.cfg.OutputPath = "-"
		}
	case "structure", "trip-info", "migrate", "images", "research", "sync-pois", "export", "serve":
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	cfg, err := app.Resolve(o.cfg, o.configPath)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().Str("version", app.VersionString()).Str("command", cmd).Msg("starting")

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	a.Stdin = stdin
	a.Stdout = stdout

	switch cmd {
	case "parse", "structure":
		return a.Structure(ctx)
	case "trip-info":
		return a.TripInfo(ctx)
	case "migrate":
		return a.Migrate(ctx)
	case "images":
		reports, err := a.DownloadImages(ctx, days)
		if err != nil {
			return err
		}
		for _, day := range sortedDays(reports) {
			r := reports[day]
			ev := log.Info()
			if r.Failed > 0 {
				ev = log.Warn().Strs("errors", r.Errors)
			}
			ev.Int("day", day).Int("succeeded", r.Succeeded).Int("failed", r.Failed).Msg("images downloaded")
		}
		return nil
	case "research":
		rep, err := a.Research(ctx, days)
		if err != nil {
			return err
		}
		ev := log.Info()
		if rep.Failed > 0 {
			ev = log.Warn().Strs("errors", rep.Errors)
		}
		ev.Int("succeeded", rep.Succeeded).Int("failed", rep.Failed).Msg("research finished")
		return nil
	case "sync-pois":
		n, err := a.SyncPOIs(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("days", n).Msg("points of interest merged")
		return nil
	case "export":
		return a.Export(ctx)
	default: // serve
		log.Info().Str("addr", cfg.ListenAddr).Str("version", app.VersionString()).Msg("serving")
		return a.Serve(ctx)
	}
}

func sortedDays(reports map[int]images.BatchReport) []int {
	days := make([]int, 0, len(reports))
	for d := range reports {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDays(s string) ([]int, error) {
	var days []int
	for _, p := range splitList(s) {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid day %q", errUsage, p)
		}
		days = append(days, n)
	}
	return days, nil
}
