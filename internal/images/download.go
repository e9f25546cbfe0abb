package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hyperifyio/itinerary/internal/trip"
)

const (
	// DefaultThumbWidth is the width thumbnails are scaled down to.
	DefaultThumbWidth = 300
	thumbsDir         = "thumbs"
	defaultMaxBytes   = 20 << 20
)

// BatchReport tallies a download batch. Failures do not stop the batch.
type BatchReport struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

func (r *BatchReport) fail(im trip.Image, err error) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", im.Key(), err))
}

// Downloader fetches images one at a time into Dir.
type Downloader struct {
	Dir        string
	HTTPClient *http.Client
	UserAgent  string
	// Limiter spaces out requests. Nil means no throttle.
	Limiter *rate.Limiter
	// ThumbWidth of zero uses DefaultThumbWidth; negative disables thumbnails.
	ThumbWidth int
	// MaxBytes caps a single download. Zero uses 20 MiB.
	MaxBytes int64
	// PublicPrefix is prepended to saved file names in the returned Src and
	// Thumb fields, e.g. "images".
	PublicPrefix string
}

// NewThrottle returns a limiter allowing one request per interval.
func NewThrottle(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// DownloadDay saves every image for a day and returns the images that were
// stored, with Src and Thumb pointing at the local copies. The batch keeps
// going past failed items.
func (d *Downloader) DownloadDay(ctx context.Context, day int, imgs []trip.Image) ([]trip.Image, BatchReport) {
	var report BatchReport
	var saved []trip.Image
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		for _, im := range imgs {
			report.fail(im, err)
		}
		return saved, report
	}
	seq, err := NextSequence(d.Dir, day)
	if err != nil {
		log.Warn().Err(err).Str("dir", d.Dir).Msg("scan images dir")
		seq = 1
	}
	for i, im := range imgs {
		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				report.fail(im, err)
				continue
			}
		}
		out, err := d.downloadOne(ctx, day, seq, im)
		if err != nil {
			log.Warn().Err(err).Int("day", day).Int("item", i+1).Str("url", im.Key()).Msg("image download failed")
			report.fail(im, err)
			continue
		}
		seq++
		report.Succeeded++
		saved = append(saved, out)
		log.Info().Int("day", day).Int("item", i+1).Int("of", len(imgs)).Str("file", out.Src).Msg("image saved")
	}
	return saved, report
}

func (d *Downloader) downloadOne(ctx context.Context, day, seq int, im trip.Image) (trip.Image, error) {
	src := im.Key()
	if src == "" {
		return im, fmt.Errorf("image has no url")
	}
	body, contentType, err := d.fetch(ctx, src)
	if err != nil {
		return im, err
	}
	name := fmt.Sprintf("day-%d-image-%d.%s", day, seq, extensionFor(contentType, src))
	if err := os.WriteFile(filepath.Join(d.Dir, name), body, 0o644); err != nil {
		return im, fmt.Errorf("write %s: %w", name, err)
	}
	out := im
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.URL == "" {
		out.URL = src
	}
	if out.Full == "" {
		out.Full = src
	}
	out.Src = d.publicPath(name)
	if thumb, err := d.writeThumb(name, body); err != nil {
		log.Debug().Err(err).Str("file", name).Msg("thumbnail skipped")
	} else if thumb != "" {
		out.Thumb = d.publicPath(thumb)
	}
	return out, nil
}

func (d *Downloader) publicPath(name string) string {
	if d.PublicPrefix == "" {
		return filepath.ToSlash(name)
	}
	return path.Join(d.PublicPrefix, filepath.ToSlash(name))
}

// fetch issues a single GET. There are no retries; a failed item is left for
// the next run.
func (d *Downloader) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if s := strings.ToLower(req.URL.Scheme); s != "http" && s != "https" {
		return nil, "", fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	hc := d.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "image/") {
		return nil, "", fmt.Errorf("unsupported content type: %s", ct)
	}
	max := d.MaxBytes
	if max <= 0 {
		max = defaultMaxBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > max {
		return nil, "", fmt.Errorf("image larger than %d bytes", max)
	}
	return b, ct, nil
}

// writeThumb scales the image down to ThumbWidth and writes it under thumbs/.
// Formats imaging cannot decode are skipped with an error.
func (d *Downloader) writeThumb(name string, body []byte) (string, error) {
	width := d.ThumbWidth
	if width < 0 {
		return "", nil
	}
	if width == 0 {
		width = DefaultThumbWidth
	}
	img, err := imaging.Decode(bytes.NewReader(body), imaging.AutoOrientation(true))
	if err != nil {
		return "", err
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	if err := os.MkdirAll(filepath.Join(d.Dir, thumbsDir), 0o755); err != nil {
		return "", err
	}
	rel := filepath.Join(thumbsDir, name)
	if err := imaging.Save(img, filepath.Join(d.Dir, rel)); err != nil {
		return "", err
	}
	return rel, nil
}

var imageNameRe = regexp.MustCompile(`^day-(\d+)-image-(\d+)\.[A-Za-z0-9]+$`)

// NextSequence returns one past the highest image sequence already stored for
// day in dir, or 1 when there is none.
func NextSequence(dir string, day int) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 1, nil
	}
	if err != nil {
		return 1, err
	}
	max := 0
	for _, e := range entries {
		m := imageNameRe.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n != day {
			continue
		}
		if n, _ := strconv.Atoi(m[2]); n > max {
			max = n
		}
	}
	return max + 1, nil
}

func extensionFor(contentType, src string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	case "image/tiff":
		return "tif"
	}
	if u, err := url.Parse(src); err == nil {
		if ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), "."); ext != "" && len(ext) <= 4 {
			return ext
		}
	}
	return "jpg"
}
