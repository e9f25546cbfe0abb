// Package server exposes the structuring pipeline and the data directory to
// the itinerary editor over a small JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/itinerary/internal/extract"
	"github.com/hyperifyio/itinerary/internal/images"
	"github.com/hyperifyio/itinerary/internal/store"
	"github.com/hyperifyio/itinerary/internal/structure"
	"github.com/hyperifyio/itinerary/internal/trip"
)

// TripInfoExtractor pulls practical trip details out of pasted text.
type TripInfoExtractor interface {
	Extract(ctx context.Context, raw string) (trip.TripInfo, error)
}

// Server holds the collaborators behind the endpoints. Nil collaborators
// make their endpoints answer 503.
type Server struct {
	Structurer extract.Extractor
	Parser     extract.Extractor
	TripInfo   TripInfoExtractor
	Store      *store.Store
	Images     images.Searcher
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

type rawTextRequest struct {
	RawText string `json:"rawText"`
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.POST("/structure", s.structureHandler)
	api.POST("/parse", s.parseHandler)
	api.POST("/trip-info", s.tripInfoHandler)
	api.GET("/itinerary", s.getItineraryHandler)
	api.PUT("/itinerary", s.putItineraryHandler)
	api.GET("/selections/:day", s.getSelectionsHandler)
	api.PUT("/selections/:day", s.putSelectionsHandler)
	api.GET("/pois/:day", s.getPOIsHandler)
	api.POST("/images/search", s.imageSearchHandler)
	return r
}

// Handler wraps Router with CORS for the browser-based editor.
func (s *Server) Handler() http.Handler {
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func bindRawText(c *gin.Context) (string, bool) {
	var req rawTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return req.RawText, true
}

// respondExtractError maps pipeline failures onto status codes: missing input
// is the caller's fault, an unreadable model answer is 422 with the raw text,
// and anything else is an upstream failure.
func respondExtractError(c *gin.Context, err error) {
	var ue *structure.UnparseableError
	switch {
	case errors.Is(err, extract.ErrMissingInput):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &ue):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "raw": ue.Raw})
	default:
		log.Warn().Err(err).Str("path", c.FullPath()).Msg("extraction failed")
		respondError(c, http.StatusBadGateway, err.Error())
	}
}

func (s *Server) structureHandler(c *gin.Context) {
	if s.Structurer == nil {
		respondError(c, http.StatusServiceUnavailable, "structuring is not configured")
		return
	}
	raw, ok := bindRawText(c)
	if !ok {
		return
	}
	days, err := s.Structurer.Extract(c.Request.Context(), raw)
	if err != nil {
		respondExtractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": nonNilDays(days)})
}

func (s *Server) parseHandler(c *gin.Context) {
	if s.Parser == nil {
		respondError(c, http.StatusServiceUnavailable, "parser is not configured")
		return
	}
	raw, ok := bindRawText(c)
	if !ok {
		return
	}
	days, err := s.Parser.Extract(c.Request.Context(), raw)
	if errors.Is(err, extract.ErrNoDays) {
		err = nil
	}
	if err != nil {
		respondExtractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": nonNilDays(days)})
}

func (s *Server) tripInfoHandler(c *gin.Context) {
	if s.TripInfo == nil {
		respondError(c, http.StatusServiceUnavailable, "trip info extraction is not configured")
		return
	}
	raw, ok := bindRawText(c)
	if !ok {
		return
	}
	info, err := s.TripInfo.Extract(c.Request.Context(), raw)
	if err != nil {
		respondExtractError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tripInfo": info})
}

func (s *Server) getItineraryHandler(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	doc, err := s.Store.LoadDocument()
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "no itinerary saved yet")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) putItineraryHandler(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var doc trip.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		respondError(c, http.StatusBadRequest, "invalid itinerary document")
		return
	}
	if err := s.Store.SaveDocument(doc); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) getSelectionsHandler(c *gin.Context) {
	day, ok := s.dayParam(c)
	if !ok {
		return
	}
	sel, err := s.Store.LoadSelections(day)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if sel == nil {
		sel = []trip.Selection{}
	}
	c.JSON(http.StatusOK, trip.SelectionsFile{Day: day, Selections: sel})
}

func (s *Server) putSelectionsHandler(c *gin.Context) {
	day, ok := s.dayParam(c)
	if !ok {
		return
	}
	var body trip.SelectionsFile
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid selections")
		return
	}
	if err := s.Store.SaveSelections(day, body.Selections); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getPOIsHandler(c *gin.Context) {
	day, ok := s.dayParam(c)
	if !ok {
		return
	}
	pois, err := s.Store.LoadPOIs(day)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if pois == nil {
		pois = []trip.POI{}
	}
	c.JSON(http.StatusOK, trip.POIFile{Day: day, POIs: pois})
}

func (s *Server) imageSearchHandler(c *gin.Context) {
	if s.Images == nil {
		respondError(c, http.StatusServiceUnavailable, "image search is not configured")
		return
	}
	var q images.Query
	if err := c.ShouldBindJSON(&q); err != nil || q.Text == "" {
		respondError(c, http.StatusBadRequest, "query is required")
		return
	}
	imgs, err := s.Images.Search(c.Request.Context(), q)
	if err != nil {
		var ue *images.UpstreamError
		if errors.As(err, &ue) {
			msg := ue.Message
			if strings.TrimSpace(msg) == "" {
				msg = ue.Error()
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": msg, "status": ue.Status})
			return
		}
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": imgs})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.Store == nil {
		respondError(c, http.StatusServiceUnavailable, "data directory is not configured")
		return false
	}
	return true
}

func (s *Server) dayParam(c *gin.Context) (int, bool) {
	if !s.requireStore(c) {
		return 0, false
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || day < 1 {
		respondError(c, http.StatusBadRequest, "day must be a positive integer")
		return 0, false
	}
	return day, true
}

func nonNilDays(days []trip.Day) []trip.Day {
	if days == nil {
		return []trip.Day{}
	}
	return days
}
