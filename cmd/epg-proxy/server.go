package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wumian8998/epg-proxy-newl/pkg/logging"
	"github.com/wumian8998/epg-proxy-newl/pkg/lookup"
	"github.com/wumian8998/epg-proxy-newl/pkg/metrics"
)

const readyTimeout = 2 * time.Second

// corsHeaders are set on every response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, HEAD, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

// Server wires the HTTP surface to the lookup service.
type Server struct {
	router chi.Router
	svc    *lookup.Service
	logger zerolog.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc *lookup.Service, logger zerolog.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logging.Component(logger, "http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(corsMiddleware)
	r.Use(middleware.GetHead)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/", s.usage)
	r.Get("/health", healthHandler)
	r.Get("/ready", s.ready)
	r.Get("/status", s.status)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/epg", func(r chi.Router) {
		r.Get("/diyp", s.query)
		r.Get("/epginfo", s.query)
		r.Get("/epg.xml", s.download(lookup.FormatXML))
		r.Get("/epg.xml.gz", s.download(lookup.FormatGzip))
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ready(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "persistent cache unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	req := lookup.ParseRequest(r.URL.Query(), selfURL(r))

	resp, err := s.svc.Query(r.Context(), req)
	if errors.Is(err, lookup.ErrMissingParams) {
		writeJSON(w, http.StatusBadRequest, lookup.ErrorPayload{
			Code:    http.StatusBadRequest,
			Message: lookup.MessageMissingParams,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if resp.Found() {
		w.Header().Set("Cache-Control", s.cacheControl())
	}
	writeJSON(w, resp.StatusCode, resp.Payload)
}

func (s *Server) download(format lookup.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dl, err := s.svc.Download(r.Context(), format)
		if err != nil {
			s.logger.Error().Err(err).Str("format", string(format)).Msg("Download failed")
			http.Error(w, "Download Error: "+err.Error(), http.StatusBadGateway)
			return
		}
		defer dl.Body.Close()

		w.Header().Set("Content-Type", dl.ContentType)
		w.Header().Set("Cache-Control", s.cacheControl())
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, dl.Body); err != nil {
			s.logger.Warn().Err(err).Str("format", string(format)).Msg("Download interrupted")
		}
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Statuses(r.Context()))
}

// usageDocument is served at the root path.
type usageDocument struct {
	Service   string            `json:"service"`
	Endpoints map[string]string `json:"endpoints"`
	Params    map[string]string `json:"params"`
	Status    lookup.Snapshot   `json:"status"`
}

func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(selfURL(r), "/")
	writeJSON(w, http.StatusOK, usageDocument{
		Service: "epg-proxy",
		Endpoints: map[string]string{
			"diyp":    base + "/epg/diyp?ch={channel}&date={YYYY-MM-DD}",
			"epginfo": base + "/epg/epginfo?ch={channel}&date={YYYY-MM-DD}",
			"xml":     base + "/epg/epg.xml",
			"gz":      base + "/epg/epg.xml.gz",
			"status":  base + "/status",
		},
		Params: map[string]string{
			"ch":   "channel name or id (aliases: channel, id)",
			"date": "YYYY-MM-DD",
		},
		Status: s.svc.Statuses(r.Context()),
	})
}

func (s *Server) cacheControl() string {
	return "public, max-age=" + strconv.Itoa(int(s.svc.TTL().Seconds()))
}

// selfURL is the request origin plus its path without trailing slashes.
func selfURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	path := strings.TrimRight(r.URL.Path, "/")
	return scheme + "://" + r.Host + path
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// corsMiddleware sets CORS headers and answers preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		event := s.logger.Debug()
		if ww.status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error().
					Str("request_id", requestID(r.Context())).
					Interface("panic", rec).
					Msg("Panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush lets streamed downloads reach the client as they are produced.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		log.Error().Err(err).Msg("write JSON failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, lookup.ErrorPayload{Code: status, Message: msg})
}
