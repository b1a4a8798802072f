// Package httpx exposes the dashboard API over HTTP.
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"funneldash/internal/ingest"
	"funneldash/internal/logging"
	"funneldash/internal/metrics"
	"funneldash/internal/store"
)

// maxUploadBytes caps the size of one upload request body.
const maxUploadBytes = 64 << 20

// Server bundles the dependencies every handler needs.
type Server struct {
	Store   *store.FunnelStore
	Queue   *ingest.Queue
	Uploads *ingest.UploadLog
	Runner  *ingest.Runner
	DataDir string
}

// NewRouter builds the API router.
func NewRouter(s *Server) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(requestMetrics)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Post("/upload", s.handleUpload)
	mux.Post("/upload/inspect", s.handleInspect)
	mux.Post("/upload/extract", s.handleExtract)
	mux.Get("/uploads", s.handleUploads)

	mux.Post("/ingest/run", s.handleIngestRun)
	mux.Get("/ingest/jobs", s.handleJobList)
	mux.Get("/ingest/jobs/{id}", s.handleJobGet)

	mux.Get("/funnels", s.handleFunnels)
	mux.Get("/funnels/{creatorId}", s.handleFunnelByCreator)

	mux.Get("/mode", s.handleModeGet)
	mux.Post("/mode", s.handleModeSet)
	mux.Post("/reset", s.handleReset)

	return mux
}

// requestMetrics counts requests per route pattern and status code.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, fmt.Sprintf("%d", ww.Status())).Inc()
	})
}

// handleUpload stores the posted files under the data directory and
// enqueues one ingest job covering all of them.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing multipart form: %v", err))
		return
	}

	uploadDir := filepath.Join(s.DataDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("creating upload directory: %v", err))
		return
	}

	var stored []string
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("opening uploaded file %q: %v", fh.Filename, err))
				return
			}
			data, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("reading uploaded file %q: %v", fh.Filename, err))
				return
			}
			name := sanitizeFilename(fh.Filename)
			dst := filepath.Join(uploadDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), name))
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("storing uploaded file %q: %v", name, err))
				return
			}
			stored = append(stored, dst)
		}
	}

	if len(stored) == 0 {
		writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	job, err := s.Queue.Enqueue(stored)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]any{"job": job})
}

// handleInspect checks submitted file headers without ingesting anything.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Files []ingest.FileColumns `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body.Files = nil
	}
	writeJSON(w, map[string]any{"suggestions": ingest.Inspect(body.Files)})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"uploads": s.Uploads.List()})
}

// handleIngestRun runs the next pending job synchronously and returns its
// final state.
func (s *Server) handleIngestRun(w http.ResponseWriter, r *http.Request) {
	job, found, err := s.Runner.RunNext(r.Context())
	if !found {
		writeJSON(w, map[string]any{"message": "No pending jobs."})
		return
	}
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]any{"job": job})
		return
	}
	writeJSON(w, map[string]any{"job": job})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"jobs": s.Queue.List()})
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.Queue.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job '%s' not found", id))
		return
	}
	writeJSON(w, map[string]any{"job": job})
}

func (s *Server) handleFunnels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"mode":    s.Store.Mode(),
		"funnels": s.Store.Active(),
	})
}

func (s *Server) handleFunnelByCreator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "creatorId")
	f, ok := s.Store.ByCreator(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no funnel for creator '%s'", id))
		return
	}
	writeJSON(w, map[string]any{"funnel": f})
}

func (s *Server) handleModeGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"mode": s.Store.Mode(), "hasReal": s.Store.HasReal()})
}

// handleModeSet switches the store mode. Switching to real without real
// data is rejected.
func (s *Server) handleModeSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body.Mode = ""
	}
	requested := store.ModeDemo
	if body.Mode == store.ModeReal {
		requested = store.ModeReal
	}

	if requested == store.ModeReal && !s.Store.HasReal() {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{
			"mode":    s.Store.Mode(),
			"hasReal": s.Store.HasReal(),
			"error":   "No real funnels available yet. Upload data first.",
		})
		return
	}

	if err := s.Store.SetMode(requested); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"mode": s.Store.Mode(), "hasReal": s.Store.HasReal()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.Logf(logging.Info, "Reset requested over API")
	writeJSON(w, map[string]any{"mode": s.Store.Mode(), "hasReal": s.Store.HasReal()})
}

// sanitizeFilename strips path components and characters that could
// escape the upload directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	return name
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
