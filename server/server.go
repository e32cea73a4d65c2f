// Package server implements the HTTP surface over the core packages
// (images, jobs, artifacts, pipeline), using gorilla/mux for routing and
// a graceful-shutdown loop, grounded on runtime/runtime.go. Every error
// response carries {detail: string}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mati2251/res/apperr"
	"github.com/mati2251/res/artifacts"
	"github.com/mati2251/res/images"
	"github.com/mati2251/res/jobs"
	"github.com/mati2251/res/pipeline"
	"github.com/mati2251/res/runnerx"
	"github.com/mati2251/res/store"
)

// acceptedMediaTypes lists what this server's Accept middleware allows,
// grounded on the Python original's routers/middleware.py, which rejects
// any Accept header that matches none of these with a 406.
var acceptedMediaTypes = []string{"*/*", "application/json", "text/plain", "application/octet-stream"}

// Server wires the core packages to the gorilla/mux router.
type Server struct {
	fs        *store.Store
	images    *images.Store
	jobs      *jobs.Repository
	runnerx   *runnerx.Runner
	artifacts *artifacts.Handler
	pipeline  *pipeline.Orchestrator
	logger    *log.Logger

	httpServer *http.Server
}

// New builds a Server listening at addr over the given core components.
func New(addr string, fs *store.Store, imgs *images.Store, repo *jobs.Repository, runner *runnerx.Runner, a *artifacts.Handler, p *pipeline.Orchestrator) *Server {
	s := &Server{
		fs:        fs,
		images:    imgs,
		jobs:      repo,
		runnerx:   runner,
		artifacts: a,
		pipeline:  p,
		logger:    log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
	}

	router := mux.NewRouter()
	s.routes(router)
	handler := s.loggingMiddleware(s.acceptMiddleware(router))
	handler = recoverMiddleware(s.logger, handler)

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   5 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/images/{name}/raw", s.putImage).Methods(http.MethodPut)
	r.HandleFunc("/images/{name}/raw", s.getImageRaw).Methods(http.MethodGet)
	r.HandleFunc("/images/{name}/properties", s.getImageProperties).Methods(http.MethodGet)
	r.HandleFunc("/images/{name}/", s.redirectImageProperties).Methods(http.MethodGet)
	r.HandleFunc("/images/{name}/", s.deleteImage).Methods(http.MethodDelete)
	r.HandleFunc("/images/", s.listImages).Methods(http.MethodGet)

	r.HandleFunc("/jobs/", s.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{id}/properties", s.putJobProperties).Methods(http.MethodPut)
	r.HandleFunc("/jobs/{id}/", s.getJob).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/script/", s.putJobScript).Methods(http.MethodPut)
	r.HandleFunc("/jobs/{id}/script/", s.getJobScript).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/state/", s.getJobState).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/state/", s.putJobState).Methods(http.MethodPut)
	r.HandleFunc("/jobs/{id}/log/", s.getJobLog).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/artifacts/", s.getJobArtifacts).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{id}/artifacts/data", s.getJobArtifactsData).Methods(http.MethodGet)
	r.HandleFunc("/jobs/", s.listJobs).Methods(http.MethodGet)

	r.HandleFunc("/pipelines/", s.createPipeline).Methods(http.MethodPost)
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts
// it down gracefully. Grounded on runtime.run's signal/cancel +
// httpServer.Shutdown shape.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// --- middleware ---

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// acceptMiddleware validates the Accept header against acceptedMediaTypes,
// rejecting with 406 otherwise, the same check the Python original's
// routers/middleware.py performs ahead of every route: a supported type
// is matched as a substring of the header value (`media in accept`), not
// by exact equality, so a browser's `Accept:
// text/html,application/json;q=0.9,*/*` is accepted because it contains
// "*/*".
func (s *Server) acceptMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept")
		if accept == "" {
			next.ServeHTTP(w, r)
			return
		}
		for _, mt := range acceptedMediaTypes {
			if strings.Contains(accept, mt) {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusNotAcceptable, fmt.Sprintf("unsupported Accept header: %s", accept))
	})
}

// --- response shaping ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// detail is the {detail: string} error body shape.
type detail struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, detail{Detail: message})
}

// statusFor maps an apperr.Kind to an HTTP status code.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPreconditionRequired:
		return http.StatusPreconditionRequired
	case apperr.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeError(w, statusFor(kind), err.Error())
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindInvalid, "invalid job id %q", raw)
	}
	return id, nil
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func (s *Server) readJobLog(id int64) ([]byte, error) {
	b, err := os.ReadFile(s.fs.JobLog(id))
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.KindNotFound, "job %d has no log", id)
	}
	return b, err
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// pagination parses skip/limit query parameters, defaulting limit to 50
// when absent; skip must be >= 0 and limit must be > 0.
func pagination(r *http.Request) (skip, limit int, err error) {
	skip = 0
	limit = 50
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		skip, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, apperr.New(apperr.KindInvalid, "invalid skip %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, apperr.New(apperr.KindInvalid, "invalid limit %q", v)
		}
	}
	return skip, limit, nil
}
