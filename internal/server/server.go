package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cwbudde/boxblur/internal/blur"
	"github.com/cwbudde/boxblur/internal/rawio"
	"github.com/cwbudde/boxblur/internal/store"
	"github.com/gorilla/mux"
)

const apiPrefix = "/api/v1"

// Server represents the HTTP server
type Server struct {
	jobManager  *JobManager
	reportStore store.Store
	addr        string
	server      *http.Server

	// ctx is cancelled on Shutdown so running jobs stop at the next stage.
	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// NewServer creates a new HTTP server. reportStore may be nil, in which case
// job results live only in memory.
func NewServer(addr string, reportStore store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager:  NewJobManager(),
		reportStore: reportStore,
		addr:        addr,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Handler builds the routed and middleware-wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Routes live on the root router: a method mismatch on a subrouter
	// reports 404 instead of 405.
	r.HandleFunc(apiPrefix+"/jobs", s.handleCreateJob).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/jobs/{id}", s.handleGetJobStatus).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/jobs/{id}/status", s.handleGetJobStatus).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/jobs/{id}/result.bin", s.handleGetResultRaw).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/jobs/{id}/result.png", s.handleGetResultImage).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/jobs/{id}/stream", s.handleJobStream).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/info", s.handleInfo).Methods(http.MethodGet)

	return s.loggingMiddleware(s.corsMiddleware(r))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr, "backend", blur.ActiveBackend.String())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and waits for running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for jobs", "running", len(s.jobManager.GetRunningJobs()))
	}
	return err
}

// startJob runs a job in the background
func (s *Server) startJob(jobID string) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		runJob(s.ctx, s.jobManager, s.reportStore, jobID)
	}()
}

// applyDefaults fills in the generated-input defaults and validates config
func applyDefaults(config *JobConfig) error {
	if config.InputPath == "" {
		if config.Width == 0 {
			config.Width = rawio.DefaultWidth
		}
		if config.Height == 0 {
			config.Height = rawio.DefaultHeight
		}
		if config.Seed == 0 {
			config.Seed = rawio.DefaultSeed
		}
	} else if rawio.IsRaw(config.InputPath) && (config.Width <= 0 || config.Height <= 0) {
		return fmt.Errorf("width and height are required for raw input %s", config.InputPath)
	}

	if config.Width < 0 || config.Height < 0 {
		return fmt.Errorf("dimensions cannot be negative")
	}
	if config.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if config.Kernel == "" {
		config.Kernel = blur.KernelVector.String()
	}
	kernel, err := blur.ParseKernel(config.Kernel)
	if err != nil {
		return err
	}
	config.Kernel = kernel.String()
	return nil
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	if err := applyDefaults(&config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.jobManager.CreateJob(config)
	s.jobManager.broadcaster.Broadcast(eventFromJob(job))
	s.startJob(job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/{id} and /api/v1/jobs/{id}/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(mux.Vars(r)["id"])
	if !exists {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	var wall time.Duration
	if job.EndTime != nil {
		wall = job.EndTime.Sub(job.StartTime)
	} else {
		wall = time.Since(job.StartTime)
	}

	var throughput float64
	if job.ElapsedNanos > 0 {
		pixels := float64(job.OutputWidth * job.OutputHeight)
		throughput = pixels / time.Duration(job.ElapsedNanos).Seconds()
	}

	writeJSON(w, http.StatusOK, struct {
		*Job
		Wall            float64 `json:"wall"`
		PixelsPerSecond float64 `json:"pixelsPerSecond"`
	}{job, wall.Seconds(), throughput})
}

// completedJob looks up a job and checks it has a result, writing an error
// response otherwise
func (s *Server) completedJob(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	job, exists := s.jobManager.GetJob(mux.Vars(r)["id"])
	if !exists {
		writeError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if job.State != StateCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("Job is %s", job.State))
		return nil, false
	}
	return job, true
}

// handleGetResultRaw handles GET /api/v1/jobs/{id}/result.bin
func (s *Server) handleGetResultRaw(w http.ResponseWriter, r *http.Request) {
	job, ok := s.completedJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(job.Output)))
	w.Header().Set("X-Image-Width", strconv.Itoa(job.OutputWidth))
	w.Header().Set("X-Image-Height", strconv.Itoa(job.OutputHeight))
	w.Header().Set("X-Checksum", strconv.FormatUint(job.Checksum, 16))
	if _, err := w.Write(job.Output); err != nil {
		slog.Error("Failed to write result", "job_id", job.ID, "error", err)
	}
}

// handleGetResultImage handles GET /api/v1/jobs/{id}/result.png[?maxWidth=N]
func (s *Server) handleGetResultImage(w http.ResponseWriter, r *http.Request) {
	job, ok := s.completedJob(w, r)
	if !ok {
		return
	}

	maxWidth := 0
	if v := r.URL.Query().Get("maxWidth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "maxWidth must be a positive integer")
			return
		}
		maxWidth = n
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := encodePNG(w, job.Output, job.OutputWidth, job.OutputHeight, maxWidth); err != nil {
		slog.Error("Failed to encode PNG", "job_id", job.ID, "error", err)
	}
}

// handleInfo handles GET /api/v1/info
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"backend":        blur.ActiveBackend.String(),
		"autoKernel":     blur.KernelAuto.Resolve().String(),
		"window":         blur.K,
		"rowGranularity": blur.RowGranularity,
		"reportsEnabled": s.reportStore != nil,
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
