// Package web serves the sandboxed backup flow over HTTP: snapshots are
// downloaded by the browser and restored from uploads.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muwi-backup/internal/backup"
	"muwi-backup/internal/logging"
)

// Server routes backup requests to a Service built on Primitives.
type Server struct {
	service         *backup.Service
	logger          *logging.Logger
	shutdownTimeout time.Duration
	onBackup        func(backup.BackupResult)
}

// NewServer creates a Server. service must use a sandbox backend over Primitives.
func NewServer(service *backup.Service, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Server{service: service, logger: logger, shutdownTimeout: 10 * time.Second}
}

// WithShutdownTimeout bounds how long in-flight requests may take after ctx is cancelled.
func (s *Server) WithShutdownTimeout(timeout time.Duration) *Server {
	if timeout > 0 {
		s.shutdownTimeout = timeout
	}
	return s
}

// WithBackupRecorder registers a callback run after each successful download.
func (s *Server) WithBackupRecorder(record func(backup.BackupResult)) *Server {
	s.onBackup = record
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/backup", func(r chi.Router) {
		r.Get("/", s.download)
		r.Post("/restore", s.restore)
		r.Get("/stats", s.stats)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctx, ex := withExchange(r.Context(), w, r)
	result := s.service.SaveBackupToFile(ctx, nil)
	if result.Success && s.onBackup != nil {
		s.onBackup(result)
	}
	if ex.written {
		return
	}
	respondJSON(w, http.StatusInternalServerError, result)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	ctx, _ := withExchange(r.Context(), w, r)

	var result backup.RestoreResult
	if r.URL.Query().Get("merge") == "true" {
		result = s.service.MergeBackupFromFile(ctx)
	} else {
		result = s.service.LoadBackupFromFile(ctx)
	}

	status := http.StatusOK
	if !result.Success {
		status = restoreFailureStatus(result.Error)
	}
	respondJSON(w, status, result)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetBackupStats(r.Context())
	if err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("Failed to collect backup stats")
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, backup.BackupStats{
		Tables:        nonNil(stats.NonEmpty()),
		TotalRecords:  stats.TotalRecords,
		EstimatedSize: stats.EstimatedSize,
	})
}

func restoreFailureStatus(message string) int {
	switch message {
	case backup.MsgFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case backup.MsgUnknownLoadError, backup.MsgUnknownRestoreError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func nonNil(tables []backup.TableStat) []backup.TableStat {
	if tables == nil {
		return []backup.TableStat{}
	}
	return tables
}

// requestLogger moves chi's request id into the logging context and logs each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := chimiddleware.GetReqID(ctx); id != "" {
			ctx = logging.CreateContextWithRequestID(ctx, id)
		}

		if !s.logger.IsLevelEnabled(logging.LogLevelVerbose) {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
