package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"pagepreview/internal/api"
	"pagepreview/internal/config"
	"pagepreview/internal/logging"
	"pagepreview/internal/notifications"
	"pagepreview/internal/services"
	"pagepreview/internal/settings"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	validate *validator.Validate
	router   chi.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Paths.APIBind),
		token:    cfg.Paths.APIToken,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	srv.router = srv.routes()
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Synchronous generation can take a full render timeout.
		WriteTimeout: cfg.RenderTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)

		r.Post("/hooks/content-saved", s.handleContentSaved)
		r.Post("/hooks/content-deleted", s.handleContentDeleted)

		r.Route("/previews", func(r chi.Router) {
			r.Post("/bulk-create", s.handleBulkCreate)
			r.Post("/bulk-delete", s.handleBulkDelete)
			r.Get("/{id}", s.handlePreview)
			r.Post("/{id}/generate", s.handleGenerate)
			r.Delete("/{id}", s.handleDeletePreview)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueue)
			r.Post("/start", s.handleQueueStart)
			r.Post("/cancel", s.handleQueueCancel)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleSettings)
			r.Put("/", s.handleUpdateSettings)
			r.Post("/reset", s.handleReset)
		})

		r.Get("/types", s.handleTypes)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Queue:        api.FromStatus(status.Queue),
		Checks:       api.FromChecks(status.Checks),
	})
}

func (s *apiServer) handleContentSaved(w http.ResponseWriter, r *http.Request) {
	var req api.ContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	queued, err := s.daemon.app.Triggers.OnContentSaved(r.Context(), req.ID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := api.QueuedResponse{}
	if queued {
		resp.Queued = 1
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleContentDeleted(w http.ResponseWriter, r *http.Request) {
	var req api.ContentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.app.Triggers.OnContentDeleted(r.Context(), req.ID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req api.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	queued, err := s.daemon.app.Triggers.BulkCreate(r.Context(), req.IDs)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.QueuedResponse{Queued: queued})
}

func (s *apiServer) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req api.BulkRequest
	if !s.decode(w, r, &req) {
		return
	}
	result := s.daemon.app.Triggers.BulkDelete(r.Context(), req.IDs)
	s.writeJSON(w, http.StatusOK, api.FromBulkResult(result))
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contentID(w, r)
	if !ok {
		return
	}
	view, err := s.daemon.app.Generator.View(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromView(view))
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contentID(w, r)
	if !ok {
		return
	}
	record, err := s.daemon.app.Generator.Generate(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRecord(record))
}

func (s *apiServer) handleDeletePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.contentID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.app.Generator.Delete(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.writeQueueStatus(w, r, http.StatusOK)
}

func (s *apiServer) handleQueueStart(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.app.Runner.Start(r.Context()); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeQueueStatus(w, r, http.StatusAccepted)
}

func (s *apiServer) writeQueueStatus(w http.ResponseWriter, r *http.Request, code int) {
	status, err := s.daemon.app.Runner.Status(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, code, api.FromStatus(status))
}

func (s *apiServer) handleQueueCancel(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.app.Runner.Cancel(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	running, err := s.daemon.app.Runner.IsRunning(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if removed > 0 {
		if err := s.daemon.app.Notifier.Publish(r.Context(), notifications.EventQueueCancelled, notifications.Payload{"batches": removed}); err != nil {
			s.logger.Warn("cancel notification failed", logging.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Batches: removed, Running: running})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.daemon.app.Settings.Load(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSettings(w, r, http.StatusOK, current)
}

func (s *apiServer) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !s.decode(w, r, &patch) {
		return
	}
	updated, err := s.daemon.app.Settings.Update(r.Context(), api.SettingsPatch(patch))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeSettings(w, r, http.StatusOK, updated)
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.app.Generator.DeleteAll(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ResetResponse{Records: removed})
}

func (s *apiServer) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.daemon.app.Generator.EligibleTypes(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if types == nil {
		types = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"types": types})
}

func (s *apiServer) writeSettings(w http.ResponseWriter, r *http.Request, status int, current settings.Settings) {
	eligible, err := s.daemon.app.Generator.EligibleTypes(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, status, api.FromSettings(current, eligible))
}

func (s *apiServer) contentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid content id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into dst and validates struct payloads. It writes
// the error response itself and reports whether the handler may continue.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if _, isMap := dst.(*map[string]any); isMap {
		return true
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := api.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.ErrorKind(err))
	}
	s.writeJSON(w, status, api.FromError(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: services.Kind(services.ErrValidation)})
}
