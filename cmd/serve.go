package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/interview-prep/internal/cache"
	"github.com/sells-group/interview-prep/internal/model"
	"github.com/sells-group/interview-prep/internal/store"
)

const maxEmailBytes = 1 << 20

var servePort int

// emailRunner runs the prep pipeline for one email.
type emailRunner interface {
	Run(ctx context.Context, em model.Email) (*model.RunResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prep pipeline over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Pipeline, env.Store, env.Cache, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func buildRouter(runner emailRunner, st store.Store, c cache.Manager, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", handleCreateInterview(runner))
		r.Get("/", handleListInterviews(st))
		r.Get("/{hash}", handleGetInterview(st, c))
	})

	return r
}

func handleCreateInterview(runner emailRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var em model.Email
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmailBytes)).Decode(&em); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(em.Subject) == "" && strings.TrimSpace(em.Body) == "" {
			writeError(w, http.StatusBadRequest, "subject or body is required")
			return
		}
		if em.ID == "" {
			em.ID = uuid.NewString()
		}

		log := zap.L().With(
			zap.String("email_id", em.ID),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		result, err := runner.Run(r.Context(), em)
		if err != nil {
			log.Error("interview prep failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "pipeline error")
			return
		}

		status := http.StatusOK
		if result.Status != model.StatusReady {
			status = http.StatusUnprocessableEntity
		}
		log.Info("interview prep complete",
			zap.String("status", string(result.Status)),
			zap.String("content_hash", result.ContentHash),
		)
		writeJSONStatus(w, status, result)
	}
}

func handleListInterviews(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := store.RecordFilter{
			Status: model.RecordStatus(r.URL.Query().Get("status")),
			Limit:  50,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			filter.Limit = n
		}

		recs, err := st.ListRecords(r.Context(), filter)
		if err != nil {
			zap.L().Error("list records failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store error")
			return
		}
		if recs == nil {
			recs = []model.InterviewRecord{}
		}
		writeJSONStatus(w, http.StatusOK, recs)
	}
}

func handleGetInterview(st store.Store, c cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		rec, err := st.GetRecordByHash(r.Context(), hash)
		if err != nil {
			zap.L().Error("get record failed", zap.String("content_hash", hash), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store error")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "interview not found")
			return
		}

		resp := struct {
			Record   *model.InterviewRecord `json:"record"`
			Document *model.Document        `json:"document,omitempty"`
		}{Record: rec}
		if raw, ok := cache.Get(r.Context(), c, cache.DocumentKey(hash)); ok {
			var doc model.Document
			if err := json.Unmarshal(raw, &doc); err == nil {
				resp.Document = &doc
			}
		}
		writeJSONStatus(w, http.StatusOK, resp)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
