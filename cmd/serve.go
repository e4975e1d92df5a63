package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classifier-cli/internal/job"
	"github.com/sells-group/classifier-cli/internal/model"
)

var servePort int

// jobAPI is the slice of the job manager the HTTP handlers need.
type jobAPI interface {
	Request(ctx context.Context, companyKey string) (job.Outcome, error)
	Status(ctx context.Context, companyKey string) (job.Outcome, error)
	Result(ctx context.Context, companyKey string) (job.Outcome, bool, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		router := buildRouter(env.Manager)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the classification endpoints onto a chi router.
func buildRouter(jobs jobAPI) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/classify/{companyKey}/prepare", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "companyKey")

		out, err := jobs.Request(r.Context(), key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown company key"})
				return
			}
			zap.L().Error("prepare failed", zap.String("company", key), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		if out.Status == model.StatusReady {
			writeJSON(w, http.StatusOK, out)
			return
		}
		writeJSON(w, http.StatusAccepted, out)
	})

	r.Get("/classify/{companyKey}/status", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "companyKey")

		out, err := jobs.Status(r.Context(), key)
		if err != nil {
			zap.L().Error("status read failed", zap.String("company", key), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/classify/{companyKey}", func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "companyKey")

		out, found, err := jobs.Result(r.Context(), key)
		if err != nil {
			zap.L().Error("result read failed", zap.String("company", key), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "classification never requested"})
			return
		}

		switch out.Status {
		case model.StatusReady:
			writeJSON(w, http.StatusOK, out.Result)
		case model.StatusError:
			writeJSON(w, http.StatusUnprocessableEntity, out)
		default:
			writeJSON(w, http.StatusAccepted, out)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
