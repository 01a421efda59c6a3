package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for task submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// taskRequest is the POST /tasks payload.
type taskRequest struct {
	Queries    []string `json:"queries"`
	Country    string   `json:"country,omitempty"`
	City       string   `json:"city,omitempty"`
	Location   string   `json:"location,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// newRouter builds the API routes. runCtx outlives individual requests and
// bounds the asynchronous pipeline runs.
func newRouter(runCtx context.Context, env *runEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/tasks", func(w http.ResponseWriter, req *http.Request) {
		var body taskRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		loc := model.Location{Country: body.Country, City: body.City, FreeText: body.Location}
		task, err := pipeline.PlanTask(body.Queries, loc, body.MaxResults, cfg.Pipeline.DefaultMaxResults, body.Language)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Run the pipeline asynchronously; the server context bounds it,
		// not the request context, which dies when this handler returns.
		go func() {
			if _, err := env.Pipeline.Run(runCtx, task); err != nil {
				zap.L().Error("task failed", zap.String("task", task.ID), zap.Error(err))
				return
			}
			zap.L().Info("task complete",
				zap.String("task", task.ID),
				zap.String("status", string(task.Status)),
				zap.Int("saved", task.SavedCount),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"task_id": task.ID,
			"status":  string(model.TaskStatusRunning),
		})
	})

	r.Get("/tasks", func(w http.ResponseWriter, req *http.Request) {
		status := req.URL.Query().Get("status")
		tasks, err := env.Store.ListTasks(req.Context(), store.TaskFilter{
			Status: model.TaskStatus(status),
			Limit:  100,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list tasks failed"})
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	})

	r.Get("/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		task, err := env.Store.GetTask(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		writeJSON(w, http.StatusOK, task)
	})

	r.Get("/tasks/{id}/contacts", func(w http.ResponseWriter, req *http.Request) {
		contacts, err := env.Store.ListContacts(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list contacts failed"})
			return
		}
		writeJSON(w, http.StatusOK, contacts)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
