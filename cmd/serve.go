package main

import (
	"encoding/json"
	"fmt"
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

	"github.com/sells-group/company-research/internal/model"
)

var servePort int

// streamPollInterval is how often the SSE handler drains a job's event
// queue.
const streamPollInterval = 100 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research HTTP server",
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
			Handler: newRouter(env),
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

func newRouter(env *researchEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/research", func(w http.ResponseWriter, req *http.Request) {
		var rr model.ResearchRequest
		if err := json.NewDecoder(req.Body).Decode(&rr); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		job, err := env.Pipeline.Submit(rr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusAccepted, job)
	})

	r.Get("/research/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, ok := env.Registry.Get(chi.URLParam(req, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	r.Get("/research/{id}/report", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		job, ok := env.Registry.Get(id)
		if !ok {
			// Fall back to persisted reports from earlier runs.
			if env.Store != nil {
				if report, err := env.Store.GetReport(req.Context(), id); err == nil && report != nil {
					writeJSON(w, http.StatusOK, report)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}

		switch job.Status {
		case model.JobStatusCompleted:
			writeJSON(w, http.StatusOK, map[string]string{
				"job_id": job.ID,
				"report": job.Report,
			})
		case model.JobStatusFailed:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": job.Error})
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":       string(job.Status),
				"current_step": job.CurrentStep,
			})
		}
	})

	r.Get("/research/{id}/stream", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if _, ok := env.Registry.Get(id); !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		streamEvents(w, req, env, id)
	})

	r.Delete("/research/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		job, ok := env.Registry.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		if !env.Registry.Cancel(id) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "job already finished",
				"status": string(job.Status),
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
	})

	return r
}

// streamEvents replays a job's event queue over SSE. The queue drains
// destructively, so one consumer per job sees each event exactly once.
// The stream ends after the queue is empty and the job has gone
// terminal.
func streamEvents(w http.ResponseWriter, req *http.Request, env *researchEnv, id string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		job, events, ok := env.Registry.Poll(id)
		if !ok {
			return
		}

		for _, ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				zap.L().Warn("marshal event failed", zap.String("job_id", id), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		if len(events) > 0 {
			flusher.Flush()
		}

		if job.Status.Terminal() {
			return
		}

		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
		}
	}
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
