package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/segunak/places-cli/internal/enrich"
	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for batch requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mux := newServeMux(ctx, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(context.Background()) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeMux builds the route table. Batch work runs detached from the
// request; the response carries the run ID for polling.
func newServeMux(ctx context.Context, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /enrich", func(w http.ResponseWriter, r *http.Request) {
		startBatch(ctx, w, r, st, "enrich")
	})

	mux.HandleFunc("POST /sync", func(w http.ResponseWriter, r *http.Request) {
		startBatch(ctx, w, r, st, "sync")
	})

	mux.HandleFunc("POST /status", func(w http.ResponseWriter, r *http.Request) {
		startBatch(ctx, w, r, st, "status")
	})

	mux.HandleFunc("POST /photos", func(w http.ResponseWriter, r *http.Request) {
		startBatch(ctx, w, r, st, "photos")
	})

	mux.HandleFunc("GET /runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := st.ListRuns(r.Context(), store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Mode:   r.URL.Query().Get("mode"),
		})
		if err != nil {
			http.Error(w, `{"error":"list runs failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return mux
}

type batchRequest struct {
	Provider string `json:"provider"`
	Limit    int    `json:"limit"`
}

// startBatch records a run, kicks off the batch in the background, and
// responds 202 with the run ID.
func startBatch(ctx context.Context, w http.ResponseWriter, r *http.Request, st store.Store, mode string) {
	req := batchRequest{Provider: "google"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
	}
	if req.Provider == "" {
		req.Provider = "google"
	}

	env, err := initPipeline(ctx, req.Provider)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	run, err := st.CreateRun(ctx, mode, req.Provider, cfg.Location.City)
	if err != nil {
		http.Error(w, `{"error":"create run failed"}`, http.StatusInternalServerError)
		return
	}

	go runBatch(ctx, st, env.coord, run.ID, mode, req.Limit)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"run_id": run.ID,
		"mode":   mode,
	})
}

// runBatch drives one recorded batch to completion.
func runBatch(ctx context.Context, st store.Store, coord *enrich.Coordinator, runID, mode string, limit int) {
	if err := st.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
		zap.L().Error("marking run running", zap.String("run_id", runID), zap.Error(err))
		return
	}

	items, err := coord.Plan(ctx)
	if err != nil {
		zap.L().Error("planning batch failed", zap.String("run_id", runID), zap.Error(err))
		_ = st.UpdateRunStatus(ctx, runID, model.RunStatusFailed)
		return
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	var summary *model.BatchSummary
	failed := false
	switch mode {
	case "sync":
		result := coord.RunSync(ctx, items)
		summary = result.Summary
		failed = !result.Success
	case "status":
		summary = coord.RefreshOperationalStatuses(ctx, items)
	case "photos":
		summary = coord.RefreshPhotos(ctx, items)
	default:
		summary = coord.RunBatch(ctx, items)
	}

	if err := st.SaveOutcomes(ctx, runID, summary.Outcomes); err != nil {
		zap.L().Warn("saving outcomes failed", zap.String("run_id", runID), zap.Error(err))
	}
	if failed {
		_ = st.UpdateRunStatus(ctx, runID, model.RunStatusFailed)
		return
	}
	if err := st.CompleteRun(ctx, runID, summary); err != nil {
		zap.L().Error("recording run summary", zap.String("run_id", runID), zap.Error(err))
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
