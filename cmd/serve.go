package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/aggregate"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/source"
	"github.com/sells-group/prospector/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for discovery requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg, err := buildRegistry()
		if err != nil {
			return err
		}
		orch := newOrchestrator(reg)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		mux := newServeMux(ctx, reg, orch, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go drainOnDone(ctx, srv, shutdownGrace)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

const shutdownGrace = 10 * time.Second

// drainOnDone shuts the server down once ctx is cancelled. The drain gets a
// fresh timeout context: the cancelled run context would give in-flight
// requests no time to finish.
func drainOnDone(ctx context.Context, srv *http.Server, grace time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")

	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

// newServeMux wires the discovery HTTP routes. Split out of the command so
// handler behavior is testable without binding a port.
func newServeMux(ctx context.Context, reg *source.Registry, orch *aggregate.Orchestrator, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		col := monitoring.NewCollector(nil, 0)
		snap := col.Collect(orch.GetSourceMetrics(), nil)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"sources":  snap.Sources,
			"breakers": orch.BreakerStates(),
		})
	})

	mux.HandleFunc("GET /sources", func(w http.ResponseWriter, r *http.Request) {
		type sourceInfo struct {
			Name       string   `json:"name"`
			Priority   int      `json:"priority"`
			Enabled    bool     `json:"enabled"`
			Industries []string `json:"industries"`
		}
		var out []sourceInfo
		for _, name := range reg.Names() {
			e := reg.Get(name)
			if e == nil {
				continue
			}
			out = append(out, sourceInfo{
				Name:       name,
				Priority:   e.Priority,
				Enabled:    e.Enabled,
				Industries: e.TargetIndustries,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("POST /discover", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Location string `json:"location"`
			Industry string `json:"industry"`
			Count    int    `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Location == "" {
			http.Error(w, `{"error":"location is required"}`, http.StatusBadRequest)
			return
		}
		if req.Count <= 0 {
			req.Count = 25
		}

		// Run discovery asynchronously against the server's lifetime
		// context, not the request's.
		go func() {
			_, summary, err := orch.Run(ctx, req.Count, req.Location, req.Industry)
			if err != nil {
				zap.L().Error("discovery request failed",
					zap.String("location", req.Location),
					zap.Error(err),
				)
				return
			}
			if err := st.SaveRun(ctx, *summary); err != nil {
				zap.L().Error("save run failed", zap.Error(err))
				return
			}
			if err := st.SaveSourceSnapshots(ctx, summary.RunID, orch.GetSourceMetrics()); err != nil {
				zap.L().Error("save snapshots failed", zap.Error(err))
				return
			}
			zap.L().Info("discovery request complete",
				zap.String("run_id", summary.RunID),
				zap.Int("returned", summary.Returned),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "accepted",
			"location": req.Location,
		})
	})

	return mux
}
