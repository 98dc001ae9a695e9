package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server exposing reports and pipeline triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /reports/latest", func(w http.ResponseWriter, r *http.Request) {
			rpt, err := env.Store.GetLatestReport(r.Context())
			if err != nil {
				zap.L().Error("load latest report failed", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if rpt == nil {
				http.Error(w, `{"error":"no reports yet"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rpt)
		})

		mux.HandleFunc("GET /reports/{week}", func(w http.ResponseWriter, r *http.Request) {
			weekStart, _, err := parseWeek(r.PathValue("week"))
			if err != nil {
				http.Error(w, `{"error":"week must be YYYY-MM-DD"}`, http.StatusBadRequest)
				return
			}
			rpt, err := env.Store.GetReportByWeek(r.Context(), weekStart)
			if err != nil {
				zap.L().Error("load report failed", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if rpt == nil {
				http.Error(w, `{"error":"no report for that week"}`, http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rpt)
		})

		mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
			// Run asynchronously; the caller polls /reports/latest.
			go func() {
				result, err := env.Pipeline.Run(ctx)
				if err != nil {
					zap.L().Error("triggered pipeline run failed", zap.Error(err))
					return
				}
				zap.L().Info("triggered pipeline run finished", zap.Bool("success", result.Success))
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

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

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
