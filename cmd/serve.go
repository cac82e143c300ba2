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
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/resolver"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP resolution API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResolver(ctx)
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
			Handler: newRouter(env.Resolver),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
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

// addressResolver is what the HTTP layer needs from the resolver.
type addressResolver interface {
	Resolve(ctx context.Context, rawAddress string) (*resolver.Resolution, error)
}

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an ID, minting one when the caller
// did not send its own.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}

// newRouter builds the API routes.
func newRouter(r addressResolver) http.Handler {
	router := chi.NewRouter()
	router.Use(requestID)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Get("/v1/resolve", func(w http.ResponseWriter, req *http.Request) {
		address := req.URL.Query().Get("address")
		if address == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address query parameter is required"})
			return
		}

		res, err := r.Resolve(req.Context(), address)
		if err != nil {
			zap.L().Error("resolve request failed",
				zap.String("request_id", w.Header().Get(requestIDHeader)),
				zap.String("address", address),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		status := http.StatusOK
		if !res.Found() {
			status = http.StatusNotFound
		}
		writeJSON(w, status, resolveResponse{
			Address:     res.RawAddress,
			Found:       res.Found(),
			Latitude:    res.Latitude,
			Longitude:   res.Longitude,
			Method:      res.Method,
			DisplayName: res.DisplayName,
			Error:       res.Error,
		})
	})

	return router
}

type resolveResponse struct {
	Address     string `json:"address"`
	Found       bool   `json:"found"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
	Method      string `json:"method,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Error       string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
