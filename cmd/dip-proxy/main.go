// dip-proxy is a caching proxy in front of the Bundestag DIP API. It holds
// the API key, spaces and retries upstream requests, and serves repeated
// queries from its response cache, so internal consumers can hit the DIP API
// without each carrying credentials and resilience logic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bundesdata/go-dip/pkg/client"
	"github.com/bundesdata/go-dip/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// apiPrefix is the path prefix the proxy forwards upstream.
const apiPrefix = "/api/v1/"

func main() {
	configFile := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})
	logger := logging.NewLogger("dip-proxy")

	dipClient, err := client.NewConcurrent(cfg.clientConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create DIP client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc(apiPrefix, proxyHandler(dipClient))

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("upstream", cfg.API.BaseURL).
			Bool("cache", cfg.Cache.Enabled).
			Msg("Starting DIP proxy")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// proxyHandler forwards /api/v1/<resource>?<filters> through the resilient
// client. The incoming apikey parameter, if any, is dropped; the proxy's own
// key is attached by the client at transport time.
func proxyHandler(fetcher client.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		endpoint := strings.TrimPrefix(r.URL.Path, apiPrefix)
		if endpoint == "" {
			http.Error(w, "missing resource path", http.StatusBadRequest)
			return
		}

		params := r.URL.Query()
		params.Del("apikey")
		params.Del("format")

		payload, err := fetcher.Fetch(r.Context(), client.NewDescriptor(endpoint, params))
		if err != nil {
			writeUpstreamError(w, endpoint, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			log.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to write response")
		}
	}
}

// writeUpstreamError maps a client failure onto a proxy response: client-side
// categories pass the upstream status through, everything else is 502.
func writeUpstreamError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusBadGateway

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Category {
		case client.CategoryUnauthorized, client.CategoryForbidden, client.CategoryClientError:
			status = apiErr.StatusCode
		}
	}

	log.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Int("status", status).
		Msg("Upstream request failed")
	http.Error(w, err.Error(), status)
}
