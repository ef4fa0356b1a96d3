// cmd/proxy is the reference load-balancing reverse proxy: it fronts a
// cluster of replicas, routes each request to the replica the consistent
// hash ring assigns to the document in the path, and rejects requests that
// exceed the adaptive per-client rate limit.
//
// Example — proxy in front of a 3-replica cluster:
//
//	PROXY_ADDR=:9000 PEERS=node1=localhost:8080,node2=localhost:8081,node3=localhost:8082 ./proxy
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hayley-d/collaborative-coding-backend/internal/cluster"
	"github.com/hayley-d/collaborative-coding-backend/internal/config"
	"github.com/hayley-d/collaborative-coding-backend/internal/logging"
	"github.com/hayley-d/collaborative-coding-backend/internal/proxy"
	"github.com/hayley-d/collaborative-coding-backend/internal/ratelimiter"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("proxy", true)
	errLog := logging.Error(logger)

	var nodes []cluster.Node
	for _, entry := range cfg.Peers {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			errLog.Fatal().Str("entry", entry).Msg("invalid peer format: expected id=host:port")
		}
		nodes = append(nodes, cluster.Node{ID: parts[0], Address: parts[1]})
	}
	if len(nodes) == 0 {
		errLog.Fatal().Msg("no replicas configured: set PEERS=id=host:port,...")
	}
	membership := cluster.NewMembership(nodes, cfg.VirtualNodes)

	limiter := ratelimiter.NewAdaptiveRateLimiter(20, 40)

	p := proxy.New(membership, limiter, logger)

	srv := &http.Server{
		Addr:         cfg.ProxyAddr,
		Handler:      p,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ProxyAddr).Int("replicas", len(nodes)).Msg("proxy listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errLog.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down proxy")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		errLog.Error().Err(err).Msg("server shutdown error")
	}
}
