// cmd/server is the main entrypoint for a replica of the collaborative
// document service.
//
// Configuration is entirely via environment variables so a single binary
// can serve any replica role in the cluster.
//
// Example — single replica:
//
//	NODE_ID=node1 NODE_ADDR=:8080 DATA_DIR=/var/collab/node1 ./server
//
// Example — 3-replica cluster:
//
//	NODE_ID=node1 NODE_ADDR=:8080 DATA_DIR=/tmp/n1 \
//	  PEERS=node2=localhost:8081,node3=localhost:8082 ./server
//	NODE_ID=node2 NODE_ADDR=:8081 DATA_DIR=/tmp/n2 \
//	  PEERS=node1=localhost:8080,node3=localhost:8082 ./server
//	NODE_ID=node3 NODE_ADDR=:8082 DATA_DIR=/tmp/n3 \
//	  PEERS=node1=localhost:8080,node2=localhost:8081 ./server
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

	"github.com/gin-gonic/gin"

	"github.com/hayley-d/collaborative-coding-backend/internal/api"
	"github.com/hayley-d/collaborative-coding-backend/internal/broadcast"
	"github.com/hayley-d/collaborative-coding-backend/internal/cluster"
	"github.com/hayley-d/collaborative-coding-backend/internal/config"
	"github.com/hayley-d/collaborative-coding-backend/internal/controller"
	"github.com/hayley-d/collaborative-coding-backend/internal/logging"
	"github.com/hayley-d/collaborative-coding-backend/internal/oplog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.NodeID, true)
	errLog := logging.Error(logger)

	// ── Durable operation log ────────────────────────────────────────────
	nodeDataDir := fmt.Sprintf("%s/%s", cfg.DataDir, cfg.NodeID)
	store, err := oplog.Open(nodeDataDir)
	if err != nil {
		errLog.Fatal().Err(err).Msg("open operation log")
	}
	defer store.Close()

	// ── Cluster membership ───────────────────────────────────────────────
	selfNode := cluster.Node{ID: cfg.NodeID, Address: cfg.Addr}
	nodes := []cluster.Node{selfNode}
	for _, entry := range cfg.Peers {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			errLog.Fatal().Str("entry", entry).Msg("invalid peer format: expected id=host:port")
		}
		nodes = append(nodes, cluster.Node{ID: parts[0], Address: parts[1]})
	}
	membership := cluster.NewMembership(nodes, cfg.VirtualNodes)

	// ── Broadcast gateway ─────────────────────────────────────────────────
	publisher := broadcast.NewHTTPPublisher(cfg.NodeID, membership)

	// ── Replica controller ───────────────────────────────────────────────
	sid := siteIDFromNodeID(cfg.NodeID)
	ctrl := controller.New(store, publisher, sid, logger)

	// ── HTTP server ───────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(api.Logger(logger), api.Recovery(logger))

	handler := api.NewHandler(ctrl, membership, cfg.NodeID)
	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"node":   cfg.NodeID,
			"status": "ok",
			"nodes":  membership.Ring().NodeCount(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("replica listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errLog.Fatal().Err(err).Msg("server error")
		}
	}()

	// Background snapshot on the configured interval.
	go func() {
		ticker := time.NewTicker(cfg.SnapshotInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := store.Snapshot(); err != nil {
				errLog.Error().Err(err).Msg("snapshot error")
			} else {
				logger.Debug().Msg("snapshot saved")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down replica")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := store.Snapshot(); err != nil {
		errLog.Error().Err(err).Msg("final snapshot error")
	}

	if err := srv.Shutdown(ctx); err != nil {
		errLog.Error().Err(err).Msg("server shutdown error")
	}
}

// siteIDFromNodeID derives a numeric S4Vector Sid from the configured node
// name, so any NODE_ID string maps deterministically onto the replica's
// site identifier.
func siteIDFromNodeID(nodeID string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for i := 0; i < len(nodeID); i++ {
		h ^= uint64(nodeID[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
