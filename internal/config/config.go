// Package config loads replica configuration from environment variables
// via viper (no config file is read), the way the original system's
// Rocket.toml + environment split did: a handful of required connection
// strings for the collaborators it depends on, plus this replica's own
// identity and network settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything a replica process needs to start.
type Config struct {
	// NodeID identifies this replica within the cluster; cmd/server hashes
	// it into the S4Vector Sid for every operation this replica originates.
	NodeID string
	// Addr is the host:port this replica's HTTP server listens on.
	Addr string
	// ProxyAddr is the host:port the reference reverse proxy listens on.
	ProxyAddr string
	// DataDir roots the operation log and snapshot files for every
	// document this replica hosts.
	DataDir string
	// Peers lists the other replicas in the cluster as "id=host:port".
	Peers []string

	// DatabaseURL names the relational store collaborator. It is read here
	// (for parity with the original deployment's contract) but is neither
	// validated nor dialed by this process — persistence here is the
	// operation log, not a SQL database.
	DatabaseURL string
	// BroadcastTopic names the pub/sub topic the broadcast gateway would
	// publish to in a networked deployment.
	BroadcastTopic string
	// RateLimiterEndpoint is the gRPC address of the proxy's rate-limiter
	// collaborator.
	RateLimiterEndpoint string

	// SnapshotInterval controls how often a replica's oplog store takes a
	// full snapshot and truncates its log.
	SnapshotInterval time.Duration

	// VirtualNodes is the number of virtual nodes per physical replica on
	// the consistent hash ring.
	VirtualNodes int
}

// Load reads configuration from environment variables, applying the
// defaults a single-node local run needs. Environment variable names match
// the original deployment's naming: NODE_ID, NODE_ADDR, DB_URL, SNS_TOPIC,
// RATE_LIMITER_ENDPOINT.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("node_id", "node1")
	v.SetDefault("node_addr", ":8080")
	v.SetDefault("proxy_addr", ":9000")
	v.SetDefault("data_dir", "/tmp/collab")
	v.SetDefault("peers", "")
	v.SetDefault("db_url", "")
	v.SetDefault("sns_topic", "")
	v.SetDefault("rate_limiter_endpoint", "")
	v.SetDefault("snapshot_interval", "60s")
	v.SetDefault("virtual_nodes", 150)

	snapshotInterval, err := time.ParseDuration(v.GetString("snapshot_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("parse snapshot_interval: %w", err)
	}

	var peers []string
	if raw := v.GetString("peers"); raw != "" {
		peers = strings.Split(raw, ",")
	}

	return Config{
		NodeID:              v.GetString("node_id"),
		Addr:                v.GetString("node_addr"),
		ProxyAddr:           v.GetString("proxy_addr"),
		DataDir:             v.GetString("data_dir"),
		Peers:               peers,
		DatabaseURL:         v.GetString("db_url"),
		BroadcastTopic:      v.GetString("sns_topic"),
		RateLimiterEndpoint: v.GetString("rate_limiter_endpoint"),
		SnapshotInterval:    snapshotInterval,
		VirtualNodes:        v.GetInt("virtual_nodes"),
	}, nil
}
