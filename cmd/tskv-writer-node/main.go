// Command tskv-writer-node runs a single storage node: the replicated
// write path over the local TSM engine, plus a Prometheus metrics
// endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lastincisor/tskv/catalog"
	"github.com/lastincisor/tskv/config"
	"github.com/lastincisor/tskv/coordinator"
	noderaft "github.com/lastincisor/tskv/coordinator/raft"
	"github.com/lastincisor/tskv/engine"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "tskv-writer-node",
		Short:        "Run a tskv storage node's replicated write path",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.toml", "path to the node's TOML configuration")
	return cmd
}

func run(cfg config.Config) error {
	logger := newLogger(cfg.Log.Level)
	level.Info(logger).Log("msg", "starting node", "node", cfg.NodeBasic.NodeID, "version", coordinator.Version)

	cat := catalog.NewMemCatalog()
	eng := engine.New(cfg.Storage.Path, cfg.BloomFilter.Bits, log.With(logger, "component", "engine"))

	manager := noderaft.NewNodesManager(
		cfg.NodeBasic.NodeID,
		cfg.Storage.Path,
		cfg.Cluster.RaftBindAddr,
		eng,
		cat.NodeAddr,
		log.With(logger, "component", "raft"),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := coordinator.NewMetrics(registry)

	writer := coordinator.NewReplicationSetWriter(
		cfg.NodeBasic.NodeID,
		time.Duration(cfg.Query.WriteTimeoutMS)*time.Millisecond,
		cat,
		nopClientProvider{},
		manager,
		eng,
		nil,
		log.With(logger, "component", "coordinator"),
		metrics,
	)
	_ = writer // served to the RPC layer once a transport is bound

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Cluster.MetricsBindAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(logger).Log("msg", "metrics listener failed", "err", err)
		}
	}()
	level.Info(logger).Log("msg", "metrics listening", "addr", cfg.Cluster.MetricsBindAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	level.Info(logger).Log("msg", "shutting down", "signal", sig)
	return srv.Close()
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	switch lvl {
	case "debug":
		return level.NewFilter(logger, level.AllowDebug())
	case "warn":
		return level.NewFilter(logger, level.AllowWarn())
	case "error":
		return level.NewFilter(logger, level.AllowError())
	default:
		return level.NewFilter(logger, level.AllowInfo())
	}
}

// nopClientProvider stands in until a gRPC transport is wired; every
// remote dispatch reports the peer unreachable, which the writer
// handles as failover.
type nopClientProvider struct{}

func (nopClientProvider) WriteClient(_ context.Context, nodeID uint64) (coordinator.WriteClient, error) {
	return nil, fmt.Errorf("no transport bound for node %d", nodeID)
}
