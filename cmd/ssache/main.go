// Command ssache runs an in-memory key-value cache node.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ssache/ssache"
)

func main() {
	cfg := ssache.DefaultConfig()

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "TCP bind port")
	pflag.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "path to the snapshot file used by SAVE/LOAD")
	pflag.BoolVarP(&cfg.EnableSave, "save-job", "e", cfg.EnableSave, "enable periodic save job")
	pflag.IntVar(&cfg.SaveJobIntervalMinutes, "save-job-interval", cfg.SaveJobIntervalMinutes, "minutes between periodic saves")
	pflag.BoolVarP(&cfg.EnableReplication, "replication", "r", cfg.EnableReplication, "enable primary replication mode")
	pflag.StringArrayVar(&cfg.Replicas, "replicas", cfg.Replicas, "replica host:port, may be repeated")
	pflag.IntVar(&cfg.ReplicationIntervalMin, "replication-interval", cfg.ReplicationIntervalMin, "minutes between replication pushes")
	pflag.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "TCP port serving /metrics")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level, overridden by SSACHE_LOG_LEVEL")
	pflag.Parse()

	if lvl := os.Getenv("SSACHE_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)

	keyspace := ssache.NewKeyspace()
	metrics := ssache.NewMetrics(keyspace)
	srv := ssache.NewServerWithKeyspace(cfg, log, metrics, keyspace)

	if cfg.EnableSave {
		if err := ssache.Load(cfg.SnapshotPath, keyspace); err != nil {
			log.Fatal().Err(err).Msg("failed to load snapshot at startup")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsPort != 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			log.Info().Str("addr", addr).Msg("serving metrics")
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}
