package ssache

import "time"

// Config holds everything needed to start a server. It is built by the CLI
// entrypoint from flags and environment, and passed to NewServer directly
// rather than read back out of global state.
type Config struct {
	Port int

	SnapshotPath           string
	EnableSave             bool
	SaveJobIntervalMinutes int

	EnableReplication      bool
	Replicas               []string
	ReplicationIntervalMin int

	MetricsPort int

	LogLevel string
}

// DefaultConfig returns the configuration a node boots with when no flags
// override it: listening on 7777, periodic save off (every 15 minutes to
// ./ssache.db once enabled), replication off, metrics served on 9090,
// info-level logging.
func DefaultConfig() *Config {
	return &Config{
		Port: 7777,

		SnapshotPath:           "ssache.db",
		EnableSave:             false,
		SaveJobIntervalMinutes: 15,

		EnableReplication:      false,
		Replicas:               nil,
		ReplicationIntervalMin: 1,

		MetricsPort: 9090,

		LogLevel: "info",
	}
}

func (c *Config) saveInterval() time.Duration {
	return time.Duration(c.SaveJobIntervalMinutes) * time.Minute
}

func (c *Config) replicationInterval() time.Duration {
	return time.Duration(c.ReplicationIntervalMin) * time.Minute
}
