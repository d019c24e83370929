package ssache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// replicator periodically pushes the primary's full keyspace state out to
// every configured replica by reconnecting and replaying SET for each live
// key. A replica that is unreachable on one tick is simply retried on the
// next; replication never blocks command handling on the primary.
type replicator struct {
	keyspace *Keyspace
	replicas []string
	interval time.Duration
	log      zerolog.Logger
	metrics  *Metrics
}

func newReplicator(ks *Keyspace, replicas []string, interval time.Duration, log zerolog.Logger, metrics *Metrics) *replicator {
	return &replicator{
		keyspace: ks,
		replicas: replicas,
		interval: interval,
		log:      log,
		metrics:  metrics,
	}
}

func (r *replicator) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range r.replicas {
				r.pushTo(ctx, addr)
			}
		}
	}
}

func (r *replicator) pushTo(ctx context.Context, addr string) {
	start := time.Now()
	err := r.pushOnce(ctx, addr)
	if r.metrics != nil {
		r.metrics.replicationDuration.WithLabelValues(addr).Observe(time.Since(start).Seconds())
		if err != nil {
			r.metrics.replicationErrors.WithLabelValues(addr).Inc()
		}
	}
	if err != nil {
		r.log.Error().Err(err).Str("replica", addr).Msg("replication push failed")
		return
	}
	r.log.Debug().Str("replica", addr).Msg("replication push complete")
}

func (r *replicator) pushOnce(ctx context.Context, addr string) error {
	c, err := Connect(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, rec := range r.keyspace.SnapshotIter() {
		if err := c.Set(ctx, rec.Key, rec.Value); err != nil {
			return err
		}
	}
	return nil
}
