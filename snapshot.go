package ssache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// snapshotRecord is the on-disk unit written by Save and read back by Load.
// It intentionally carries no TTL: loaded keys never expire (§9 Open
// Question: LOAD fully replaces the keyspace with untimed entries).
type snapshotRecord struct {
	Key   string
	Value string
}

// Save writes every live key in ks to path as a msgpack-encoded array of
// snapshotRecord. The write goes to a temp file in the same directory
// followed by an atomic rename, so a crash mid-write never corrupts the
// previous snapshot.
func Save(path string, ks *Keyspace) error {
	records := ks.SnapshotIter()
	if records == nil {
		records = []snapshotRecord{}
	}

	data, err := msgpack.Marshal(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ssache-snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// Load reads path and replaces the entire contents of ks with its records.
// A missing or empty file leaves ks untouched and returns success, so a
// fresh node with no prior SAVE can still issue LOAD without wiping
// whatever it already holds.
func Load(path string, ks *Keyspace) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var records []snapshotRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return err
	}

	ks.ReplaceAll(records)
	return nil
}

// runPeriodicSave calls Save on path every interval until ctx-like stop is
// requested via the done channel, logging failures rather than aborting the
// loop (a single bad write must not take the periodic job down).
func runPeriodicSave(log zerolog.Logger, path string, ks *Keyspace, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := Save(path, ks); err != nil {
				log.Error().Err(err).Str("path", path).Msg("scheduled save failed")
				continue
			}
			log.Debug().Str("path", path).Msg("scheduled save complete")
		}
	}
}
