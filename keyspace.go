package ssache

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// shardCount is the number of independent lock/map partitions the keyspace
// is split across. GET/SET traffic on disjoint keys only contends when two
// keys hash to the same shard.
const shardCount = 32

// Keyspace is the concurrent key-value store at the heart of the server.
// It is safe for use by multiple goroutines.
type Keyspace struct {
	shards [shardCount]*shard
	now    func() time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewKeyspace returns an empty, ready-to-use Keyspace.
func NewKeyspace() *Keyspace {
	ks := &Keyspace{now: time.Now}
	for i := range ks.shards {
		ks.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return ks
}

func (ks *Keyspace) shardFor(key string) *shard {
	h := xxhash.Sum64String(key)
	return ks.shards[h%uint64(shardCount)]
}

// Get returns the value stored at key. If the entry exists but has expired
// it is evicted on the spot and the second return value is false.
func (ks *Keyspace) Get(key string) (string, bool) {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if e.expired(now) {
		delete(s.entries, key)
		return "", false
	}
	return e.Value, true
}

// Set unconditionally stores value at key, clearing any previous TTL.
func (ks *Keyspace) Set(key, value string) {
	s := ks.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = newEntry(value)
}

// SetTTL arms an expiry ttl from now on an existing key. Missing keys are a
// no-op; the caller still treats this as success (§4.1 EXPIRE semantics).
func (ks *Keyspace) SetTTL(key string, ttl time.Duration) {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		return
	}
	e.expiresAt = now.Add(ttl)
	s.entries[key] = e
}

// Del removes key and reports whether it was present (and live).
func (ks *Keyspace) Del(key string) bool {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	delete(s.entries, key)
	return !e.expired(now)
}

// Exists reports whether key is present and live. Like Get, it evicts the
// entry if it has expired.
func (ks *Keyspace) Exists(key string) bool {
	_, ok := ks.Get(key)
	return ok
}

// TTL returns the remaining milliseconds for key, whether it has a TTL at
// all, and whether it exists.
func (ks *Keyspace) TTL(key string) (ms int64, hasTTL bool, exists bool) {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		return 0, false, false
	}
	if !e.hasTTL() {
		return 0, false, true
	}
	return e.ttlRemaining(now), true, true
}

// Persist clears any TTL on key, reporting whether one was actually
// cleared.
func (ks *Keyspace) Persist(key string) bool {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		if ok {
			delete(s.entries, key)
		}
		return false
	}
	if !e.hasTTL() {
		return false
	}
	e.expiresAt = time.Time{}
	s.entries[key] = e
	return true
}

// Incr and Decr implement the observed ssache semantics: a missing or
// expired key is initialized to 0 and 0 is returned (not 1 or -1); a
// present numeric key is stepped by 1; a present non-numeric key errors
// without mutation.
func (ks *Keyspace) Incr(key string) (int64, error) { return ks.step(key, 1) }
func (ks *Keyspace) Decr(key string) (int64, error) { return ks.step(key, -1) }

func (ks *Keyspace) step(key string, delta int64) (int64, error) {
	s := ks.shardFor(key)
	now := ks.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		s.entries[key] = newEntry("0")
		return 0, nil
	}

	n, err := strconv.ParseInt(e.Value, 10, 64)
	if err != nil {
		return 0, ErrNotANumber
	}

	n += delta
	e.Value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

// Len returns the number of live keys. Expired-but-untouched keys are
// excluded without being evicted (DBSIZE is a read-only count).
func (ks *Keyspace) Len() int {
	now := ks.now()
	total := 0
	for _, s := range ks.shards {
		s.mu.RLock()
		for _, e := range s.entries {
			if !e.expired(now) {
				total++
			}
		}
		s.mu.RUnlock()
	}
	return total
}

// SnapshotIter returns a consistent point-in-time copy of all live
// (key, value) pairs. Every shard is read-locked for the duration of the
// copy, so no write lands midway through it; no shard lock is held across
// file I/O.
func (ks *Keyspace) SnapshotIter() []snapshotRecord {
	now := ks.now()
	for _, s := range ks.shards {
		s.mu.RLock()
	}
	var out []snapshotRecord
	for _, s := range ks.shards {
		for k, e := range s.entries {
			if !e.expired(now) {
				out = append(out, snapshotRecord{Key: k, Value: e.Value})
			}
		}
	}
	for _, s := range ks.shards {
		s.mu.RUnlock()
	}
	return out
}

// ReplaceAll atomically swaps the entire keyspace for the supplied
// records. Loaded entries never carry a TTL. The rehash into shards
// happens before any lock is taken.
func (ks *Keyspace) ReplaceAll(records []snapshotRecord) {
	buckets := make([]map[string]Entry, shardCount)
	for i := range buckets {
		buckets[i] = make(map[string]Entry)
	}
	for _, r := range records {
		h := xxhash.Sum64String(r.Key)
		buckets[h%uint64(shardCount)][r.Key] = newEntry(r.Value)
	}

	for _, s := range ks.shards {
		s.mu.Lock()
	}
	for i, s := range ks.shards {
		s.entries = buckets[i]
	}
	for _, s := range ks.shards {
		s.mu.Unlock()
	}
}
