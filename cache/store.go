package cache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lyrics-translator-go/logcolors"
	"lyrics-translator-go/utils"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// Store is a TTL cache of typed artifacts persisted in BoltDB.
// Every category lives in its own bucket, so equal fingerprints in different
// categories never collide. Expiration is checked lazily on read.
type Store struct {
	db                 *bolt.DB
	dbPath             string
	backupPath         string
	compressionEnabled bool
	ttls               map[Category]time.Duration
	now                func() time.Time
	observer           func(category Category, result string)
}

// Options configures a Store.
type Options struct {
	DBPath      string
	BackupPath  string
	Compression bool
	// TTLs overrides the default expiration policy per category.
	TTLs map[Category]time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Observer is called after every lookup with its outcome.
	Observer func(category Category, result string)
}

// record is the persisted form of an entry.
type record struct {
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// CategoryStats describes the on-disk footprint of one category.
type CategoryStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}

// Open opens (or creates) the cache database and ensures every category bucket exists.
func Open(opts Options) (*Store, error) {
	if opts.DBPath == "" {
		return nil, errors.New("cache database path is required")
	}

	dir := filepath.Dir(opts.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if opts.BackupPath != "" {
		if err := os.MkdirAll(opts.BackupPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	if info, err := os.Stat(opts.DBPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogCacheInit, opts.DBPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogCacheInit, opts.DBPath)
	}

	db, err := bolt.Open(opts.DBPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, c := range Categories() {
			if _, err := tx.CreateBucketIfNotExists(c.bucket()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache buckets: %w", err)
	}

	ttls := DefaultTTLs()
	for c, ttl := range opts.TTLs {
		if c.Valid() && ttl > 0 {
			ttls[c] = ttl
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Store{
		db:                 db,
		dbPath:             opts.DBPath,
		backupPath:         opts.BackupPath,
		compressionEnabled: opts.Compression,
		ttls:               ttls,
		now:                clock,
		observer:           opts.Observer,
	}

	log.Infof("%s Cache store initialized at %s (compression: %v)", logcolors.LogCacheInit, opts.DBPath, opts.Compression)
	return s, nil
}

// TTL returns the configured time-to-live of a category.
func (s *Store) TTL(category Category) time.Duration {
	return s.ttls[category]
}

// Get returns the artifact stored under (category, Fingerprint(parts...)).
// A ttl of zero disables the age check. Expired and unreadable entries are
// deleted and reported as a miss; neither is an error for the caller.
func (s *Store) Get(category Category, ttl time.Duration, parts ...any) (Artifact, bool) {
	if !category.Valid() {
		log.Warnf("%s Lookup in unknown category %q", logcolors.LogCache, category)
		return nil, false
	}

	key := []byte(Fingerprint(parts...))
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(category.bucket())
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		log.Errorf("%s Error reading key %s: %v", logcolors.CachePrefix(category.String()), key, err)
		s.observe(category, resultMiss)
		return nil, false
	}
	if data == nil {
		s.observe(category, resultMiss)
		return nil, false
	}

	rec, artifact, err := s.decode(category, data)
	if err != nil {
		log.Warnf("%s Deleting unreadable entry %s: %v", logcolors.LogCacheCorrupt, key, err)
		s.deleteIfUnchanged(category, key, data)
		s.observe(category, resultCorrupt)
		return nil, false
	}

	if ttl > 0 && s.now().Sub(rec.CreatedAt) > ttl {
		log.Debugf("%s Entry %s in %s expired (written %s)", logcolors.LogCacheExpire, key, category, rec.CreatedAt.Format(time.RFC3339))
		s.deleteIfUnchanged(category, key, data)
		s.observe(category, resultExpired)
		return nil, false
	}

	s.observe(category, resultHit)
	return artifact, true
}

// Lookup is the typed form of Get using the category's configured TTL.
func Lookup[T Artifact](s *Store, parts ...any) (T, bool) {
	var zero T
	category := zero.Category()
	artifact, ok := s.Get(category, s.TTL(category), parts...)
	if !ok {
		return zero, false
	}
	typed, ok := artifact.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Put writes payload under (category, Fingerprint(parts...)), replacing any
// existing entry.
func (s *Store) Put(category Category, payload Artifact, parts ...any) error {
	if !category.Valid() {
		return fmt.Errorf("unknown cache category %q", category)
	}
	if payload == nil {
		return errors.New("nil payload")
	}
	if payload.Category() != category {
		return fmt.Errorf("payload of category %s cannot be stored under %s", payload.Category(), category)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	data, err := json.Marshal(record{CreatedAt: s.now().UTC(), Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if s.compressionEnabled {
		if data, err = utils.Compress(data); err != nil {
			return fmt.Errorf("failed to compress record: %w", err)
		}
	}

	key := []byte(Fingerprint(parts...))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(category.bucket())
		if b == nil {
			return fmt.Errorf("bucket %s not found", category)
		}
		return b.Put(key, data)
	})
}

// Set is the best-effort form of Put: failures are logged and swallowed so that
// caching never changes the outcome of the caller's operation.
func (s *Store) Set(category Category, payload Artifact, parts ...any) {
	if err := s.Put(category, payload, parts...); err != nil {
		cacheWrites.WithLabelValues(category.String(), "failed").Inc()
		log.Errorf("%s Error setting cache value in %s: %v", logcolors.LogCacheWrite, category, err)
		return
	}
	cacheWrites.WithLabelValues(category.String(), "ok").Inc()
}

// Delete removes a single entry.
func (s *Store) Delete(category Category, parts ...any) error {
	if !category.Valid() {
		return fmt.Errorf("unknown cache category %q", category)
	}
	key := []byte(Fingerprint(parts...))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(category.bucket())
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// Clear removes every entry of the given categories, or of all categories when
// none is given. Clearing an empty category is a no-op.
func (s *Store) Clear(categories ...Category) error {
	if len(categories) == 0 {
		categories = Categories()
	}
	for _, c := range categories {
		if !c.Valid() {
			return fmt.Errorf("unknown cache category %q", c)
		}
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, c := range categories {
			if err := tx.DeleteBucket(c.bucket()); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(c.bucket()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	log.Infof("%s Cleared categories: %v", logcolors.LogCacheClear, categories)
	return nil
}

// Stats reports entry counts and stored bytes per category, read from disk.
func (s *Store) Stats() (map[Category]CategoryStats, error) {
	stats := make(map[Category]CategoryStats, len(Categories()))
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, c := range Categories() {
			var cs CategoryStats
			if b := tx.Bucket(c.bucket()); b != nil {
				err := b.ForEach(func(k, v []byte) error {
					cs.Count++
					cs.SizeBytes += int64(len(k) + len(v))
					return nil
				})
				if err != nil {
					return err
				}
			}
			stats[c] = cs
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) decode(category Category, data []byte) (record, Artifact, error) {
	var rec record
	if utils.IsCompressed(data) {
		plain, err := utils.Decompress(data)
		if err != nil {
			return rec, nil, fmt.Errorf("decompress: %w", err)
		}
		data = plain
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, nil, fmt.Errorf("decode record: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		return rec, nil, errors.New("record has no timestamp")
	}
	if len(rec.Payload) == 0 || bytes.Equal(rec.Payload, []byte("null")) {
		return rec, nil, errors.New("record has no payload")
	}
	artifact, err := decodeArtifact(category, rec.Payload)
	if err != nil {
		return rec, nil, fmt.Errorf("decode payload: %w", err)
	}
	return rec, artifact, nil
}

// deleteIfUnchanged removes key only while it still holds data, so a write that
// landed after the read is not thrown away.
func (s *Store) deleteIfUnchanged(category Category, key, data []byte) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(category.bucket())
		if b == nil {
			return nil
		}
		if current := b.Get(key); current != nil && bytes.Equal(current, data) {
			return b.Delete(key)
		}
		return nil
	})
	if err != nil {
		log.Warnf("%s Failed to delete key %s: %v", logcolors.CachePrefix(category.String()), key, err)
	}
}

func (s *Store) observe(category Category, result string) {
	cacheLookups.WithLabelValues(category.String(), result).Inc()
	if s.observer != nil {
		s.observer(category, result)
	}
}
