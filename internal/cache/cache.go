// SPDX-License-Identifier: Apache-2.0

// Package cache is a fingerprint-keyed store for catalog lookup results.
// Expiry is lazy (checked at lookup time, no background sweep) and
// concurrent computes for the same fingerprint collapse to one call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/partsproj/parts-mcp/internal/catalog"
	"github.com/partsproj/parts-mcp/internal/metrics"
)

// ComputeFunc performs the external catalog lookup on a cache miss.
type ComputeFunc func(ctx context.Context) ([]catalog.Part, error)

type entry struct {
	Payload   []catalog.Part `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	TTL       time.Duration  `json:"ttl"`
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Store owns all cache entries. It is constructed once at process startup
// and passed explicitly to the matcher; it is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	flight     singleflight.Group
	logger     *zap.Logger

	// snapshotPath, when non-empty, is where Close persists entries and
	// New reloads them, so repeated runs across restarts still hit.
	snapshotPath string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries bounds the store; exceeding it triggers an opportunistic
// eviction pass removing expired entries first, then oldest-created.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// WithSnapshot enables best-effort on-disk persistence at the given path.
func WithSnapshot(path string) Option {
	return func(s *Store) { s.snapshotPath = path }
}

// New creates a Store. A nil logger defaults to zap.NewNop.
func New(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		entries: map[string]entry{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshotPath != "" {
		s.loadSnapshot()
	}
	return s
}

// Fingerprint derives the deterministic cache key for a normalized query:
// the MPN when present, otherwise value+footprint+description, lower-cased
// and whitespace-collapsed, so equivalent queries from different BOMs share
// an entry.
func Fingerprint(mpn, value, footprint, description string) string {
	var key string
	if normalized := normalizeTerm(mpn); normalized != "" {
		key = "mpn:" + normalized
	} else {
		key = "vfd:" + normalizeTerm(value) + "|" + normalizeTerm(footprint) + "|" + normalizeTerm(description)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func normalizeTerm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// GetOrCompute returns the live cached payload for fingerprint, or invokes
// compute, stores its result with the given TTL and returns it. Failed
// computes are never cached. In-flight computes for the same fingerprint
// collapse to a single external call.
func (s *Store) GetOrCompute(ctx context.Context, fingerprint string, ttl time.Duration, compute ComputeFunc) ([]catalog.Part, error) {
	if payload, ok := s.lookup(fingerprint); ok {
		metrics.CacheHits.Inc()
		return payload, nil
	}

	result, err, _ := s.flight.Do(fingerprint, func() (any, error) {
		// A concurrent flight may have stored the entry between our
		// miss and acquiring the flight.
		if payload, ok := s.lookup(fingerprint); ok {
			metrics.CacheHits.Inc()
			return payload, nil
		}
		metrics.CacheMisses.Inc()

		payload, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.put(fingerprint, payload, ttl)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]catalog.Part), nil
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close persists the snapshot if one is configured.
func (s *Store) Close() error {
	if s.snapshotPath == "" {
		return nil
	}
	return s.saveSnapshot()
}

func (s *Store) lookup(fingerprint string) ([]catalog.Part, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(s.entries, fingerprint)
		metrics.CacheEvictions.Inc()
		return nil, false
	}
	return e.Payload, true
}

func (s *Store) put(fingerprint string, payload []catalog.Part, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[fingerprint] = entry{
		Payload:   payload,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.evictLocked()
	}
}

// evictLocked removes expired entries, then oldest-created entries until
// the store fits its bound again. Caller holds s.mu.
func (s *Store) evictLocked() {
	now := time.Now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			metrics.CacheEvictions.Inc()
		}
	}
	if len(s.entries) <= s.maxEntries {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, aged{key: k, createdAt: e.CreatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].createdAt.Before(all[j].createdAt)
		}
		return all[i].key < all[j].key
	})
	for _, a := range all[:len(s.entries)-s.maxEntries] {
		delete(s.entries, a.key)
		metrics.CacheEvictions.Inc()
	}
}

func (s *Store) loadSnapshot() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read cache snapshot", zap.String("path", s.snapshotPath), zap.Error(err))
		}
		return
	}
	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("discarding corrupt cache snapshot", zap.String("path", s.snapshotPath), zap.Error(err))
		return
	}
	now := time.Now()
	for k, e := range entries {
		if !e.expired(now) {
			s.entries[k] = e
		}
	}
	s.logger.Info("loaded cache snapshot", zap.String("path", s.snapshotPath), zap.Int("entries", len(s.entries)))
}

func (s *Store) saveSnapshot() error {
	s.mu.Lock()
	live := make(map[string]entry, len(s.entries))
	now := time.Now()
	for k, e := range s.entries {
		if !e.expired(now) {
			live[k] = e
		}
	}
	s.mu.Unlock()

	data, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache snapshot: %w", err)
	}
	return os.Rename(tmp, s.snapshotPath)
}
