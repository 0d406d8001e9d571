// Package store persists enriched influencer profiles in a single flat
// JSON document. Writes are atomic (temp file + rename); concurrent
// writers are out of scope and must be serialized by the caller.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/clout/profile"
)

const documentVersion = "1.0"

// document is the on-disk layout.
type document struct {
	Profiles map[string]*profile.Influencer `json:"profiles"`
	Metadata metadata                       `json:"metadata"`
}

type metadata struct {
	LastUpdated   time.Time `json:"last_updated"`
	TotalProfiles int       `json:"total_profiles"`
	Version       string    `json:"version"`
}

// Stats summarizes store contents.
type Stats struct {
	TotalProfiles int       `json:"total_profiles"`
	LastUpdated   time.Time `json:"last_updated"`
	Usernames     []string  `json:"usernames"`
}

// Store is a keyed lookup/insert/update of enriched profiles with a
// staleness policy.
type Store struct {
	mu         sync.RWMutex
	doc        document
	path       string
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithStaleAfter overrides the freshness window (default 7 days).
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) { s.staleAfter = d }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source, for staleness tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the document at path, creating an empty one in memory if
// the file does not exist yet. A corrupt file is replaced by an empty
// document rather than failing the caller.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:       path,
		staleAfter: profile.DefaultStaleAfter,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	default:
		if jsonErr := json.Unmarshal(data, &s.doc); jsonErr != nil {
			s.logger.Warn("store document corrupt, starting empty", "path", path, "error", jsonErr)
			s.doc = document{}
		}
	}
	if s.doc.Profiles == nil {
		s.doc.Profiles = make(map[string]*profile.Influencer)
	}
	if s.doc.Metadata.Version == "" {
		s.doc.Metadata.Version = documentVersion
	}
	return s, nil
}

// Get returns the record for a username, or nil if absent. Staleness is
// not consulted; use Exists for cache-style lookups.
func (s *Store) Get(username string) *profile.Influencer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Profiles[strings.ToLower(username)]
}

// Exists looks up a username and classifies freshness. It returns
// (true, record) only for a fresh record; a stale or missing record
// returns false, with the stale record still provided when present so
// callers can fall back to it.
func (s *Store) Exists(username string) (bool, *profile.Influencer) {
	rec := s.Get(username)
	if rec == nil {
		return false, nil
	}
	if rec.StaleAt(s.now(), s.staleAfter) {
		s.logger.Debug("profile stale, will refresh", "username", username, "last_scraped", rec.LastScraped)
		return false, rec
	}
	return true, rec
}

// Upsert inserts or atomically replaces the record keyed by its
// lowercased username and flushes the document to disk. No partial
// overwrite is ever visible to readers.
func (s *Store) Upsert(rec *profile.Influencer) error {
	username := strings.ToLower(strings.TrimSpace(rec.Username))
	if username == "" {
		return fmt.Errorf("%w: empty username", profile.ErrStoreWrite)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.doc.Profiles[username]
	s.doc.Profiles[username] = rec
	s.doc.Metadata.TotalProfiles = len(s.doc.Profiles)
	s.doc.Metadata.LastUpdated = s.now()

	if err := s.flushLocked(); err != nil {
		// Roll back the in-memory state so a failed write leaves
		// nothing half-applied.
		if hadPrev {
			s.doc.Profiles[username] = prev
		} else {
			delete(s.doc.Profiles, username)
		}
		s.doc.Metadata.TotalProfiles = len(s.doc.Profiles)
		return fmt.Errorf("%w: %w", profile.ErrStoreWrite, err)
	}
	return nil
}

func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Stats returns store counts with usernames in sorted order.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.doc.Profiles))
	for u := range s.doc.Profiles {
		names = append(names, u)
	}
	sort.Strings(names)
	return Stats{
		TotalProfiles: len(s.doc.Profiles),
		LastUpdated:   s.doc.Metadata.LastUpdated,
		Usernames:     names,
	}
}

// All returns every stored record, ordered by username. Used by the
// offline embedding rebuild.
func (s *Store) All() []*profile.Influencer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.doc.Profiles))
	for u := range s.doc.Profiles {
		names = append(names, u)
	}
	sort.Strings(names)
	out := make([]*profile.Influencer, 0, len(names))
	for _, u := range names {
		out = append(out, s.doc.Profiles[u])
	}
	return out
}

// Find searches for a term by exact username, then by fuzzy name
// matching: exact, substring-in-either-direction, and word-level
// overlap for multi-word terms. The first hit wins; iteration order is
// sorted so results are stable.
func (s *Store) Find(term string) (*profile.Influencer, bool) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, false
	}

	if rec := s.Get(needle); rec != nil {
		return rec, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.doc.Profiles))
	for u := range s.doc.Profiles {
		names = append(names, u)
	}
	sort.Strings(names)

	for _, u := range names {
		rec := s.doc.Profiles[u]
		if nameMatches(needle, strings.ToLower(rec.Name)) || nameMatches(needle, strings.ToLower(rec.FullName)) {
			return rec, true
		}
	}
	return nil, false
}

func nameMatches(needle, stored string) bool {
	if stored == "" {
		return false
	}
	if needle == stored {
		return true
	}
	if strings.Contains(stored, needle) || strings.Contains(needle, stored) {
		return true
	}
	needleWords := strings.Fields(needle)
	if len(needleWords) < 2 {
		return false
	}
	storedWords := make(map[string]bool)
	for _, w := range strings.Fields(stored) {
		storedWords[w] = true
	}
	for _, w := range needleWords {
		if len(w) > 2 && storedWords[w] {
			return true
		}
	}
	return false
}
