// Package store caches collections by label and projects by key, and
// persists their raw sources as JSONL snapshots.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/ticket"

	"github.com/rs/zerolog/log"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrProjectNotFound    = errors.New("project not found")
)

type slot struct {
	mu sync.RWMutex
	c  *collection.Collection
}

// Store is safe for concurrent use. Each collection has its own lock so
// that bulk updates on one label do not block readers of another.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*slot
	projects    map[string]*collection.Project
}

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]*slot),
		projects:    make(map[string]*collection.Project),
	}
}

// Put stores c under its label, replacing any previous collection.
func (s *Store) Put(c *collection.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.collections[c.Label()]; ok {
		sl.mu.Lock()
		sl.c = c
		sl.mu.Unlock()
		return
	}
	s.collections[c.Label()] = &slot{c: c}
}

func (s *Store) slot(label string) (*slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.collections[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, label)
	}
	return sl, nil
}

// View runs fn with shared access to the collection stored under label.
func (s *Store) View(label string, fn func(*collection.Collection) error) error {
	sl, err := s.slot(label)
	if err != nil {
		return err
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return fn(sl.c)
}

// Update runs fn with exclusive access to the collection stored under
// label. Use it for in-place recomputation and flow-log expansion.
func (s *Store) Update(label string, fn func(*collection.Collection) error) error {
	sl, err := s.slot(label)
	if err != nil {
		return err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return fn(sl.c)
}

// Collection returns the collection stored under label. Callers that
// mutate it concurrently with other users should go through Update.
func (s *Store) Collection(label string) (*collection.Collection, error) {
	sl, err := s.slot(label)
	if err != nil {
		return nil, err
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.c, nil
}

// Labels lists the stored collection labels in sorted order.
func (s *Store) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.collections))
	for l := range s.collections {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Delete removes a collection. It reports whether one was stored.
func (s *Store) Delete(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.collections[label]
	delete(s.collections, label)
	return ok
}

// PutProject stores p under its key, replacing any previous project.
func (s *Store) PutProject(p *collection.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.Key] = p
}

// Project returns the project stored under key.
func (s *Store) Project(key string) (*collection.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, key)
	}
	return p, nil
}

// Projects returns every stored project ordered by key.
func (s *Store) Projects() []*collection.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*collection.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// snapshotLine is one JSONL record. The query is repeated on every line so
// that a file remains self-describing when lines are skipped.
type snapshotLine struct {
	Query  string        `json:"query"`
	Source ticket.Source `json:"source"`
}

// SnapshotPath returns the file used for label under cacheDir.
func SnapshotPath(cacheDir, label string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, label)
	return filepath.Join(cacheDir, name+".jsonl")
}

// Save writes the sources of the collection stored under label to a JSONL
// snapshot, replacing the previous file atomically.
func (s *Store) Save(cacheDir, label string) error {
	var (
		query   string
		sources []ticket.Source
	)
	err := s.View(label, func(c *collection.Collection) error {
		query, sources = c.Query(), c.Sources()
		return nil
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := SnapshotPath(cacheDir, label)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, src := range sources {
		if err := encoder.Encode(snapshotLine{Query: query, Source: src}); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode ticket %s: %w", src.Ticket.Key, err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("label", label).Int("count", len(sources)).Msg("Collection snapshot saved")
	return nil
}

// Load rebuilds the collection for label from its JSONL snapshot and stores
// it. A missing snapshot yields ErrCollectionNotFound.
func (s *Store) Load(cacheDir, label string, opts ticket.Options) (*collection.Collection, error) {
	path := SnapshotPath(cacheDir, label)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no snapshot for %q", ErrCollectionNotFound, label)
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var (
		query   string
		sources []ticket.Source
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line snapshotLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			log.Warn().Err(err).Str("label", label).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		query = line.Query
		sources = append(sources, line.Source)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	c := collection.FromSources(query, label, sources, opts)
	s.Put(c)
	log.Info().Str("label", label).Int("count", c.Len()).Msg("Loaded collection from snapshot")
	return c, nil
}
