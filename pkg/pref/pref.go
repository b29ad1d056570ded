// Package pref persists small client preferences across sessions.
//
// Preferences live in a single JSON file and resolve conflicts with
// last-write-wins timestamps: a write carrying an older timestamp than
// the stored value is discarded. The gateway replays the persisted
// presence preference on every successful ready so the server learns
// the client's last-set status after a resume.
//
// Example:
//
//	store, _ := pref.Open(path)
//	theme := pref.New(store, "theme", "light")
//	theme.Set("dark")
//	current := theme.Get()
package pref

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type entry struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is a file-backed preference store. All preferences share one
// file; every accepted write rewrites it.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]entry
}

// Open loads the store at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pref: open %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("pref: parse %s: %w", path, err)
	}
	return s, nil
}

// get returns the stored entry for key.
func (s *Store) get(key string) (entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	return e, ok
}

// set stores raw under key with the given timestamp. Writes older than
// the stored value are discarded.
func (s *Store) set(key string, raw json.RawMessage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.values[key]; ok && at.Before(prev.UpdatedAt) {
		return nil
	}
	s.values[key] = entry{Value: raw, UpdatedAt: at}
	return s.flush()
}

// flush writes the store to disk via a temp file rename. Callers hold
// the mutex.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("pref: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".pref-*")
	if err != nil {
		return fmt.Errorf("pref: write %s: %w", s.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("pref: write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("pref: write %s: %w", s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("pref: write %s: %w", s.path, err)
	}
	return nil
}

// Pref is one typed preference bound to a store.
type Pref[T any] struct {
	store *Store
	key   string
	def   T
}

// New binds a preference with the given key and default value. The
// default is returned until a value is stored.
func New[T any](store *Store, key string, def T) *Pref[T] {
	return &Pref[T]{store: store, key: key, def: def}
}

// Key returns the preference's storage key.
func (p *Pref[T]) Key() string { return p.key }

// Get returns the stored value, or the default when nothing is stored
// or the stored bytes no longer decode into T.
func (p *Pref[T]) Get() T {
	e, ok := p.store.get(p.key)
	if !ok {
		return p.def
	}
	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return p.def
	}
	return v
}

// Stored reports whether a value has been stored under this key.
func (p *Pref[T]) Stored() bool {
	_, ok := p.store.get(p.key)
	return ok
}

// UpdatedAt returns when the stored value was last written.
func (p *Pref[T]) UpdatedAt() (time.Time, bool) {
	e, ok := p.store.get(p.key)
	return e.UpdatedAt, ok
}

// Set stores a new value stamped with the current time.
func (p *Pref[T]) Set(v T) error {
	return p.SetAt(v, time.Now())
}

// SetAt stores a value with an explicit timestamp; older timestamps
// lose to the stored value.
func (p *Pref[T]) SetAt(v T, at time.Time) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pref: encode %s: %w", p.key, err)
	}
	return p.store.set(p.key, raw, at)
}
