package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store is the durable processing ledger: a key/value map from dataset
// filename to progress flags, persisted as a single JSON object. Every
// mutation rewrites the file through a temp-file rename so a crash mid-write
// can never leave a corrupt checkpoint behind.
//
// The Store itself is not safe for concurrent use; exactly one owner is
// expected to serialize access to it (see Service).
type Store struct {
	path   string
	states map[string]Flag
}

// Open loads the checkpoint file at path. A missing, empty, or whitespace
// file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, states: make(map[string]Flag)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the checkpoint file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	s.states = make(map[string]Flag)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read checkpoint file %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if err := json.Unmarshal(data, &s.states); err != nil {
		return fmt.Errorf("parse checkpoint file %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.states, "", "    ")
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync checkpoint temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}

// Get returns the flags recorded for key. An absent key reads as FlagNone.
func (s *Store) Get(key string) Flag {
	return s.states[key]
}

// Add ORs flag into the entry for key, creating it when absent, and returns
// the resulting mask.
func (s *Store) Add(key string, flag Flag) (Flag, error) {
	s.states[key] |= flag
	if err := s.save(); err != nil {
		return FlagNone, err
	}
	return s.states[key], nil
}

// Subtract clears flag from the entry for key. Subtracting from an absent
// key records an explicit zero entry, matching Add's create-on-touch shape.
func (s *Store) Subtract(key string, flag Flag) (Flag, error) {
	s.states[key] &^= flag
	if err := s.save(); err != nil {
		return FlagNone, err
	}
	return s.states[key], nil
}

// Lock attempts to take the exclusive processing lock for key. It returns
// false without mutating anything when the lock is already held; otherwise
// it sets FlagLocked and returns true. This is the store's sole
// compare-and-set primitive.
func (s *Store) Lock(key string) (bool, error) {
	if s.Get(key).Has(FlagLocked) {
		return false, nil
	}
	if _, err := s.Add(key, FlagLocked); err != nil {
		return false, err
	}
	return true, nil
}

// Unlock releases the processing lock for key.
func (s *Store) Unlock(key string) error {
	_, err := s.Subtract(key, FlagLocked)
	return err
}

// UnlockAll reloads the checkpoint file and clears the lock flag on every
// key. It runs once at process start, before any worker, to release locks
// abandoned by an unclean shutdown.
func (s *Store) UnlockAll() error {
	if err := s.load(); err != nil {
		return err
	}
	for key := range s.states {
		s.states[key] &^= FlagLocked
	}
	return s.save()
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if _, ok := s.states[key]; !ok {
		return nil
	}
	delete(s.states, key)
	return s.save()
}

// Keys returns all checkpointed dataset filenames in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.states))
	for key := range s.states {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
