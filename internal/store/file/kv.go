package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/studiodesk/internal/store"
)

// ErrChecksumMismatch is returned when a stored value fails its integrity check.
var ErrChecksumMismatch = errors.New("checksum mismatch")

const stateFile = "state.json"

// Entry is a single stored value with its checksum.
type Entry struct {
	Value     []byte    `json:"value"`
	CRC       uint64    `json:"crc"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State represents the on-disk state file.
type State struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// KV persists key/value pairs in a single JSON file on the local filesystem.
type KV struct {
	mu      sync.Mutex
	baseDir string
}

// NewKV creates a new file backed store.
// If baseDir is empty, uses ~/.studiodesk/
func NewKV(baseDir string) (*KV, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".studiodesk")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	kv := &KV{baseDir: baseDir}

	if err := kv.ensureState(); err != nil {
		return nil, err
	}

	log.Debug().Str("baseDir", baseDir).Msg("file store initialized")

	return kv, nil
}

// Path returns the location of the state file.
func (s *KV) Path() string {
	return filepath.Join(s.baseDir, stateFile)
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState()
	if err != nil {
		return nil, err
	}

	entry, ok := st.Entries[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	if checksum(entry.Value) != entry.CRC {
		return nil, fmt.Errorf("%w: key %q", ErrChecksumMismatch, key)
	}

	return entry.Value, nil
}

// Put stores value under key.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState()
	if err != nil {
		// A corrupt state file is replaced rather than blocking every write.
		log.Warn().Err(err).Str("path", s.Path()).Msg("discarding unreadable state file")
		st = newState()
	}

	st.Entries[key] = Entry{
		Value:     append([]byte(nil), value...),
		CRC:       checksum(value),
		UpdatedAt: time.Now().UTC(),
	}

	return s.saveState(st)
}

// Delete removes key, missing keys are ignored.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadState()
	if err != nil {
		log.Warn().Err(err).Str("path", s.Path()).Msg("discarding unreadable state file")
		return s.saveState(newState())
	}

	if _, ok := st.Entries[key]; !ok {
		return nil
	}

	delete(st.Entries, key)

	return s.saveState(st)
}

// Close is a no-op for the file store.
func (s *KV) Close() error {
	return nil
}

func newState() *State {
	return &State{
		Version: 1,
		Entries: make(map[string]Entry),
	}
}

// ensureState creates an empty state file if it doesn't exist.
func (s *KV) ensureState() error {
	if _, err := os.Stat(s.Path()); err == nil {
		return nil
	}

	return s.saveState(newState())
}

// loadState reads the state file.
func (s *KV) loadState() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return newState(), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	if st.Entries == nil {
		st.Entries = make(map[string]Entry)
	}

	return &st, nil
}

// saveState writes the state file atomically.
func (s *KV) saveState(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temp file first
	tempPath := s.Path() + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.Path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// checksum computes the CRC64-NVME checksum of value.
func checksum(value []byte) uint64 {
	h := crc64nvme.New()
	h.Write(value)
	return h.Sum64()
}
