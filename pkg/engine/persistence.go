package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotFile is the name of the snapshot written inside the data directory.
const SnapshotFile = "store.json"

// Persistence handles the disk I/O for the MemStore.
type Persistence struct {
	DataDir string
	// Logf receives warnings about unreadable snapshots. Defaults to log.Printf.
	Logf func(format string, args ...any)
	mu   sync.Mutex // Protects concurrent writes to the filesystem
}

// snapshot is the on-disk layout. Values are base64 encoded by encoding/json.
type snapshot struct {
	Version int               `json:"version"`
	Data    map[string][]byte `json:"data"`
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Persistence{DataDir: dir}, nil
}

func (p *Persistence) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
		return
	}
	log.Printf("[engine] "+format, args...)
}

// Save writes the whole key space to disk atomically.
func (p *Persistence) Save(data map[string][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, SnapshotFile)
	tempPath := filePath + ".tmp"

	bytes, err := json.Marshal(snapshot{Version: 1, Data: data})
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}

	// Either the old snapshot or the new one survives a crash, never a torn file.
	return os.Rename(tempPath, filePath)
}

// LoadAll returns the data found in the snapshot, or an empty map when the
// directory holds no snapshot yet.
func (p *Persistence) LoadAll() (map[string][]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := os.ReadFile(filepath.Join(p.DataDir, SnapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		p.logf("could not unmarshal snapshot %s: %v", SnapshotFile, err)
		return make(map[string][]byte), nil
	}
	if snap.Data == nil {
		snap.Data = make(map[string][]byte)
	}
	return snap.Data, nil
}

// OpenMemStore loads the snapshot in dir and returns a MemStore persisting
// back into it.
func OpenMemStore(dir string) (*MemStore, error) {
	p, err := NewPersistence(dir)
	if err != nil {
		return nil, err
	}
	data, err := p.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return NewMemStore(data, p), nil
}
