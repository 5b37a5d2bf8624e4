package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

const indexFileName = "index.json"

// Partition is the metadata for one persisted slice of cached array data.
// Partitions are superseded by later overlapping writes, never mutated.
type Partition struct {
	ID          string       `json:"id"`
	Key         string       `json:"key"`
	Period      meteo.Period `json:"period"`
	Extent      meteo.Extent `json:"extent"`
	Factors     []string     `json:"factors"`
	WrittenAt   time.Time    `json:"writtenAt"`
	Fingerprint string       `json:"fingerprint"`
	Complete    bool         `json:"complete"`
	File        string       `json:"file"`
	Checksum    string       `json:"checksum"`
}

// PartitionKey builds the normalized time/space/variable signature under
// which a partition is indexed.
func PartitionKey(period meteo.Period, extent meteo.Extent, factors []string) string {
	return fmt.Sprintf("%d-%d|%s|%s",
		period.Start.UnixNano(), period.End.UnixNano(),
		extent, strings.Join(meteo.NormalizeFactors(factors), ","))
}

// Matches reports whether the partition can serve a request for the given
// extent and factors: its factor set must be a superset and its extent must
// cover the requested box.
func (p Partition) Matches(extent meteo.Extent, factors []string) bool {
	return meteo.FactorsSuperset(p.Factors, factors) && p.Extent.Covers(extent)
}

// indexFile is the on-disk shape of the catalog.
type indexFile struct {
	ModelCode  string      `json:"modelCode"`
	SavedAt    time.Time   `json:"savedAt"`
	Partitions []Partition `json:"partitions"`
}

// FileIndex is the catalog mapping partition keys to partition metadata. It
// is mirrored to a JSON file in the model's storage root so the cache
// survives restarts. Only storage I/O mutates it; readers work on snapshots.
type FileIndex struct {
	mu        sync.RWMutex
	dir       string
	modelCode string
	entries   map[string]Partition
}

// LoadIndex opens (or initializes) the index stored under dir.
func LoadIndex(dir, modelCode string) (*FileIndex, error) {
	idx := &FileIndex{
		dir:       dir,
		modelCode: modelCode,
		entries:   make(map[string]Partition),
	}

	path := filepath.Join(dir, indexFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read index", Path: path, Err: err}
	}

	var file indexFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, &CorruptionError{Key: indexFileName, Path: path, Reason: "index file is not valid JSON: " + err.Error()}
	}
	for _, p := range file.Partitions {
		idx.entries[p.Key] = p
	}
	return idx, nil
}

// Get returns the partition stored under key.
func (idx *FileIndex) Get(key string) (Partition, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	p, ok := idx.entries[key]
	return p, ok
}

// Len returns the number of live partitions.
func (idx *FileIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Snapshot returns a copy of all live partitions, sorted by period start and
// then by key. Safe to iterate while writes continue.
func (idx *FileIndex) Snapshot() []Partition {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]Partition, 0, len(idx.entries))
	for _, p := range idx.entries {
		p.Factors = append([]string(nil), p.Factors...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Period.Start.Equal(out[j].Period.Start) {
			return out[i].Period.Start.Before(out[j].Period.Start)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// commit applies one atomic index mutation: inserts the new partitions,
// drops the removed keys, and persists the result. The durable index file is
// replaced via temp-file rename so a crash leaves either the old or the new
// catalog, never a torn one.
func (idx *FileIndex) commit(add []Partition, remove []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	backup := make(map[string]Partition, len(idx.entries))
	for k, v := range idx.entries {
		backup[k] = v
	}

	for _, key := range remove {
		delete(idx.entries, key)
	}
	for _, p := range add {
		idx.entries[p.Key] = p
	}

	if err := idx.persistLocked(); err != nil {
		idx.entries = backup
		return err
	}
	return nil
}

func (idx *FileIndex) persistLocked() error {
	file := indexFile{
		ModelCode:  idx.modelCode,
		SavedAt:    time.Now().UTC(),
		Partitions: make([]Partition, 0, len(idx.entries)),
	}
	for _, p := range idx.entries {
		file.Partitions = append(file.Partitions, p)
	}
	sort.Slice(file.Partitions, func(i, j int) bool { return file.Partitions[i].Key < file.Partitions[j].Key })

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return &IOError{Op: "encode index", Path: indexFileName, Err: err}
	}

	path := filepath.Join(idx.dir, indexFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return &IOError{Op: "write index", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &IOError{Op: "commit index", Path: path, Err: err}
	}
	return nil
}
