package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

const (
	chunkFileSuffix = ".chunk.gz"

	// Transient storage failures are retried this many times before an
	// IOError is surfaced.
	ioAttempts   = 3
	ioRetryDelay = 50 * time.Millisecond
)

// Store reads and writes chunked array data under one model's storage root,
// addressed through the file index.
type Store struct {
	dir   string
	index *FileIndex
	log   zerolog.Logger
}

// NewStore creates a store over the given directory and index.
func NewStore(dir string, index *FileIndex, log zerolog.Logger) *Store {
	return &Store{dir: dir, index: index, log: log}
}

// Write persists data covering period as one or more partitions chunked
// along the time axis. Existing live partitions overlapped by the new extent
// are superseded only after the new chunks and index state are durably
// committed, so no sub-range ever loses its last valid partition.
func (s *Store) Write(period meteo.Period, ds *dataset.Dataset, fingerprint string, complete bool, chunk time.Duration) ([]Partition, error) {
	if chunk <= 0 {
		chunk = period.Duration()
	}
	factors := ds.FactorNames()
	writtenAt := time.Now().UTC()

	var written []Partition
	cleanup := func() {
		for _, p := range written {
			_ = os.Remove(filepath.Join(s.dir, p.File))
		}
	}

	for start := period.Start; start.Before(period.End); start = start.Add(chunk) {
		end := start.Add(chunk)
		if end.After(period.End) {
			end = period.End
		}
		chunkPeriod := meteo.Period{Start: start, End: end}

		part, err := s.writeChunk(chunkPeriod, ds.SliceTime(chunkPeriod), factors, fingerprint, complete, writtenAt)
		if err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, part)
	}

	superseded := s.supersededEntries(period, ds.Extent, factors, written)
	keys := make([]string, 0, len(superseded))
	for _, p := range superseded {
		keys = append(keys, p.Key)
	}
	if err := s.index.commit(written, keys); err != nil {
		cleanup()
		return nil, err
	}

	// Old chunk files go only after the new state is committed. A leftover
	// file is harmless; a missing live one is corruption.
	for _, p := range superseded {
		if err := os.Remove(filepath.Join(s.dir, p.File)); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("file", p.File).Msg("could not remove superseded chunk file")
		}
	}
	return written, nil
}

func (s *Store) writeChunk(period meteo.Period, ds *dataset.Dataset, factors []string, fingerprint string, complete bool, writtenAt time.Time) (Partition, error) {
	id := uuid.NewString()
	fileName := id + chunkFileSuffix
	path := filepath.Join(s.dir, fileName)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(ds); err != nil {
		return Partition{}, &IOError{Op: "encode chunk", Path: path, Err: err}
	}
	if err := gz.Close(); err != nil {
		return Partition{}, &IOError{Op: "compress chunk", Path: path, Err: err}
	}
	raw := buf.Bytes()

	sum := sha256.Sum256(raw)
	if err := writeFileDurable(path, raw); err != nil {
		return Partition{}, err
	}

	return Partition{
		ID:          id,
		Key:         PartitionKey(period, ds.Extent, factors),
		Period:      period,
		Extent:      ds.Extent,
		Factors:     meteo.NormalizeFactors(factors),
		WrittenAt:   writtenAt,
		Fingerprint: fingerprint,
		Complete:    complete,
		File:        fileName,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}

// supersededEntries lists the live partitions replaced by a write over the
// given extent. A write that reuses an existing signature supersedes the old
// partition under that key, so its chunk file is reclaimed too.
func (s *Store) supersededEntries(period meteo.Period, extent meteo.Extent, factors []string, written []Partition) []Partition {
	fresh := make(map[string]struct{}, len(written))
	for _, p := range written {
		fresh[p.ID] = struct{}{}
	}

	var entries []Partition
	for _, p := range s.index.Snapshot() {
		if _, ok := fresh[p.ID]; ok {
			continue
		}
		if p.Period.Overlaps(period) && p.Extent.Overlaps(extent) && factorsIntersect(p.Factors, factors) {
			entries = append(entries, p)
		}
	}
	return entries
}

// Read loads the named partitions, projects each onto the requested factors
// and concatenates them along the time axis into one contiguous dataset. The
// projection happens per partition because a stored partition may carry a
// superset of the requested factors while another carries exactly them; the
// merge requires identical variable sets. A nil factor list keeps every
// variable. A key that is indexed but absent or corrupt in durable storage
// fails with a CorruptionError.
func (s *Store) Read(keys []string, factors []string) (*dataset.Dataset, error) {
	parts := make([]*dataset.Dataset, 0, len(keys))
	entries := make([]Partition, 0, len(keys))
	for _, key := range keys {
		entry, ok := s.index.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, key)
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		ds, err := s.readChunk(entry)
		if err != nil {
			return nil, err
		}
		if len(factors) > 0 {
			ds = ds.Select(factors)
		}
		parts = append(parts, ds)
	}
	return dataset.MergeTime(parts...)
}

func (s *Store) readChunk(entry Partition) (*dataset.Dataset, error) {
	path := filepath.Join(s.dir, entry.File)
	raw, err := readFileRetry(path)
	if os.IsNotExist(err) {
		return nil, &CorruptionError{Key: entry.Key, Path: path, Reason: "indexed chunk file is missing"}
	}
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != entry.Checksum {
		return nil, &CorruptionError{Key: entry.Key, Path: path, Reason: "chunk checksum mismatch"}
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &CorruptionError{Key: entry.Key, Path: path, Reason: "chunk is not valid gzip: " + err.Error()}
	}
	defer gz.Close()

	var ds dataset.Dataset
	if err := gob.NewDecoder(gz).Decode(&ds); err != nil {
		return nil, &CorruptionError{Key: entry.Key, Path: path, Reason: "chunk decode failed: " + err.Error()}
	}
	return &ds, nil
}

// Delete removes the named partitions from both durable storage and the
// index. Deleting an already-absent key is a no-op.
func (s *Store) Delete(keys []string) error {
	var present []string
	for _, key := range keys {
		if _, ok := s.index.Get(key); ok {
			present = append(present, key)
		}
	}
	if len(present) == 0 {
		return nil
	}

	files := make([]string, 0, len(present))
	for _, key := range present {
		if entry, ok := s.index.Get(key); ok {
			files = append(files, entry.File)
		}
	}

	if err := s.index.commit(nil, present); err != nil {
		return err
	}
	for _, file := range files {
		if err := os.Remove(filepath.Join(s.dir, file)); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("file", file).Msg("could not remove chunk file of deleted partition")
		}
	}
	return nil
}

func writeFileDurable(path string, raw []byte) error {
	var lastErr error
	for attempt := 0; attempt < ioAttempts; attempt++ {
		if lastErr = writeFileOnce(path, raw); lastErr == nil {
			return nil
		}
		time.Sleep(ioRetryDelay)
	}
	return lastErr
}

func writeFileOnce(path string, raw []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "create chunk", Path: tmp, Err: err}
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return &IOError{Op: "write chunk", Path: tmp, Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return &IOError{Op: "sync chunk", Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "close chunk", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &IOError{Op: "commit chunk", Path: path, Err: err}
	}
	return nil
}

func readFileRetry(path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < ioAttempts; attempt++ {
		raw, err := os.ReadFile(path)
		if err == nil {
			return raw, nil
		}
		if os.IsNotExist(err) {
			return nil, err
		}
		lastErr = err
		time.Sleep(ioRetryDelay)
	}
	return nil, &IOError{Op: "read chunk", Path: path, Err: lastErr}
}

func factorsIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, f := range a {
		set[f] = struct{}{}
	}
	for _, f := range b {
		if _, ok := set[f]; ok {
			return true
		}
	}
	return false
}
