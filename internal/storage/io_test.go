package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
)

func newTestStore(t *testing.T) (*Store, *FileIndex, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := LoadIndex(dir, "test-model")
	require.NoError(t, err)
	return NewStore(dir, idx, zerolog.Nop()), idx, dir
}

func hourlyData(t *testing.T, start string, hours int) *dataset.Dataset {
	t.Helper()
	base := ts(t, start)

	ds := dataset.New(evalExtent)
	values := make([]float64, 0, hours)
	for i := 0; i < hours; i++ {
		ds.Times = append(ds.Times, base.Add(time.Duration(i)*time.Hour))
		values = append(values, float64(i)+0.5)
	}
	ds.Variables["temperature"] = dataset.Series{Unit: "celsius", Values: values}
	return ds
}

func TestWriteReadRoundTrip(t *testing.T) {
	store, idx, _ := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	ds := hourlyData(t, "2026-01-01T00:00:00Z", 24)

	parts, err := store.Write(period, ds, "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, period, parts[0].Period)
	assert.True(t, parts[0].Complete)
	assert.Equal(t, 1, idx.Len())

	got, err := store.Read([]string{parts[0].Key}, nil)
	require.NoError(t, err)
	require.Equal(t, ds.Len(), got.Len())
	assert.Equal(t, ds.Variables["temperature"].Values, got.Variables["temperature"].Values)
	assert.Equal(t, ds.Variables["temperature"].Unit, got.Variables["temperature"].Unit)
	for i := range ds.Times {
		assert.True(t, ds.Times[i].Equal(got.Times[i]))
	}
}

func TestWriteChunksAlongTimeAxis(t *testing.T) {
	store, idx, _ := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-03T00:00:00Z")
	ds := hourlyData(t, "2026-01-01T00:00:00Z", 48)

	parts, err := store.Write(period, ds, "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z"), parts[0].Period)
	assert.Equal(t, evalPeriod(t, "2026-01-02T00:00:00Z", "2026-01-03T00:00:00Z"), parts[1].Period)

	// Reading both chunks reassembles the full series.
	got, err := store.Read([]string{parts[0].Key, parts[1].Key}, nil)
	require.NoError(t, err)
	assert.Equal(t, 48, got.Len())
	assert.Equal(t, ds.Variables["temperature"].Values, got.Variables["temperature"].Values)
}

func TestWriteSupersedesOverlappingPartitions(t *testing.T) {
	store, idx, dir := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	old, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	overlap := evalPeriod(t, "2026-01-01T12:00:00Z", "2026-01-02T12:00:00Z")
	fresh, err := store.Write(overlap, hourlyData(t, "2026-01-01T12:00:00Z", 24), "fetch-2", true, 24*time.Hour)
	require.NoError(t, err)

	// The old partition is gone from the index and its file is removed.
	_, ok := idx.Get(old[0].Key)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, old[0].File))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Read([]string{old[0].Key}, nil)
	assert.ErrorIs(t, err, ErrPartitionNotFound)

	got, err := store.Read([]string{fresh[0].Key}, nil)
	require.NoError(t, err)
	assert.Equal(t, 24, got.Len())
}

func TestWriteDoesNotSupersedeOtherFactors(t *testing.T) {
	store, idx, _ := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	_, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	wind := dataset.New(evalExtent)
	wind.Times = hourlyData(t, "2026-01-01T00:00:00Z", 24).Times
	wind.Variables["wind_speed"] = dataset.Series{Unit: "m/s", Values: make([]float64, 24)}

	_, err = store.Write(period, wind, "fetch-2", true, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
}

func TestReadProjectsRequestedFactors(t *testing.T) {
	store, _, _ := newTestStore(t)

	// One partition carries temperature plus wind, the next only temperature.
	both := hourlyData(t, "2026-01-01T00:00:00Z", 24)
	both.Variables["wind_speed"] = dataset.Series{Unit: "m/s", Values: make([]float64, 24)}
	first, err := store.Write(evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z"), both, "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	second, err := store.Write(evalPeriod(t, "2026-01-02T00:00:00Z", "2026-01-03T00:00:00Z"),
		hourlyData(t, "2026-01-02T00:00:00Z", 24), "fetch-2", true, 24*time.Hour)
	require.NoError(t, err)

	got, err := store.Read([]string{first[0].Key, second[0].Key}, []string{"temperature"})
	require.NoError(t, err)
	assert.Equal(t, 48, got.Len())
	assert.Equal(t, []string{"temperature"}, got.FactorNames())
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, idx, _ := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	parts, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Delete([]string{parts[0].Key}))
	assert.Equal(t, 0, idx.Len())

	// Deleting an already-absent key is a no-op.
	require.NoError(t, store.Delete([]string{parts[0].Key}))
	require.NoError(t, store.Delete([]string{"never-existed"}))
}

func TestWriteToMissingLocationFailsWithIOError(t *testing.T) {
	store, _, dir := newTestStore(t)
	require.NoError(t, os.RemoveAll(dir))

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	_, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
}

func TestReadMissingFileIsCorruption(t *testing.T) {
	store, _, dir := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	parts, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, parts[0].File)))

	_, err = store.Read([]string{parts[0].Key}, nil)
	var corruption *CorruptionError
	require.ErrorAs(t, err, &corruption)
}

func TestReadTamperedFileIsCorruption(t *testing.T) {
	store, _, dir := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	parts, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, parts[0].File), []byte("garbage"), 0o644))

	_, err = store.Read([]string{parts[0].Key}, nil)
	var corruption *CorruptionError
	require.ErrorAs(t, err, &corruption)
	assert.Contains(t, corruption.Reason, "checksum")
}

func TestLeftoverTempFileDoesNotAffectCommittedData(t *testing.T) {
	store, idx, dir := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	parts, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-1", true, 24*time.Hour)
	require.NoError(t, err)

	// A crash between temp-file write and rename leaves a .tmp behind.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interrupted.chunk.gz.tmp"), []byte("partial"), 0o644))

	reopened, err := LoadIndex(dir, "test-model")
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), reopened.Len())

	got, err := NewStore(dir, reopened, zerolog.Nop()).Read([]string{parts[0].Key}, nil)
	require.NoError(t, err)
	assert.Equal(t, 24, got.Len())
}

func TestIndexSurvivesReload(t *testing.T) {
	store, _, dir := newTestStore(t)

	period := evalPeriod(t, "2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z")
	parts, err := store.Write(period, hourlyData(t, "2026-01-01T00:00:00Z", 24), "fetch-abc", false, 24*time.Hour)
	require.NoError(t, err)

	reopened, err := LoadIndex(dir, "test-model")
	require.NoError(t, err)
	entry, ok := reopened.Get(parts[0].Key)
	require.True(t, ok)
	assert.Equal(t, "fetch-abc", entry.Fingerprint)
	assert.False(t, entry.Complete)
	assert.Equal(t, parts[0].Checksum, entry.Checksum)
}
