// Package storage implements the cache layer between a weather-data model
// and its durable on-disk partition store: coverage evaluation, chunked
// array I/O, the partition catalog, and the orchestrating handler.
package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/wpl-go/weather-provider-storage/internal/dataset"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
	"github.com/wpl-go/weather-provider-storage/internal/model"
)

// Validator checks harmonized datasets before they are written. The default
// enforces the dataset package's schema invariants; callers may inject a
// stricter harmonization check.
type Validator interface {
	Validate(ds *dataset.Dataset) error
}

type schemaValidator struct{}

func (schemaValidator) Validate(ds *dataset.Dataset) error { return ds.Validate() }

// FailedRange marks one requested sub-range that could not be satisfied.
type FailedRange struct {
	Period meteo.Period `json:"period"`
	Err    error        `json:"-"`
	Reason string       `json:"reason"`
}

// Result is the outcome of a data request: best-effort merged data covering
// the satisfiable part of the request, plus a manifest of the sub-ranges
// that failed.
type Result struct {
	Data        *dataset.Dataset
	Unsatisfied []FailedRange
}

// Handler mediates between one model and its local partition cache. It is
// the unit of mutual exclusion: at most one write-or-clear runs at a time
// against the model's index and storage location, while reads proceed
// concurrently over consistent snapshots.
type Handler struct {
	mu sync.RWMutex

	settings  Settings
	model     model.Model
	index     *FileIndex
	store     *Store
	validator Validator
	circuit   *gobreaker.CircuitBreaker
	fetchCfg  FetchConfig
	log       zerolog.Logger
	metrics   *Metrics
	now       func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithFetchConfig overrides the live-fetch resilience settings.
func WithFetchConfig(cfg FetchConfig) Option {
	return func(h *Handler) { h.fetchCfg = cfg }
}

// WithValidator replaces the schema validator invoked before writes.
func WithValidator(v Validator) Option {
	return func(h *Handler) { h.validator = v }
}

// WithClock replaces the handler's time source.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler opens (or initializes) the storage location for the model and
// loads its partition catalog.
func NewHandler(settings Settings, m model.Model, opts ...Option) (*Handler, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.ModelCode != m.Code() {
		return nil, fmt.Errorf("storage settings for %q cannot serve model %q", settings.ModelCode, m.Code())
	}
	if err := os.MkdirAll(settings.Location, 0o750); err != nil {
		return nil, &IOError{Op: "create storage root", Path: settings.Location, Err: err}
	}

	index, err := LoadIndex(settings.Location, settings.ModelCode)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		settings:  settings,
		model:     m,
		index:     index,
		validator: schemaValidator{},
		circuit:   newFetchBreaker(m.Code()),
		fetchCfg:  DefaultFetchConfig(),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.store = NewStore(settings.Location, index, h.log)
	h.metrics.setPartitions(settings.ModelCode, index.Len())
	return h, nil
}

// Settings returns the handler's immutable storage settings.
func (h *Handler) Settings() Settings { return h.settings }

// FileIndex returns a snapshot of the current partition catalog for
// diagnostics and upstream cache-status reporting.
func (h *Handler) FileIndex() []Partition {
	return h.index.Snapshot()
}

// Evaluation classifies the request against the current index snapshot
// without touching storage or the upstream model.
func (h *Handler) Evaluation(req meteo.Request) (CoverageReport, error) {
	if err := req.Validate(); err != nil {
		return CoverageReport{}, err
	}
	return Evaluate(req, h.index.Snapshot(), h.settings, req.EffectiveAsOf(h.now())), nil
}

// GetModelData answers a data request from cache where possible and from
// the model's live-fetch capability where not. The fresh cached data is
// captured under the same read lock as the coverage evaluation, so a
// concurrent write superseding a fresh partition mid-request cannot fail
// the read. Missing and stale sub-ranges are fetched concurrently; each
// successful fetch is validated, written and merged with the captured
// cached data. Failed sub-ranges degrade the result to a partial one
// unless strict mode is set.
func (h *Handler) GetModelData(ctx context.Context, req meteo.Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	asOf := req.EffectiveAsOf(h.now())

	h.mu.RLock()
	report := Evaluate(req, h.index.Snapshot(), h.settings, asOf)
	cached, err := h.store.Read(report.FreshKeys(), req.Factors)
	h.mu.RUnlock()
	if err != nil {
		h.metrics.observeRequest(h.settings.ModelCode, "error")
		return nil, err
	}
	h.metrics.observeSegments(h.settings.ModelCode, report)

	targets := report.FetchTargets()
	h.log.Debug().
		Str("model", h.settings.ModelCode).
		Stringer("period", req.Period).
		Int("fetch_targets", len(targets)).
		Msg("coverage evaluated")

	fetched, unsatisfied := h.refreshRanges(ctx, req, targets)

	merged, err := dataset.MergeTime(append([]*dataset.Dataset{cached}, fetched...)...)
	if err != nil {
		h.metrics.observeRequest(h.settings.ModelCode, "error")
		return nil, err
	}
	merged = merged.SliceTime(req.Period).Select(req.Factors)

	if len(unsatisfied) > 0 {
		if h.settings.Strict {
			h.metrics.observeRequest(h.settings.ModelCode, "error")
			return nil, fmt.Errorf("%w: %d sub-range(s) failed, first: %v",
				ErrUnsatisfiedRequest, len(unsatisfied), unsatisfied[0].Err)
		}
		h.metrics.observeRequest(h.settings.ModelCode, "partial")
		return &Result{Data: merged, Unsatisfied: unsatisfied}, nil
	}

	h.metrics.observeRequest(h.settings.ModelCode, "ok")
	return &Result{Data: merged}, nil
}

// refreshRanges fetches, validates and writes the given periods. Fetches run
// concurrently; writes serialize on the handler's write lock. The fetched
// datasets are returned in memory so the caller merges what it wrote itself
// instead of re-reading an index a concurrent writer may have reshaped.
// Failures are collected per sub-range and never abort the others.
func (h *Handler) refreshRanges(ctx context.Context, req meteo.Request, targets []meteo.Period) ([]*dataset.Dataset, []FailedRange) {
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		fetched     []*dataset.Dataset
		unsatisfied []FailedRange
	)

	for _, target := range targets {
		target := target
		wg.Add(1)
		go func() {
			defer wg.Done()

			ds, err := h.refreshOne(ctx, target, req.Extent, req.Factors)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.log.Warn().Err(err).
					Str("model", h.settings.ModelCode).
					Stringer("period", target).
					Msg("sub-range refresh failed")
				unsatisfied = append(unsatisfied, FailedRange{Period: target, Err: err, Reason: err.Error()})
				return
			}
			if ds.Len() > 0 {
				fetched = append(fetched, ds)
			}
		}()
	}
	wg.Wait()

	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].Times[0].Before(fetched[j].Times[0])
	})
	sort.Slice(unsatisfied, func(i, j int) bool {
		return unsatisfied[i].Period.Start.Before(unsatisfied[j].Period.Start)
	})
	return fetched, unsatisfied
}

// refreshOne fetches one period, writes the full dataset to storage and
// returns it sliced to the period and projected onto the requested factors.
func (h *Handler) refreshOne(ctx context.Context, period meteo.Period, extent meteo.Extent, factors []string) (*dataset.Dataset, error) {
	data, complete, err := fetchWithResilience(ctx, h.fetchCfg, h.circuit, h.model, period, extent, factors)
	if err != nil {
		h.metrics.observeFetch(h.settings.ModelCode, "failure")
		return nil, err
	}
	h.metrics.observeFetch(h.settings.ModelCode, "success")

	if err := h.validator.Validate(data); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.store.Write(period, data, uuid.NewString(), complete, h.settings.ChunkDuration); err != nil {
		return nil, err
	}
	h.metrics.setPartitions(h.settings.ModelCode, h.index.Len())
	return data.SliceTime(period).Select(factors), nil
}

// UpdateModelData forces a live re-fetch and write for the given extent
// regardless of current freshness. Used for manual refresh and backfill.
// Fail-fast: any error aborts without partial index mutation.
func (h *Handler) UpdateModelData(ctx context.Context, period meteo.Period, extent meteo.Extent, factors []string) error {
	req := meteo.Request{Period: period, Extent: extent, Factors: factors}
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := h.refreshOne(ctx, period, extent, meteo.NormalizeFactors(factors)); err != nil {
		return err
	}
	h.log.Info().
		Str("model", h.settings.ModelCode).
		Stringer("period", period).
		Msg("forced refresh committed")
	return nil
}

// ClearModelData deletes the partitions intersecting period, or every
// partition when period is nil. The index never outlives the deleted data.
func (h *Handler) ClearModelData(ctx context.Context, period *meteo.Period) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var keys []string
	for _, p := range h.index.Snapshot() {
		if period == nil || p.Period.Overlaps(*period) {
			keys = append(keys, p.Key)
		}
	}
	if err := h.store.Delete(keys); err != nil {
		return err
	}
	h.metrics.setPartitions(h.settings.ModelCode, h.index.Len())
	h.log.Info().
		Str("model", h.settings.ModelCode).
		Int("removed", len(keys)).
		Msg("cleared model data")
	return nil
}

// Sweep removes partitions older than the configured retention. It runs
// under the write lock so it can never delete a partition mid-read. Returns
// the number of partitions removed.
func (h *Handler) Sweep(now time.Time) (int, error) {
	if h.settings.Retention <= 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := now.UTC().Add(-h.settings.Retention)
	var keys []string
	for _, p := range h.index.Snapshot() {
		if p.WrittenAt.Before(cutoff) {
			keys = append(keys, p.Key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := h.store.Delete(keys); err != nil {
		return 0, err
	}
	h.metrics.setPartitions(h.settings.ModelCode, h.index.Len())
	h.metrics.observeSweep(h.settings.ModelCode, len(keys))
	h.log.Info().
		Str("model", h.settings.ModelCode).
		Int("removed", len(keys)).
		Msg("retention sweep removed partitions")
	return len(keys), nil
}
