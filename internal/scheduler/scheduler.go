package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/wpl-go/weather-provider-storage/internal/config"
	"github.com/wpl-go/weather-provider-storage/internal/controller"
	"github.com/wpl-go/weather-provider-storage/internal/locations"
	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

// Scheduler runs the background maintenance of the caches: a low-priority
// retention sweep across all handlers, and per-model auto-refresh jobs for
// the models the catalog configures one for.
type Scheduler struct {
	scheduler     *gocron.Scheduler
	ctrl          *controller.Controller
	catalog       *config.Catalog
	resolver      *locations.Resolver
	sweepInterval time.Duration
	log           zerolog.Logger
}

// New creates a scheduler over the controller's handlers.
func New(ctrl *controller.Controller, cat *config.Catalog, resolver *locations.Resolver, sweepInterval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		ctrl:          ctrl,
		catalog:       cat,
		resolver:      resolver,
		sweepInterval: sweepInterval,
		log:           log,
	}
}

// Start schedules the sweep and auto-refresh jobs and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	if s.sweepInterval > 0 {
		if _, err := s.scheduler.Every(s.sweepInterval).Do(s.runSweep); err != nil {
			return err
		}
	}

	for _, src := range s.catalog.Sources {
		for _, spec := range src.Models {
			if spec.AutoRefresh == nil || spec.AutoRefresh.Interval.Std() <= 0 {
				continue
			}
			sourceID, modelCode, refresh := src.ID, spec.Code, *spec.AutoRefresh
			if _, err := s.scheduler.Every(refresh.Interval.Std()).Do(func() {
				s.runAutoRefresh(sourceID, modelCode, refresh)
			}); err != nil {
				return err
			}
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// runSweep sweeps every handler concurrently. Handler locking keeps sweeps
// from racing writes; a failing handler never blocks the others.
func (s *Scheduler) runSweep() {
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for key, h := range s.ctrl.Handlers() {
		key, h := key, h
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed, err := h.Sweep(now)
			if err != nil {
				s.log.Error().Err(err).Str("handler", key).Msg("retention sweep failed")
				return
			}
			if removed > 0 {
				s.log.Info().Str("handler", key).Int("removed", removed).Msg("retention sweep done")
			}
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runAutoRefresh(sourceID, modelCode string, refresh config.AutoRefreshSpec) {
	extent := refresh.Extent
	if extent.IsZero() && refresh.City != "" {
		resolved, err := s.resolver.Resolve(refresh.City, refresh.Country)
		if err != nil {
			s.log.Error().Err(err).Str("model", modelCode).Msg("auto-refresh location lookup failed")
			return
		}
		extent = resolved
	}

	now := time.Now().UTC()
	period := meteo.NewPeriod(now.Add(-refresh.Behind.Std()), now.Add(refresh.Ahead.Std()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.ctrl.UpdateWeather(ctx, sourceID, modelCode, period, extent, refresh.Factors); err != nil {
		s.log.Error().Err(err).
			Str("model", modelCode).
			Stringer("period", period).
			Msg("auto-refresh failed")
		return
	}
	s.log.Debug().Str("model", modelCode).Stringer("period", period).Msg("auto-refresh done")
}
