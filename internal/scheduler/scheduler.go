package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/itinerary-elevation/internal/elevation"
	"github.com/i474232898/itinerary-elevation/internal/itinerary"
)

// DefaultJobTimeout bounds one itinerary resolution, including a slow
// point-by-point fallback.
const DefaultJobTimeout = 15 * time.Minute

// Resolver is the part of elevation.Service the scheduler drives.
type Resolver interface {
	ResolveAndStore(ctx context.Context, itinerary string, waypoints []elevation.Waypoint) (elevation.ElevationReport, error)
}

// Scheduler periodically resolves the elevation of the configured itinerary files.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	resolver   Resolver
	files      []string
	interval   time.Duration
	jobTimeout time.Duration
	logger     *zap.Logger
}

// New creates a new Scheduler. An interval <= 0 resolves every itinerary once at start.
func New(files []string, interval time.Duration, resolver Resolver, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		resolver:   resolver,
		files:      files,
		interval:   interval,
		jobTimeout: DefaultJobTimeout,
		logger:     logger.Named("scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.files) == 0 {
		s.logger.Info("no itineraries configured; nothing to schedule")
		return nil
	}

	job := func() { s.RunOnce(context.Background()) }

	if s.interval <= 0 {
		go job()
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(job)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce loads and resolves every itinerary file concurrently and waits for all of them.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("running itinerary elevation job", zap.Int("itineraries", len(s.files)))

	var wg sync.WaitGroup
	for _, path := range s.files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			name := itinerary.Name(path)
			waypoints, err := itinerary.LoadFile(path)
			if err != nil {
				s.logger.Error("failed to load itinerary", zap.String("file", path), zap.Error(err))
				return
			}

			jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
			defer cancel()

			report, err := s.resolver.ResolveAndStore(jobCtx, name, waypoints)
			if err != nil {
				s.logger.Error("elevation resolution failed", zap.String("itinerary", name), zap.Error(err))
				return
			}
			s.logger.Info("itinerary resolved",
				zap.String("itinerary", name),
				zap.String("provider", report.Provider),
				zap.Int("successful", report.SuccessCount),
				zap.Int("failed", report.FailCount),
			)
		}(path)
	}
	wg.Wait()
	s.logger.Info("completed itinerary elevation job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
