package elevation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate = validator.New()

// Service runs the elevation pipeline and hands the reports to the store and sinks.
type Service struct {
	orchestrator *Orchestrator
	store        Store
	sinks        []ReportSink
	clock        Clock
	logger       *zap.Logger
}

// NewService creates a new Service. store may be nil when reports are only returned.
func NewService(orchestrator *Orchestrator, store Store, sinks []ReportSink, clock Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orchestrator: orchestrator,
		store:        store,
		sinks:        sinks,
		clock:        clock,
		logger:       logger.Named("elevation-service"),
	}
}

// Resolve runs the fallback pipeline over waypoints and aggregates the accepted
// records. It returns either a complete report or an error, never a partial report.
func (s *Service) Resolve(ctx context.Context, waypoints []Waypoint) (ElevationReport, error) {
	for i := range waypoints {
		if err := validate.Struct(waypoints[i]); err != nil {
			return ElevationReport{}, fmt.Errorf("%w: waypoint %d: %v", ErrInvalidWaypoints, i, err)
		}
	}

	started := s.clock.Now()
	outcome, err := s.orchestrator.Run(ctx, waypoints)
	if err != nil {
		s.logger.Error("elevation pipeline failed",
			zap.Int("points", len(waypoints)),
			zap.Error(err),
		)
		return ElevationReport{}, err
	}

	report := Aggregate(outcome.Records, s.clock.Now())
	report.ID = uuid.NewString()
	report.Provider = outcome.Provider

	s.logger.Info("elevation report ready",
		zap.String("report_id", report.ID),
		zap.String("provider", report.Provider),
		zap.Int("total", report.TotalPoints),
		zap.Int("successful", report.SuccessCount),
		zap.Int("failed", report.FailCount),
		zap.Duration("took", s.clock.Now().Sub(started)),
	)
	return report, nil
}

// ResolveAndStore resolves an itinerary, keeps the report in the store and
// publishes it to every sink. Sink failures are logged; the report is still returned.
func (s *Service) ResolveAndStore(ctx context.Context, itinerary string, waypoints []Waypoint) (ElevationReport, error) {
	report, err := s.Resolve(ctx, waypoints)
	if err != nil {
		return ElevationReport{}, err
	}
	report.Itinerary = itinerary

	if s.store != nil && itinerary != "" {
		s.store.SaveReport(itinerary, report)
	}

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, report); err != nil {
			s.logger.Warn("report sink failed",
				zap.String("itinerary", itinerary),
				zap.String("report_id", report.ID),
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Error(err),
			)
		}
	}
	return report, nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(itinerary string) (ElevationReport, error) {
	if s.store == nil {
		return ElevationReport{}, fmt.Errorf("no report store configured")
	}
	return s.store.GetLatest(itinerary)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(itinerary string, from, to time.Time) ([]ElevationReport, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no report store configured")
	}
	return s.store.GetRange(itinerary, from, to)
}
