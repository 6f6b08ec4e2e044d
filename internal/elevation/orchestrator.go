package elevation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Acceptance decides whether a batch result is good enough to stop the
// fallback chain. A result is accepted when it has at least MinSuccessful
// successful records and at least MinSuccessRatio of all records succeeded.
type Acceptance struct {
	MinSuccessful   int
	MinSuccessRatio float64
}

// DefaultAcceptance accepts any batch result with one successful point.
func DefaultAcceptance() Acceptance {
	return Acceptance{MinSuccessful: 1}
}

// Accepts applies the criterion to a normalized record sequence.
func (a Acceptance) Accepts(records []ElevationRecord) bool {
	if len(records) == 0 {
		return false
	}
	success := 0
	for _, r := range records {
		if r.Success {
			success++
		}
	}
	need := a.MinSuccessful
	if byRatio := int(math.Ceil(a.MinSuccessRatio * float64(len(records)))); byRatio > need {
		need = byRatio
	}
	if need < 1 {
		need = 1
	}
	return success >= need
}

// OrchestratorConfig tunes the fallback behaviour.
type OrchestratorConfig struct {
	Acceptance Acceptance
	// MinDelay spaces consecutive sequential calls.
	MinDelay time.Duration
	// Concurrency > 1 lets the sequential stage run that many lookups at once;
	// pacing still goes through the single rate limiter.
	Concurrency int
	Clock       Clock
}

// Outcome is the accepted record sequence and the provider that produced it.
type Outcome struct {
	Provider string
	Records  []ElevationRecord
	// Attempts holds the recovered errors of the providers tried before.
	Attempts []error
}

type stage int

const (
	stageBatch stage = iota
	stageSequential
	stageDone
)

// Orchestrator drives the providers in priority order: every batch provider
// in turn, then the sequential provider point by point.
type Orchestrator struct {
	batch      []BatchProvider
	sequential SingleProvider
	limiter    *RateLimiter
	cfg        OrchestratorConfig
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator. The rate limiter is owned by the
// orchestrator and dedicated to the sequential provider.
func NewOrchestrator(batch []BatchProvider, sequential SingleProvider, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		batch:      batch,
		sequential: sequential,
		limiter:    NewRateLimiter(cfg.MinDelay, cfg.Clock),
		cfg:        cfg,
		logger:     logger.Named("orchestrator"),
	}
}

// Run resolves every waypoint. It returns exactly len(waypoints) records in
// input order, an *ExhaustedProvidersError if the sequential stage cannot be
// executed, or ctx.Err() if the run is cancelled.
func (o *Orchestrator) Run(ctx context.Context, waypoints []Waypoint) (Outcome, error) {
	if err := checkIndexes(waypoints); err != nil {
		return Outcome{}, err
	}
	if len(waypoints) == 0 {
		return Outcome{Records: []ElevationRecord{}}, nil
	}

	var (
		out  Outcome
		next = 0
		st   = stageBatch
	)

	for st != stageDone {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		switch st {
		case stageBatch:
			if next >= len(o.batch) {
				st = stageSequential
				continue
			}
			p := o.batch[next]
			next++

			records, err := o.tryBatch(ctx, p, waypoints)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Outcome{}, ctxErr
				}
				o.logger.Warn("batch provider failed; falling back",
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
				out.Attempts = append(out.Attempts, err)
				continue
			}
			if !o.cfg.Acceptance.Accepts(records) {
				o.logger.Warn("batch provider result not accepted; falling back",
					zap.String("provider", p.Name()),
					zap.Int("points", len(records)),
				)
				out.Attempts = append(out.Attempts, fmt.Errorf("%s: result below acceptance threshold", p.Name()))
				continue
			}
			out.Provider = p.Name()
			out.Records = records
			st = stageDone

		case stageSequential:
			records, err := o.runSequential(ctx, waypoints)
			if err != nil {
				var exhausted *ExhaustedProvidersError
				if errors.As(err, &exhausted) {
					exhausted.Attempts = out.Attempts
				}
				return Outcome{}, err
			}
			out.Provider = o.sequential.Name()
			out.Records = records
			st = stageDone
		}
	}

	o.logger.Info("elevations resolved",
		zap.String("provider", out.Provider),
		zap.Int("points", len(out.Records)),
		zap.Int("fallbacks", len(out.Attempts)),
	)
	return out, nil
}

func (o *Orchestrator) tryBatch(ctx context.Context, p BatchProvider, waypoints []Waypoint) ([]ElevationRecord, error) {
	o.logger.Debug("trying batch provider",
		zap.String("provider", p.Name()),
		zap.Int("points", len(waypoints)),
	)

	resp, err := p.BatchLookup(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	records, err := p.Normalize(resp, waypoints)
	if err != nil {
		return nil, err
	}
	if len(records) != len(waypoints) {
		return nil, &ParseError{
			Provider: p.Name(),
			Err:      fmt.Errorf("normalized %d records for %d waypoints", len(records), len(waypoints)),
		}
	}
	return records, nil
}

// runSequential is the terminal stage: it never fails per point, only when
// it cannot start or the context is cancelled.
func (o *Orchestrator) runSequential(ctx context.Context, waypoints []Waypoint) ([]ElevationRecord, error) {
	if o.sequential == nil {
		return nil, &ExhaustedProvidersError{Err: fmt.Errorf("%w: no sequential provider configured", ErrProviderUnavailable)}
	}
	if err := o.sequential.Available(); err != nil {
		return nil, &ExhaustedProvidersError{Err: fmt.Errorf("%s: %w", o.sequential.Name(), err)}
	}

	o.logger.Info("falling back to sequential provider",
		zap.String("provider", o.sequential.Name()),
		zap.Int("points", len(waypoints)),
		zap.Duration("min_delay", o.limiter.MinDelay()),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	records := make([]ElevationRecord, len(waypoints))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for _, wp := range waypoints {
		wp := wp
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := o.limiter.Wait(gctx); err != nil {
				return err
			}
			rec, err := o.lookupPoint(gctx, wp)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				o.logger.Debug("sequential lookup failed",
					zap.Int("index", wp.Index),
					zap.Error(err),
				)
				rec = Failed(wp, err.Error())
			}
			records[wp.Index] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (o *Orchestrator) lookupPoint(ctx context.Context, wp Waypoint) (ElevationRecord, error) {
	resp, err := o.sequential.SingleLookup(ctx, wp)
	if err != nil {
		return ElevationRecord{}, err
	}
	return o.sequential.NormalizePoint(resp, wp)
}

func checkIndexes(waypoints []Waypoint) error {
	for i, wp := range waypoints {
		if wp.Index != i {
			return fmt.Errorf("%w: waypoint at position %d has index %d", ErrInvalidWaypoints, i, wp.Index)
		}
	}
	return nil
}
