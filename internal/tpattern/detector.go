// Package tpattern detects T-patterns: statistically significant delay
// windows between ordered pairs of event types, composed recursively into
// higher-order patterns.
//
// Detection is a fixed point over rounds:
//
//  1. Builder computes counts, total time and per-pair delay distributions.
//  2. Searcher tests every pair, in rendering order, for a critical interval.
//  3. New critical intervals become composite types in the Registry.
//  4. Synthesizer injects composite instances back into the periods.
//
// Rounds repeat until a search confirms nothing new. Maximal then removes
// patterns contained in other patterns.
//
// The engine is single-threaded and performs no I/O.
package tpattern

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/types"
	"go.uber.org/zap"
)

// DefaultMaxRounds bounds the detection fixed point.
const DefaultMaxRounds = 100

// Config holds detection parameters.
type Config struct {
	// Significance is the per-test p-value threshold.
	Significance float64
	// Window is the largest delay, in units, recorded as a sample. Zero disables it.
	Window int64
	// MinEventSupport excludes rarer event types from pairing.
	MinEventSupport int
	// MinPairSupport skips pairs with fewer samples.
	MinPairSupport int
	// MaxRounds caps detection rounds.
	MaxRounds int
	// MaxSynthesisRounds caps productive synthesis rounds per detection round.
	MaxSynthesisRounds int
	// TimeUnit is the duration of one delay unit.
	TimeUnit time.Duration
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() Config {
	return Config{
		Significance:       DefaultSignificance,
		Window:             0,
		MinEventSupport:    1,
		MinPairSupport:     1,
		MaxRounds:          DefaultMaxRounds,
		MaxSynthesisRounds: DefaultMaxSynthesisRounds,
		TimeUnit:           time.Hour,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.Significance <= 0 || c.Significance >= 1 {
		return errors.Wrapf(types.ErrInvalidConfig, "significance must be in (0, 1), got %v", c.Significance)
	}
	if c.Window < 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "window must not be negative, got %d", c.Window)
	}
	if c.MinEventSupport < 0 || c.MinPairSupport < 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "support thresholds must not be negative")
	}
	if c.MaxRounds <= 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "max_rounds must be positive, got %d", c.MaxRounds)
	}
	if c.MaxSynthesisRounds <= 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "max_synthesis_rounds must be positive, got %d", c.MaxSynthesisRounds)
	}
	if c.TimeUnit <= 0 {
		return errors.Wrapf(types.ErrInvalidConfig, "time_unit must be positive, got %v", c.TimeUnit)
	}
	return nil
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-round progress.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Detector runs T-pattern detection.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detection parameters.
func (d *Detector) Config() Config {
	return d.cfg
}

// Result is the outcome of one detection.
type Result struct {
	// Patterns lists every confirmed pattern in discovery order.
	Patterns []types.Pattern
	// Maximal lists the patterns surviving the completeness competition.
	Maximal []types.Pattern
	// Rounds is the number of detection rounds run, including the final
	// round that confirmed nothing.
	Rounds int
	// Periods are the input periods with composite instances injected.
	Periods []*types.ObservationPeriod
}

// Detect runs the detection fixed point. Periods are mutated in place.
func (d *Detector) Detect(periods []*types.ObservationPeriod) (*Result, error) {
	return d.DetectContext(context.Background(), periods)
}

// DetectContext is Detect with cancellation checked before every round.
func (d *Detector) DetectContext(ctx context.Context, periods []*types.ObservationPeriod) (*Result, error) {
	registry := NewRegistry()
	builder := Builder{
		Unit:            d.cfg.TimeUnit,
		Window:          d.cfg.Window,
		MinEventSupport: d.cfg.MinEventSupport,
	}
	searcher := Searcher{Significance: d.cfg.Significance}
	synthesizer := Synthesizer{Unit: d.cfg.TimeUnit, MaxRounds: d.cfg.MaxSynthesisRounds}

	round := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "detection interrupted after %d rounds", round)
		}
		if round == d.cfg.MaxRounds {
			return nil, errors.Wrapf(types.ErrRoundLimitExceeded,
				"detection still confirming patterns after %d rounds", d.cfg.MaxRounds)
		}
		round++

		acc := builder.Build(periods)
		confirmed := d.search(round, acc, searcher, registry)

		d.logger.Info("detection round",
			zap.Int("round", round),
			zap.Int("vocabulary", len(acc.counts)),
			zap.Int("pairs", len(acc.dists)),
			zap.Int64("total_time", acc.TotalTime()),
			zap.Int("confirmed", confirmed),
			zap.Int("registry", registry.Len()),
		)
		if confirmed == 0 {
			break
		}

		stats, err := synthesizer.Synthesize(periods, registry.Types())
		if err != nil {
			return nil, errors.Wrapf(err, "round %d", round)
		}
		d.logger.Debug("synthesis complete",
			zap.Int("round", round),
			zap.Int("synthesis_rounds", stats.Rounds),
			zap.Int("instances", stats.Added),
		)
	}

	occurrences := make(map[string]int)
	for _, p := range periods {
		for _, e := range p.Events {
			if !e.Type.IsPrimitive() {
				occurrences[e.Type.Key()]++
			}
		}
	}
	registry.update(func(p *types.Pattern) {
		p.Occurrences = occurrences[p.Type.Key()]
	})

	maximal := make(map[string]bool)
	for _, p := range Maximal(registry.Patterns()) {
		maximal[p.Type.Key()] = true
	}
	registry.update(func(p *types.Pattern) {
		p.Maximal = maximal[p.Type.Key()]
	})

	all := registry.Patterns()
	var kept []types.Pattern
	for _, p := range all {
		if p.Maximal {
			kept = append(kept, p)
		}
	}

	return &Result{
		Patterns: all,
		Maximal:  kept,
		Rounds:   round,
		Periods:  periods,
	}, nil
}

// search tests every distribution and registers new patterns.
// Returns the number of patterns added.
func (d *Detector) search(round int, acc *Accumulator, searcher Searcher, registry *Registry) int {
	added := 0
	for _, dist := range acc.Distributions() {
		if len(dist.Samples) < d.cfg.MinPairSupport {
			continue
		}
		na, nb := acc.Count(dist.Pair.First), acc.Count(dist.Pair.Last)
		finding, ok := searcher.Search(dist.Samples, na, nb, acc.TotalTime())
		if !ok {
			continue
		}

		et := types.NewComposite(dist.Pair.First, dist.Pair.Last, finding.Interval)
		if !registry.Add(types.Pattern{
			ID:          types.NewPatternID(),
			Type:        et,
			Interval:    finding.Interval,
			Support:     finding.Support,
			NA:          na,
			NB:          nb,
			Probability: finding.Probability,
			PValue:      finding.PValue,
			Round:       round,
		}) {
			continue
		}
		added++

		d.logger.Debug("critical interval confirmed",
			zap.String("pattern", et.String()),
			zap.Int64("low", finding.Interval.Low),
			zap.Int64("high", finding.Interval.High),
			zap.Int("n_a", na),
			zap.Int("n_b", nb),
			zap.Int("n_ab", finding.Support),
			zap.Int64("total_time", acc.TotalTime()),
			zap.Float64("p_value", finding.PValue),
		)
	}
	return added
}

// Run describes the result as a stored detection run.
func (r *Result) Run(cfg Config) *types.Run {
	events := 0
	for _, p := range r.Periods {
		for _, e := range p.Events {
			if e.Type.IsPrimitive() {
				events++
			}
		}
	}
	return &types.Run{
		ID:           types.NewRunID(),
		CreatedAt:    time.Now().UTC(),
		Significance: cfg.Significance,
		Window:       cfg.Window,
		TimeUnit:     cfg.TimeUnit,
		Rounds:       r.Rounds,
		PeriodCount:  len(r.Periods),
		EventCount:   events,
		Patterns:     r.Patterns,
	}
}
