package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts       = 100
	defaultStrictMaxAttempts = 150
	defaultYieldEvery        = 6
)

// Config tunes the attempt loop.
type Config struct {
	MaxAttempts       int
	StrictMaxAttempts int
	YieldEvery        int
	// Seed fixes the random sequence. Zero seeds from the clock.
	Seed int64
}

// ProgressFunc receives integer percent progress.
type ProgressFunc func(percent int)

// Engine runs randomized placement attempts and keeps the best one.
type Engine struct {
	cfg       Config
	logger    *zap.Logger
	newSource func(seed int64) Source
}

// NewEngine constructs an engine.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.StrictMaxAttempts <= 0 {
		cfg.StrictMaxAttempts = defaultStrictMaxAttempts
	}
	if cfg.YieldEvery <= 0 {
		cfg.YieldEvery = defaultYieldEvery
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		newSource: func(seed int64) Source {
			return rand.New(rand.NewSource(seed))
		},
	}
}

// WithSourceFactory replaces the random source constructor.
func (e *Engine) WithSourceFactory(fn func(seed int64) Source) *Engine {
	e.newSource = fn
	return e
}

type attemptResult struct {
	grid      ClassScheduleGrid
	tasks     []*Task
	placed    int
	conflicts int
}

// better applies the selection order: zero conflicts first, then fewer conflicts, then more
// placed hours.
func better(candidate, best *attemptResult) bool {
	if best == nil {
		return true
	}
	switch {
	case candidate.conflicts == 0 && best.conflicts == 0:
		return candidate.placed > best.placed
	case candidate.conflicts == 0:
		return true
	case best.conflicts == 0:
		return false
	case candidate.conflicts != best.conflicts:
		return candidate.conflicts < best.conflicts
	default:
		return candidate.placed > best.placed
	}
}

func runAttempt(p *problem, rng Source, failures map[FailureKey]int) *attemptResult {
	a := newAttempt(p, rng, failures)
	a.placeClubs()
	a.placeGreedy()
	a.repair()
	a.placeFlexible()
	return &attemptResult{
		grid:      a.grid,
		tasks:     a.pools.all,
		placed:    a.placedHours(),
		conflicts: a.grid.CountConflicts(),
	}
}

// Generate runs up to the attempt budget and assembles the best result. Cancelling ctx stops
// the loop after the running attempt; the best result so far is still returned.
func (e *Engine) Generate(ctx context.Context, in Input, progress ProgressFunc) *Result {
	start := time.Now()
	seed := in.Seed
	if seed == 0 {
		seed = e.cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := e.newSource(seed)

	p, warnings := newProblem(in)
	warnings = append(warnings, ignoredRuleWarnings(in.Rules)...)

	maxAttempts := e.cfg.MaxAttempts
	if in.Rules.EnforceDistributionPatterns {
		maxAttempts = e.cfg.StrictMaxAttempts
	}

	failures := make(map[FailureKey]int)
	var best *attemptResult
	attempts := 0
	cancelled := false
	reported := -1

	for attempts < maxAttempts {
		if attempts > 0 && ctx.Err() != nil {
			cancelled = true
			break
		}
		result := runAttempt(p, rng, failures)
		attempts++
		for _, t := range result.tasks {
			if !t.Placed() {
				failures[t.failureKey()]++
			}
		}
		if better(result, best) {
			best = result
		}
		e.logger.Debug("schedule attempt finished",
			zap.Int("attempt", attempts),
			zap.Int("placed", result.placed),
			zap.Int("total", p.totalHours),
			zap.Int("conflicts", result.conflicts),
		)
		if best.conflicts == 0 && best.placed == p.totalHours {
			break
		}
		if attempts%e.cfg.YieldEvery == 0 {
			if progress != nil {
				reported = attempts * 100 / maxAttempts
				progress(reported)
			}
			runtime.Gosched()
		}
	}
	if progress != nil && reported != 100 {
		progress(100)
	}

	res := assemble(p, in, best)
	res.Attempts = attempts
	res.Cancelled = cancelled
	res.Seed = seed
	res.Warnings = append(append([]string{}, warnings...), res.Warnings...)
	if cancelled {
		res.Warnings = append(res.Warnings, fmt.Sprintf("generation cancelled after %d attempts", attempts))
	}

	for _, d := range res.Diagnostics {
		e.logger.Debug("hour count mismatch",
			zap.String("scope", d.Scope),
			zap.String("id", d.ID),
			zap.Int("expected", d.Expected),
			zap.Int("actual", d.Actual),
		)
	}
	for _, violation := range res.Errors {
		e.logger.Warn("schedule result error", zap.String("error", violation))
	}
	e.logger.Info("schedule generated",
		zap.Int("attempts", attempts),
		zap.Int("placed", res.Statistics.PlacedLessons),
		zap.Int("total", res.Statistics.TotalLessonsToPlace),
		zap.Int("conflicts", res.Conflicts),
		zap.Bool("cancelled", cancelled),
		zap.Int64("seed", seed),
		zap.Duration("duration", time.Since(start)),
	)
	return res
}

// ignoredRuleWarnings reports options that are accepted but have no effect on placement.
func ignoredRuleWarnings(rules GlobalRules) []string {
	var ignored []string
	if rules.MaxConsecutiveHours > 0 {
		ignored = append(ignored, "maxConsecutiveHours")
	}
	if rules.AvoidConsecutiveSameSubject {
		ignored = append(ignored, "avoidConsecutiveSameSubject")
	}
	if rules.LunchBreakDuration > 1 {
		ignored = append(ignored, "lunchBreakDuration")
	}
	if len(ignored) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("rules not enforced by the generator: %v", ignored)}
}
