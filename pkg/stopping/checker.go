package stopping

import (
	"math"

	"strategos/pkg/genopheno"
	"strategos/pkg/strategos"
)

// Reason names the stop condition that ended a run.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonTargetReached       Reason = "target_reached"
	ReasonMaxIterations       Reason = "max_iterations"
	ReasonMaxEvaluations      Reason = "max_evaluations"
	ReasonFunctionStagnation  Reason = "function_value_stagnation"
	ReasonParameterStagnation Reason = "parameter_stagnation"
)

// Limits carries the stop-relevant attributes of a run configuration.
// Budgets <= 0 are unlimited and tolerances <= 0 are disabled. Target is
// disabled when negative infinity; note that the zero value is a real target.
type Limits struct {
	Dim                int
	Lambda             int
	MaxIterations      int
	MaxEvaluations     int
	Target             float64
	FunctionTolerance  float64
	ParameterTolerance float64
	MaxHistory         int
}

// LimitsFor copies the stop-relevant attributes out of a run configuration.
func LimitsFor[T genopheno.Transform](cfg *strategos.RunConfig[T]) Limits {
	return Limits{
		Dim:                cfg.Dim(),
		Lambda:             cfg.PopulationSize(),
		MaxIterations:      cfg.MaxIterations(),
		MaxEvaluations:     cfg.MaxEvaluations(),
		Target:             cfg.TargetObjective(),
		FunctionTolerance:  cfg.FunctionTolerance(),
		ParameterTolerance: cfg.ParameterTolerance(),
		MaxHistory:         cfg.MaxHistory(),
	}
}

// State is one engine-reported progress snapshot. Best is the best objective
// value seen so far. ParameterDelta is the largest absolute coordinate change
// of the distribution mean in the last iteration; 0 disables the parameter
// check for that snapshot.
type State struct {
	Iteration      int
	Evaluations    int
	Best           float64
	ParameterDelta float64
}

// Checker folds progress snapshots into a bounded best-value history and
// decides when a run should stop.
type Checker struct {
	limits  Limits
	window  int
	history []float64
}

func NewChecker(limits Limits) *Checker {
	maxHistory := limits.MaxHistory
	if maxHistory <= 0 {
		maxHistory = strategos.DefaultMaxHistory
	}
	window := maxHistory
	if limits.Dim > 0 && limits.Lambda > 0 {
		window = 10 + int(math.Ceil(30.0*float64(limits.Dim)/float64(limits.Lambda)))
		if window > maxHistory {
			window = maxHistory
		}
	}
	return &Checker{limits: limits, window: window}
}

// Update folds one snapshot into the history and checks every stop
// condition. The first satisfied condition wins: reaching the target beats
// exhausting a budget, budgets beat stagnation.
func (c *Checker) Update(s State) (Reason, bool) {
	c.history = append(c.history, s.Best)
	if len(c.history) > c.window {
		c.history = c.history[len(c.history)-c.window:]
	}

	l := c.limits
	if !math.IsInf(l.Target, -1) && s.Best <= l.Target {
		return ReasonTargetReached, true
	}
	if l.MaxIterations > 0 && s.Iteration >= l.MaxIterations {
		return ReasonMaxIterations, true
	}
	if l.MaxEvaluations > 0 && s.Evaluations >= l.MaxEvaluations {
		return ReasonMaxEvaluations, true
	}
	if l.FunctionTolerance > 0 && c.window >= 2 && len(c.history) >= c.window {
		if spread(c.history) < l.FunctionTolerance {
			return ReasonFunctionStagnation, true
		}
	}
	if l.ParameterTolerance > 0 && s.ParameterDelta > 0 && s.ParameterDelta < l.ParameterTolerance {
		return ReasonParameterStagnation, true
	}
	return ReasonNone, false
}

// Window reports how many recent best values the stagnation check considers.
func (c *Checker) Window() int {
	return c.window
}

func (c *Checker) History() []float64 {
	return append([]float64(nil), c.history...)
}

func spread(values []float64) float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
