package strategos

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"strategos/internal/model"
	"strategos/pkg/genopheno"
)

const (
	// Unlimited disables an iteration or evaluation budget.
	Unlimited = -1

	DefaultFunctionTolerance  = 1e-12
	DefaultParameterTolerance = 1e-12
	DefaultMaxHistory         = 100
)

// Options tunes construction of a RunConfig. The zero value asks for every
// default.
type Options[T genopheno.Transform] struct {
	// PopulationSize overrides the derived default when positive.
	PopulationSize int
	// Seed seeds the run. If 0, a clock-derived seed is used.
	Seed uint64
	// InitialPoint pins the initial region to a single point. Must match the
	// dimension when set.
	InitialPoint []float64
	// Transform overrides the zero-value transform.
	Transform *T
	// Logger receives configuration diagnostics. If nil, the global logger is
	// used.
	Logger *zerolog.Logger
	// Now supplies the clock for seed derivation. If nil, time.Now is used.
	Now func() time.Time
}

// RunConfig holds every knob an evolution-strategy engine needs before a run
// starts: problem dimension, population sizing, seeding, the initial sampling
// region, pinned coordinates, stop budgets and tolerances, the algorithm
// variant and the genotype/phenotype transform. It is a passive value object;
// engines read it and own the search loop.
type RunConfig[T genopheno.Transform] struct {
	dim          int
	lambda       int
	seed         uint64
	regionMin    []float64
	regionMax    []float64
	frozen       map[int]float64
	maxIter      int
	maxEvals     int
	target       float64
	fTolerance   float64
	xTolerance   float64
	maxHistory   int
	algo         Algorithm
	quiet        bool
	parallelEval bool
	gradient     bool
	edm          bool
	outputPath   string
	transform    T

	logger *zerolog.Logger
	now    func() time.Time
}

// New builds a configuration with every default: derived population size,
// clock-derived seed, zero-valued transform and a degenerate initial region
// at the origin.
func New[T genopheno.Transform](dim int) (*RunConfig[T], error) {
	return NewWithOptions(dim, Options[T]{})
}

func NewWithOptions[T genopheno.Transform](dim int, opts Options[T]) (*RunConfig[T], error) {
	if dim <= 0 {
		return nil, configErrorf("dimension", "must be positive, got %d", dim)
	}

	c := &RunConfig[T]{
		dim:        dim,
		lambda:     opts.PopulationSize,
		seed:       opts.Seed,
		regionMin:  make([]float64, dim),
		regionMax:  make([]float64, dim),
		frozen:     make(map[int]float64),
		maxIter:    Unlimited,
		maxEvals:   Unlimited,
		target:     math.Inf(-1),
		fTolerance: DefaultFunctionTolerance,
		xTolerance: DefaultParameterTolerance,
		maxHistory: DefaultMaxHistory,
		algo:       CMAES,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if opts.Transform != nil {
		c.transform = *opts.Transform
	}
	if c.lambda <= 0 {
		c.lambda = DefaultPopulationSize(dim)
	}
	if c.seed == 0 {
		c.seed = c.deriveSeed()
	}
	if opts.InitialPoint != nil {
		if err := c.SetInitialPointVector(opts.InitialPoint); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultPopulationSize derives the canonical population size for a problem
// dimension: 4 + floor(3*ln(dim)).
func DefaultPopulationSize(dim int) int {
	if dim <= 0 {
		return 0
	}
	return 4 + int(math.Floor(3.0*math.Log(float64(dim))))
}

func (c *RunConfig[T]) Dim() int {
	return c.dim
}

func (c *RunConfig[T]) PopulationSize() int {
	return c.lambda
}

func (c *RunConfig[T]) SetPopulationSize(lambda int) error {
	if lambda < 1 {
		return configErrorf("population_size", "must be at least 1, got %d", lambda)
	}
	c.lambda = lambda
	return nil
}

func (c *RunConfig[T]) Seed() uint64 {
	return c.seed
}

// SetSeed keeps the historical setter contract: while the stored seed is
// still 0 the argument is ignored and a fresh clock seed is derived instead.
// Constructed configurations always hold a nonzero seed, so that branch only
// triggers on zero-value structs. Use Reseed to request a fresh seed
// explicitly.
func (c *RunConfig[T]) SetSeed(seed uint64) {
	if c.seed == 0 {
		c.seed = c.deriveSeed()
		return
	}
	c.seed = seed
}

// Reseed derives a fresh clock seed unconditionally and returns it.
func (c *RunConfig[T]) Reseed() uint64 {
	c.seed = c.deriveSeed()
	return c.seed
}

// NewRand returns a deterministic generator seeded from the configured seed.
func (c *RunConfig[T]) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(int64(c.seed)))
}

func (c *RunConfig[T]) InitialRegionMin() []float64 {
	return append([]float64(nil), c.regionMin...)
}

func (c *RunConfig[T]) InitialRegionMax() []float64 {
	return append([]float64(nil), c.regionMax...)
}

// SetInitialPoint collapses the initial region to a single point shared by
// every coordinate.
func (c *RunConfig[T]) SetInitialPoint(x0 float64) {
	for i := 0; i < c.dim; i++ {
		c.regionMin[i] = x0
		c.regionMax[i] = x0
	}
}

// SetInitialPointVector collapses the initial region to the given point.
func (c *RunConfig[T]) SetInitialPointVector(x0 []float64) error {
	if len(x0) != c.dim {
		return configErrorf("initial_point", "length %d does not match dimension %d", len(x0), c.dim)
	}
	c.regionMin = append([]float64(nil), x0...)
	c.regionMax = append([]float64(nil), x0...)
	return nil
}

// SetInitialRegion bounds every coordinate by the same interval.
func (c *RunConfig[T]) SetInitialRegion(min, max float64) error {
	if min > max {
		return configErrorf("initial_region", "min %g exceeds max %g", min, max)
	}
	mins := make([]float64, c.dim)
	maxs := make([]float64, c.dim)
	for i := 0; i < c.dim; i++ {
		mins[i] = min
		maxs[i] = max
	}
	c.regionMin = mins
	c.regionMax = maxs
	return nil
}

// SetInitialRegionVectors bounds each coordinate individually.
func (c *RunConfig[T]) SetInitialRegionVectors(min, max []float64) error {
	if len(min) != c.dim || len(max) != c.dim {
		return configErrorf("initial_region", "length min=%d max=%d does not match dimension %d", len(min), len(max), c.dim)
	}
	for i := range min {
		if min[i] > max[i] {
			return configErrorf("initial_region", "min %g exceeds max %g at coordinate %d", min[i], max[i], i)
		}
	}
	c.regionMin = append([]float64(nil), min...)
	c.regionMax = append([]float64(nil), max...)
	return nil
}

// SampleInitialMean draws a start mean uniformly from the initial region.
// Degenerate coordinates yield their fixed point and frozen coordinates are
// pinned to their configured values.
func (c *RunConfig[T]) SampleInitialMean(rng *rand.Rand) []float64 {
	out := make([]float64, c.dim)
	for i := range out {
		lo, hi := c.regionMin[i], c.regionMax[i]
		if lo == hi {
			out[i] = lo
			continue
		}
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return c.ApplyFrozen(out)
}

// Freeze pins a coordinate to a fixed value for the whole run.
func (c *RunConfig[T]) Freeze(index int, value float64) error {
	if index < 0 || index >= c.dim {
		return configErrorf("frozen_parameters", "index %d out of range for dimension %d", index, c.dim)
	}
	if c.frozen == nil {
		c.frozen = make(map[int]float64)
	}
	c.frozen[index] = value
	return nil
}

// Unfreeze releases a pinned coordinate. Releasing an unpinned coordinate is
// a no-op.
func (c *RunConfig[T]) Unfreeze(index int) {
	delete(c.frozen, index)
}

func (c *RunConfig[T]) Frozen() map[int]float64 {
	out := make(map[int]float64, len(c.frozen))
	for index, value := range c.frozen {
		out[index] = value
	}
	return out
}

func (c *RunConfig[T]) FrozenValue(index int) (float64, bool) {
	value, ok := c.frozen[index]
	return value, ok
}

// ApplyFrozen returns a copy of x with frozen coordinates replaced by their
// pinned values. Indices beyond len(x) are ignored.
func (c *RunConfig[T]) ApplyFrozen(x []float64) []float64 {
	out := append([]float64(nil), x...)
	for index, value := range c.frozen {
		if index >= 0 && index < len(out) {
			out[index] = value
		}
	}
	return out
}

func (c *RunConfig[T]) MaxIterations() int {
	return c.maxIter
}

// SetMaxIterations caps the iteration count. Values <= 0 disable the budget.
func (c *RunConfig[T]) SetMaxIterations(n int) {
	c.maxIter = n
}

func (c *RunConfig[T]) MaxEvaluations() int {
	return c.maxEvals
}

// SetMaxEvaluations caps the objective evaluation count. Values <= 0 disable
// the budget.
func (c *RunConfig[T]) SetMaxEvaluations(n int) {
	c.maxEvals = n
}

func (c *RunConfig[T]) TargetObjective() float64 {
	return c.target
}

func (c *RunConfig[T]) SetTargetObjective(value float64) {
	c.target = value
}

// ResetTargetObjective restores the disabled target, negative infinity.
func (c *RunConfig[T]) ResetTargetObjective() {
	c.target = math.Inf(-1)
}

func (c *RunConfig[T]) FunctionTolerance() float64 {
	return c.fTolerance
}

func (c *RunConfig[T]) SetFunctionTolerance(value float64) {
	c.fTolerance = value
}

func (c *RunConfig[T]) ParameterTolerance() float64 {
	return c.xTolerance
}

func (c *RunConfig[T]) SetParameterTolerance(value float64) {
	c.xTolerance = value
}

func (c *RunConfig[T]) MaxHistory() int {
	return c.maxHistory
}

func (c *RunConfig[T]) SetMaxHistory(n int) {
	c.maxHistory = n
}

func (c *RunConfig[T]) Algorithm() Algorithm {
	return c.algo
}

func (c *RunConfig[T]) AlgorithmName() string {
	return c.algo.String()
}

func (c *RunConfig[T]) SetAlgorithm(algo Algorithm) {
	c.algo = algo
}

// SetAlgorithmName resolves a variant name through the algorithm table. An
// unknown name is reported to the diagnostic logger and leaves the configured
// variant unchanged.
func (c *RunConfig[T]) SetAlgorithmName(name string) error {
	algo, ok := AlgorithmFromName(name)
	if !ok {
		c.diag().Error().Str("algorithm", name).Msg("unknown algorithm name")
		return configNameError(name)
	}
	c.algo = algo
	return nil
}

func (c *RunConfig[T]) Quiet() bool {
	return c.quiet
}

func (c *RunConfig[T]) SetQuiet(quiet bool) {
	c.quiet = quiet
}

func (c *RunConfig[T]) ParallelEvaluation() bool {
	return c.parallelEval
}

// SetParallelEvaluation marks objective evaluations as safe to run
// concurrently. The flag is advisory; engines decide how to use it.
func (c *RunConfig[T]) SetParallelEvaluation(enabled bool) {
	c.parallelEval = enabled
}

func (c *RunConfig[T]) GradientInjection() bool {
	return c.gradient
}

func (c *RunConfig[T]) SetGradientInjection(enabled bool) {
	c.gradient = enabled
}

func (c *RunConfig[T]) EDM() bool {
	return c.edm
}

// SetEDM toggles estimation of the expected distance to the minimum.
func (c *RunConfig[T]) SetEDM(enabled bool) {
	c.edm = enabled
}

func (c *RunConfig[T]) OutputPath() string {
	return c.outputPath
}

// SetOutputPath names the progress data file. Empty disables file output.
func (c *RunConfig[T]) SetOutputPath(path string) {
	c.outputPath = path
}

func (c *RunConfig[T]) Transform() T {
	return c.transform
}

func (c *RunConfig[T]) SetTransform(transform T) {
	c.transform = transform
}

// Clone returns an independent deep copy.
func (c *RunConfig[T]) Clone() *RunConfig[T] {
	out := *c
	out.regionMin = append([]float64(nil), c.regionMin...)
	out.regionMax = append([]float64(nil), c.regionMax...)
	out.frozen = c.Frozen()
	return &out
}

// Validate re-checks the cross-field invariants, for callers that mutated the
// configuration after construction.
func (c *RunConfig[T]) Validate() error {
	if c.dim <= 0 {
		return configErrorf("dimension", "must be positive, got %d", c.dim)
	}
	if c.lambda < 1 {
		return configErrorf("population_size", "must be at least 1, got %d", c.lambda)
	}
	if c.seed == 0 {
		return configErrorf("seed", "must be nonzero after construction")
	}
	if len(c.regionMin) != c.dim || len(c.regionMax) != c.dim {
		return configErrorf("initial_region", "length min=%d max=%d does not match dimension %d", len(c.regionMin), len(c.regionMax), c.dim)
	}
	for i := range c.regionMin {
		if c.regionMin[i] > c.regionMax[i] {
			return configErrorf("initial_region", "min %g exceeds max %g at coordinate %d", c.regionMin[i], c.regionMax[i], i)
		}
	}
	for index := range c.frozen {
		if index < 0 || index >= c.dim {
			return configErrorf("frozen_parameters", "index %d out of range for dimension %d", index, c.dim)
		}
	}
	return nil
}

// Snapshot captures the resolved configuration as a persistable run record.
// The run id and timestamps are left for the registry to fill.
func (c *RunConfig[T]) Snapshot() model.RunRecord {
	rec := model.RunRecord{
		Dimension:          c.dim,
		PopulationSize:     c.lambda,
		Seed:               c.seed,
		Algorithm:          int(c.algo),
		AlgorithmName:      c.algo.String(),
		MaxIterations:      c.maxIter,
		MaxEvaluations:     c.maxEvals,
		FunctionTolerance:  c.fTolerance,
		ParameterTolerance: c.xTolerance,
		MaxHistory:         c.maxHistory,
		Quiet:              c.quiet,
		ParallelEvaluation: c.parallelEval,
		GradientInjection:  c.gradient,
		EDM:                c.edm,
		OutputPath:         c.outputPath,
		RegionMin:          append([]float64(nil), c.regionMin...),
		RegionMax:          append([]float64(nil), c.regionMax...),
	}
	if !math.IsInf(c.target, -1) {
		target := c.target
		rec.TargetValue = &target
	}
	if len(c.frozen) > 0 {
		rec.Frozen = c.Frozen()
	}
	return rec
}

func (c *RunConfig[T]) deriveSeed() uint64 {
	seed := uint64(c.clock().UnixNano())
	if seed == 0 {
		return 1
	}
	return seed
}

func (c *RunConfig[T]) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *RunConfig[T]) diag() *zerolog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return &log.Logger
}
