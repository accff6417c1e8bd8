package main

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadPlanSpecFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan_config.json")
	payload := map[string]any{
		"dimension":           5,
		"population_size":     16,
		"seed":                99,
		"algorithm_name":      "abipop",
		"region_min":          []any{-2, -2, -2, -2, -2},
		"region_max":          []any{2, 2, 2, 2, 2},
		"frozen":              map[string]any{"1": 0.5, "3": -0.25},
		"max_iterations":      500,
		"max_evaluations":     20000,
		"target_value":        1e-10,
		"function_tolerance":  1e-9,
		"parameter_tolerance": 1e-11,
		"max_history":         40,
		"quiet":               true,
		"parallel_evaluation": true,
		"gradient_injection":  true,
		"edm":                 true,
		"output_path":         "runs/plan.dat",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	spec, err := loadPlanSpecFromConfig(path)
	if err != nil {
		t.Fatalf("load plan spec: %v", err)
	}
	if spec.Dim != 5 || spec.Lambda != 16 || spec.Seed != 99 {
		t.Fatalf("unexpected base fields: %+v", spec)
	}
	if spec.Algorithm != "abipop" {
		t.Fatalf("unexpected algorithm: %s", spec.Algorithm)
	}
	if !reflect.DeepEqual(spec.X0Min, []float64{-2, -2, -2, -2, -2}) || !reflect.DeepEqual(spec.X0Max, []float64{2, 2, 2, 2, 2}) {
		t.Fatalf("unexpected region: min=%v max=%v", spec.X0Min, spec.X0Max)
	}
	if !reflect.DeepEqual(spec.Frozen, map[int]float64{1: 0.5, 3: -0.25}) {
		t.Fatalf("unexpected frozen map: %v", spec.Frozen)
	}
	if spec.MaxIterations != 500 || spec.MaxEvaluations != 20000 {
		t.Fatalf("unexpected budgets: iter=%d evals=%d", spec.MaxIterations, spec.MaxEvaluations)
	}
	if spec.Target == nil || *spec.Target != 1e-10 {
		t.Fatalf("unexpected target: %v", spec.Target)
	}
	if spec.FunctionTolerance != 1e-9 || spec.ParameterTolerance != 1e-11 || spec.MaxHistory != 40 {
		t.Fatalf("unexpected stop tuning: %+v", spec)
	}
	if !spec.Quiet || !spec.Parallel || !spec.Gradient || !spec.EDM {
		t.Fatalf("unexpected toggles: %+v", spec)
	}
	if spec.OutputPath != "runs/plan.dat" {
		t.Fatalf("unexpected output path: %s", spec.OutputPath)
	}
}

func TestLoadPlanSpecFromConfigIgnoresMistypedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan_config_mistyped.json")
	payload := map[string]any{
		"dimension":      "five",
		"seed":           -3,
		"region_min":     []any{"a", "b"},
		"frozen":         map[string]any{"not-an-index": 1.0},
		"unknown_field":  true,
		"max_iterations": 80,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	spec, err := loadPlanSpecFromConfig(path)
	if err != nil {
		t.Fatalf("load plan spec: %v", err)
	}
	if spec.Dim != 0 || spec.Seed != 0 || spec.X0Min != nil || spec.Frozen != nil {
		t.Fatalf("expected mistyped fields ignored, got %+v", spec)
	}
	if spec.MaxIterations != 80 {
		t.Fatalf("expected well typed field kept, got %d", spec.MaxIterations)
	}
}

func TestLoadOrDefaultPlanSpec(t *testing.T) {
	spec, err := loadOrDefaultPlanSpec("")
	if err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if !reflect.DeepEqual(spec, planSpec{}) {
		t.Fatalf("expected zero spec for empty path, got %+v", spec)
	}

	if _, err := loadOrDefaultPlanSpec(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestOverrideFromFlags(t *testing.T) {
	spec := planSpec{Dim: 2, Lambda: 6, Algorithm: "cmaes"}
	set := map[string]bool{
		"dim":     true,
		"seed":    true,
		"algo":    true,
		"x0min":   true,
		"x0max":   true,
		"freeze":  true,
		"ftarget": true,
		"quiet":   true,
		"out":     true,
	}
	err := overrideFromFlags(&spec, set, map[string]any{
		"dim":     4,
		"lambda":  9,
		"seed":    uint64(7),
		"algo":    "bipop",
		"x0min":   "-1,-1,-1,-1",
		"x0max":   "1,1,1,1",
		"freeze":  "0=0.5,2=-1.5",
		"ftarget": 1e-8,
		"quiet":   true,
		"out":     "runs/override.dat",
	})
	if err != nil {
		t.Fatalf("override: %v", err)
	}

	if spec.Dim != 4 || spec.Seed != 7 || spec.Algorithm != "bipop" {
		t.Fatalf("unexpected overridden fields: %+v", spec)
	}
	if spec.Lambda != 6 {
		t.Fatalf("expected unset flag to keep config value, got %d", spec.Lambda)
	}
	if !reflect.DeepEqual(spec.X0Min, []float64{-1, -1, -1, -1}) || !reflect.DeepEqual(spec.X0Max, []float64{1, 1, 1, 1}) {
		t.Fatalf("unexpected region: min=%v max=%v", spec.X0Min, spec.X0Max)
	}
	if !reflect.DeepEqual(spec.Frozen, map[int]float64{0: 0.5, 2: -1.5}) {
		t.Fatalf("unexpected frozen map: %v", spec.Frozen)
	}
	if spec.Target == nil || *spec.Target != 1e-8 {
		t.Fatalf("unexpected target: %v", spec.Target)
	}
	if !spec.Quiet || spec.OutputPath != "runs/override.dat" {
		t.Fatalf("unexpected toggles: %+v", spec)
	}
}

func TestOverrideFromFlagsRejectsMalformedVector(t *testing.T) {
	spec := planSpec{}
	err := overrideFromFlags(&spec, map[string]bool{"x0": true}, map[string]any{"x0": "1,oops,3"})
	if err == nil {
		t.Fatal("expected parse error for malformed vector")
	}
}

func TestParseVector(t *testing.T) {
	got, err := parseVector(" 1, -2.5 ,3e-1 ")
	if err != nil {
		t.Fatalf("parse vector: %v", err)
	}
	if !reflect.DeepEqual(got, []float64{1, -2.5, 0.3}) {
		t.Fatalf("unexpected vector: %v", got)
	}

	empty, err := parseVector("  ")
	if err != nil || empty != nil {
		t.Fatalf("expected nil vector for blank input, got %v err=%v", empty, err)
	}

	if _, err := parseVector("1,,2"); err == nil {
		t.Fatal("expected error for empty element")
	}
}

func TestParseFreeze(t *testing.T) {
	got, err := parseFreeze("0=0.5, 3 = -1.25")
	if err != nil {
		t.Fatalf("parse freeze: %v", err)
	}
	if !reflect.DeepEqual(got, map[int]float64{0: 0.5, 3: -1.25}) {
		t.Fatalf("unexpected freeze map: %v", got)
	}

	empty, err := parseFreeze("")
	if err != nil || empty != nil {
		t.Fatalf("expected nil map for blank input, got %v err=%v", empty, err)
	}

	if _, err := parseFreeze("0:0.5"); err == nil {
		t.Fatal("expected error for missing separator")
	}
	if _, err := parseFreeze("x=0.5"); err == nil {
		t.Fatal("expected error for bad index")
	}
	if _, err := parseFreeze("0=half"); err == nil {
		t.Fatal("expected error for bad value")
	}
}

func TestBuildRunConfigDefaults(t *testing.T) {
	cfg, err := buildRunConfig(planSpec{Dim: 5})
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	if cfg.Dim() != 5 {
		t.Fatalf("unexpected dimension: %d", cfg.Dim())
	}
	if cfg.PopulationSize() != 8 {
		t.Fatalf("expected derived population size 8, got %d", cfg.PopulationSize())
	}
	if cfg.Seed() == 0 {
		t.Fatal("expected derived nonzero seed")
	}
	if !math.IsInf(cfg.TargetObjective(), -1) {
		t.Fatalf("expected disabled target, got %g", cfg.TargetObjective())
	}
}

func TestBuildRunConfigAppliesSpec(t *testing.T) {
	target := 1e-10
	cfg, err := buildRunConfig(planSpec{
		Dim:                3,
		Lambda:             12,
		Seed:               42,
		Algorithm:          "sepcmaes",
		X0Min:              []float64{-1},
		X0Max:              []float64{1},
		Frozen:             map[int]float64{1: 0.5},
		MaxIterations:      100,
		MaxEvaluations:     4000,
		Target:             &target,
		FunctionTolerance:  1e-9,
		ParameterTolerance: 1e-11,
		MaxHistory:         30,
		Quiet:              true,
		Parallel:           true,
		OutputPath:         "runs/spec.dat",
	})
	if err != nil {
		t.Fatalf("build config: %v", err)
	}

	if cfg.PopulationSize() != 12 || cfg.Seed() != 42 {
		t.Fatalf("unexpected sizing: lambda=%d seed=%d", cfg.PopulationSize(), cfg.Seed())
	}
	if cfg.AlgorithmName() != "sepcmaes" {
		t.Fatalf("unexpected algorithm: %s", cfg.AlgorithmName())
	}
	if !reflect.DeepEqual(cfg.InitialRegionMin(), []float64{-1, -1, -1}) || !reflect.DeepEqual(cfg.InitialRegionMax(), []float64{1, 1, 1}) {
		t.Fatalf("expected scalar region broadcast, got min=%v max=%v", cfg.InitialRegionMin(), cfg.InitialRegionMax())
	}
	if value, ok := cfg.FrozenValue(1); !ok || value != 0.5 {
		t.Fatalf("expected frozen coordinate, got %v ok=%t", value, ok)
	}
	if cfg.MaxIterations() != 100 || cfg.MaxEvaluations() != 4000 {
		t.Fatalf("unexpected budgets: iter=%d evals=%d", cfg.MaxIterations(), cfg.MaxEvaluations())
	}
	if cfg.TargetObjective() != 1e-10 {
		t.Fatalf("unexpected target: %g", cfg.TargetObjective())
	}
	if cfg.FunctionTolerance() != 1e-9 || cfg.ParameterTolerance() != 1e-11 || cfg.MaxHistory() != 30 {
		t.Fatalf("unexpected stop tuning")
	}
	if !cfg.Quiet() || !cfg.ParallelEvaluation() || cfg.GradientInjection() || cfg.EDM() {
		t.Fatalf("unexpected toggles")
	}
	if cfg.OutputPath() != "runs/spec.dat" {
		t.Fatalf("unexpected output path: %s", cfg.OutputPath())
	}
}

func TestBuildRunConfigErrors(t *testing.T) {
	if _, err := buildRunConfig(planSpec{}); err == nil {
		t.Fatal("expected error for missing dimension")
	}
	if _, err := buildRunConfig(planSpec{Dim: 2, Algorithm: "gradient-descent"}); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if _, err := buildRunConfig(planSpec{Dim: 2, X0Min: []float64{1}, X0Max: []float64{-1}}); err == nil {
		t.Fatal("expected error for inverted region")
	}
	if _, err := buildRunConfig(planSpec{Dim: 2, X0Min: []float64{-1, -1, -1}, X0Max: []float64{1, 1, 1}}); err == nil {
		t.Fatal("expected error for region length mismatch")
	}
	if _, err := buildRunConfig(planSpec{Dim: 2, Frozen: map[int]float64{5: 1}}); err == nil {
		t.Fatal("expected error for frozen index out of range")
	}
}

func TestFormatVectorAndFrozen(t *testing.T) {
	if got := formatVector([]float64{-1, 0.5, 3}); got != "-1,0.5,3" {
		t.Fatalf("unexpected vector format: %s", got)
	}
	if got := formatVector(nil); got != "" {
		t.Fatalf("expected empty string for nil vector, got %q", got)
	}
	if got := formatFrozen(map[int]float64{3: -0.25, 0: 0.5}); got != "0=0.5,3=-0.25" {
		t.Fatalf("unexpected frozen format: %s", got)
	}
}
