package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// planSpec is the flat, flag-and-file shaped view of a run configuration.
// Zero values mean "keep the constructed default". Keys in the config file
// match the run record JSON tags, so an exported run_record.json can be fed
// straight back through -config.
type planSpec struct {
	Dim                int
	Lambda             int
	Seed               uint64
	Algorithm          string
	X0                 []float64
	X0Min              []float64
	X0Max              []float64
	Frozen             map[int]float64
	MaxIterations      int
	MaxEvaluations     int
	Target             *float64
	FunctionTolerance  float64
	ParameterTolerance float64
	MaxHistory         int
	Quiet              bool
	Parallel           bool
	Gradient           bool
	EDM                bool
	OutputPath         string
}

func loadPlanSpecFromConfig(path string) (planSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return planSpec{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return planSpec{}, err
	}

	var spec planSpec
	if v, ok := asInt(raw["dimension"]); ok {
		spec.Dim = v
	}
	if v, ok := asInt(raw["population_size"]); ok {
		spec.Lambda = v
	}
	if v, ok := asUint64(raw["seed"]); ok {
		spec.Seed = v
	}
	if v, ok := asString(raw["algorithm_name"]); ok {
		spec.Algorithm = v
	}
	if v, ok := asFloatSlice(raw["x0"]); ok {
		spec.X0 = v
	}
	if v, ok := asFloatSlice(raw["region_min"]); ok {
		spec.X0Min = v
	}
	if v, ok := asFloatSlice(raw["region_max"]); ok {
		spec.X0Max = v
	}
	if v, ok := asFrozenMap(raw["frozen"]); ok {
		spec.Frozen = v
	}
	if v, ok := asInt(raw["max_iterations"]); ok {
		spec.MaxIterations = v
	}
	if v, ok := asInt(raw["max_evaluations"]); ok {
		spec.MaxEvaluations = v
	}
	if v, ok := asFloat64(raw["target_value"]); ok {
		target := v
		spec.Target = &target
	}
	if v, ok := asFloat64(raw["function_tolerance"]); ok {
		spec.FunctionTolerance = v
	}
	if v, ok := asFloat64(raw["parameter_tolerance"]); ok {
		spec.ParameterTolerance = v
	}
	if v, ok := asInt(raw["max_history"]); ok {
		spec.MaxHistory = v
	}
	if v, ok := asBool(raw["quiet"]); ok {
		spec.Quiet = v
	}
	if v, ok := asBool(raw["parallel_evaluation"]); ok {
		spec.Parallel = v
	}
	if v, ok := asBool(raw["gradient_injection"]); ok {
		spec.Gradient = v
	}
	if v, ok := asBool(raw["edm"]); ok {
		spec.EDM = v
	}
	if v, ok := asString(raw["output_path"]); ok {
		spec.OutputPath = v
	}
	return spec, nil
}

func loadOrDefaultPlanSpec(configPath string) (planSpec, error) {
	if configPath == "" {
		return planSpec{}, nil
	}
	spec, err := loadPlanSpecFromConfig(configPath)
	if err != nil {
		return planSpec{}, fmt.Errorf("load config: %w", err)
	}
	return spec, nil
}

func overrideFromFlags(spec *planSpec, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "dim":
			spec.Dim = v.(int)
		case "lambda":
			spec.Lambda = v.(int)
		case "seed":
			spec.Seed = v.(uint64)
		case "algo":
			spec.Algorithm = v.(string)
		case "x0":
			parsed, err := parseVector(v.(string))
			if err != nil {
				return err
			}
			spec.X0 = parsed
		case "x0min":
			parsed, err := parseVector(v.(string))
			if err != nil {
				return err
			}
			spec.X0Min = parsed
		case "x0max":
			parsed, err := parseVector(v.(string))
			if err != nil {
				return err
			}
			spec.X0Max = parsed
		case "freeze":
			parsed, err := parseFreeze(v.(string))
			if err != nil {
				return err
			}
			spec.Frozen = parsed
		case "max-iter":
			spec.MaxIterations = v.(int)
		case "max-evals":
			spec.MaxEvaluations = v.(int)
		case "ftarget":
			target := v.(float64)
			spec.Target = &target
		case "ftol":
			spec.FunctionTolerance = v.(float64)
		case "xtol":
			spec.ParameterTolerance = v.(float64)
		case "max-hist":
			spec.MaxHistory = v.(int)
		case "quiet":
			spec.Quiet = v.(bool)
		case "parallel":
			spec.Parallel = v.(bool)
		case "gradient":
			spec.Gradient = v.(bool)
		case "edm":
			spec.EDM = v.(bool)
		case "out":
			spec.OutputPath = v.(string)
		}
	}
	return nil
}

func parseVector(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %q: %w", part, err)
		}
		out = append(out, value)
	}
	return out, nil
}

func parseFreeze(s string) (map[int]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := map[int]float64{}
	for _, pair := range strings.Split(s, ",") {
		indexPart, valuePart, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("freeze pair %q must look like index=value", pair)
		}
		index, err := strconv.Atoi(strings.TrimSpace(indexPart))
		if err != nil {
			return nil, fmt.Errorf("parse freeze index %q: %w", indexPart, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(valuePart), 64)
		if err != nil {
			return nil, fmt.Errorf("parse freeze value %q: %w", valuePart, err)
		}
		out[index] = value
	}
	return out, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case float64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asFloatSlice(v any) ([]float64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		value, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out = append(out, value)
	}
	return out, true
}

func asFrozenMap(v any) (map[int]float64, bool) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[int]float64, len(raw))
	for key, item := range raw {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		value, ok := asFloat64(item)
		if !ok {
			return nil, false
		}
		out[index] = value
	}
	return out, true
}
