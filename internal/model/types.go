package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the resolved run-configuration snapshot kept in the registry.
// TargetValue is nil when no target objective is set.
type RunRecord struct {
	VersionedRecord
	RunID              string          `json:"run_id"`
	CreatedAtUTC       string          `json:"created_at_utc"`
	Dimension          int             `json:"dimension"`
	PopulationSize     int             `json:"population_size"`
	Seed               uint64          `json:"seed"`
	Algorithm          int             `json:"algorithm"`
	AlgorithmName      string          `json:"algorithm_name"`
	MaxIterations      int             `json:"max_iterations"`
	MaxEvaluations     int             `json:"max_evaluations"`
	TargetValue        *float64        `json:"target_value,omitempty"`
	FunctionTolerance  float64         `json:"function_tolerance"`
	ParameterTolerance float64         `json:"parameter_tolerance"`
	MaxHistory         int             `json:"max_history"`
	Quiet              bool            `json:"quiet"`
	ParallelEvaluation bool            `json:"parallel_evaluation"`
	GradientInjection  bool            `json:"gradient_injection"`
	EDM                bool            `json:"edm"`
	OutputPath         string          `json:"output_path,omitempty"`
	RegionMin          []float64       `json:"region_min"`
	RegionMax          []float64       `json:"region_max"`
	Frozen             map[int]float64 `json:"frozen,omitempty"`
}

// ProgressPoint is one engine-reported measurement of a run.
type ProgressPoint struct {
	Iteration     int     `json:"iteration"`
	Evaluations   int     `json:"evaluations"`
	Value         float64 `json:"value"`
	RecordedAtUTC string  `json:"recorded_at_utc,omitempty"`
}
