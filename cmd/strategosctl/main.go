package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"strategos/internal/model"
	"strategos/internal/storage"
	"strategos/pkg/genopheno"
	stratapi "strategos/pkg/strategos"
)

const artifactsDir = "artifacts"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "plan":
		return runPlan(ctx, args[1:])
	case "algorithms":
		return runAlgorithms(ctx, args[1:])
	case "sample":
		return runSample(ctx, args[1:])
	case "record":
		return runRecord(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runPlan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON run configuration file")
	dim := fs.Int("dim", 0, "problem dimension")
	lambda := fs.Int("lambda", 0, "population size, 0 derives 4+floor(3*ln(dim))")
	seed := fs.Uint64("seed", 0, "random seed, 0 derives one from the clock")
	algo := fs.String("algo", "", "algorithm variant name")
	x0 := fs.String("x0", "", "initial point: scalar or comma separated vector")
	x0min := fs.String("x0min", "", "initial region lower bound: scalar or comma separated vector")
	x0max := fs.String("x0max", "", "initial region upper bound: scalar or comma separated vector")
	freeze := fs.String("freeze", "", "pinned coordinates as index=value pairs, comma separated")
	maxIter := fs.Int("max-iter", 0, "iteration budget, <=0 unlimited")
	maxEvals := fs.Int("max-evals", 0, "evaluation budget, <=0 unlimited")
	ftarget := fs.Float64("ftarget", 0, "stop once the best value reaches this target")
	ftol := fs.Float64("ftol", 0, "function value stagnation tolerance")
	xtol := fs.Float64("xtol", 0, "parameter stagnation tolerance")
	maxHist := fs.Int("max-hist", 0, "best value history depth")
	quiet := fs.Bool("quiet", false, "suppress progress echo")
	parallel := fs.Bool("parallel", false, "request parallel candidate evaluation")
	gradient := fs.Bool("gradient", false, "request gradient injection")
	edm := fs.Bool("edm", false, "request expected distance to minimum estimation")
	out := fs.String("out", "", "plot data output path")
	asJSON := fs.Bool("json", false, "print the resolved run record as JSON")
	register := fs.Bool("register", false, "store the resolved run record")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	spec, err := loadOrDefaultPlanSpec(*configPath)
	if err != nil {
		return err
	}
	if err := overrideFromFlags(&spec, setFlags, map[string]any{
		"dim":       *dim,
		"lambda":    *lambda,
		"seed":      *seed,
		"algo":      *algo,
		"x0":        *x0,
		"x0min":     *x0min,
		"x0max":     *x0max,
		"freeze":    *freeze,
		"max-iter":  *maxIter,
		"max-evals": *maxEvals,
		"ftarget":   *ftarget,
		"ftol":      *ftol,
		"xtol":      *xtol,
		"max-hist":  *maxHist,
		"quiet":     *quiet,
		"parallel":  *parallel,
		"gradient":  *gradient,
		"edm":       *edm,
		"out":       *out,
	}); err != nil {
		return err
	}

	cfg, err := buildRunConfig(spec)
	if err != nil {
		return err
	}
	if cfg.Quiet() {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	record := cfg.Snapshot()
	if *register {
		client, err := stratapi.NewClient(stratapi.ClientOptions{
			StoreKind:    *storeKind,
			DBPath:       *dbPath,
			ArtifactsDir: artifactsDir,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		runID, err := client.Register(ctx, record)
		if err != nil {
			return err
		}
		stored, ok, err := client.Run(ctx, runID)
		if err != nil {
			return err
		}
		if ok {
			record = stored
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	printRunRecord(record)
	if *register {
		fmt.Printf("registered run_id=%s store=%s\n", record.RunID, *storeKind)
	}
	return nil
}

func runAlgorithms(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("algorithms", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the table as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	names := stratapi.AlgorithmNames()
	if *asJSON {
		entries := make([]algorithmEntry, 0, len(names))
		for code, name := range names {
			entries = append(entries, algorithmEntry{Name: name, Code: code})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for code, name := range names {
		fmt.Printf("name=%s code=%d\n", name, code)
	}
	return nil
}

type algorithmEntry struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

func runSample(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON run configuration file")
	dim := fs.Int("dim", 0, "problem dimension")
	seed := fs.Uint64("seed", 0, "random seed, 0 derives one from the clock")
	x0 := fs.String("x0", "", "initial point: scalar or comma separated vector")
	x0min := fs.String("x0min", "", "initial region lower bound: scalar or comma separated vector")
	x0max := fs.String("x0max", "", "initial region upper bound: scalar or comma separated vector")
	freeze := fs.String("freeze", "", "pinned coordinates as index=value pairs, comma separated")
	count := fs.Int("n", 1, "number of start means to draw")
	asJSON := fs.Bool("json", false, "print samples as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return errors.New("sample requires -n > 0")
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	spec, err := loadOrDefaultPlanSpec(*configPath)
	if err != nil {
		return err
	}
	if err := overrideFromFlags(&spec, setFlags, map[string]any{
		"dim":    *dim,
		"seed":   *seed,
		"x0":     *x0,
		"x0min":  *x0min,
		"x0max":  *x0max,
		"freeze": *freeze,
	}); err != nil {
		return err
	}

	cfg, err := buildRunConfig(spec)
	if err != nil {
		return err
	}

	rng := cfg.NewRand()
	samples := make([][]float64, 0, *count)
	for i := 0; i < *count; i++ {
		samples = append(samples, cfg.SampleInitialMean(rng))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(samples)
	}

	for i, mean := range samples {
		fmt.Printf("sample idx=%d seed=%d mean=%s\n", i, cfg.Seed(), formatVector(mean))
	}
	return nil
}

func runRecord(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	iteration := fs.Int("iteration", 0, "iteration the value was observed at")
	evaluations := fs.Int("evaluations", 0, "cumulative evaluation count")
	value := fs.Float64("value", 0, "best objective value at this iteration")
	quiet := fs.Bool("quiet", false, "suppress progress echo")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	if *runID == "" {
		return errors.New("record requires -run-id")
	}
	if !setFlags["value"] {
		return errors.New("record requires -value")
	}
	if *quiet {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	point := model.ProgressPoint{
		Iteration:   *iteration,
		Evaluations: *evaluations,
		Value:       *value,
	}
	if err := client.RecordProgress(ctx, *runID, point); err != nil {
		return err
	}

	fmt.Printf("recorded run_id=%s iteration=%d evaluations=%d value=%g\n", *runID, *iteration, *evaluations, *value)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum runs to list")
	asJSON := fs.Bool("json", false, "print runs as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, stratapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, run := range runs {
		fmt.Printf("run_id=%s algorithm=%s dim=%d lambda=%d seed=%d created_at=%s\n",
			run.RunID,
			run.AlgorithmName,
			run.Dimension,
			run.PopulationSize,
			run.Seed,
			run.CreatedAtUTC,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recently registered run")
	limit := fs.Int("limit", 0, "maximum points to list, 0 lists all")
	asJSON := fs.Bool("json", false, "print progress as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	points, err := client.Progress(ctx, stratapi.ProgressRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}

	for _, point := range points {
		fmt.Printf("iteration=%d evaluations=%d value=%g recorded_at=%s\n",
			point.Iteration,
			point.Evaluations,
			point.Value,
			point.RecordedAtUTC,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recently registered run")
	outDir := fs.String("out", "exports", "export output directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "strategos.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stratapi.NewClient(stratapi.ClientOptions{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, stratapi.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func buildRunConfig(spec planSpec) (*stratapi.RunConfig[genopheno.Identity], error) {
	if spec.Dim <= 0 {
		return nil, errors.New("plan requires -dim or a config file with dimension")
	}

	cfg, err := stratapi.NewWithOptions(spec.Dim, stratapi.Options[genopheno.Identity]{
		PopulationSize: spec.Lambda,
		Seed:           spec.Seed,
	})
	if err != nil {
		return nil, err
	}

	if spec.Algorithm != "" {
		if err := cfg.SetAlgorithmName(spec.Algorithm); err != nil {
			return nil, err
		}
	}
	switch {
	case len(spec.X0) == 0:
	case len(spec.X0) == 1:
		cfg.SetInitialPoint(spec.X0[0])
	default:
		if err := cfg.SetInitialPointVector(spec.X0); err != nil {
			return nil, err
		}
	}
	switch {
	case len(spec.X0Min) == 0 && len(spec.X0Max) == 0:
	case len(spec.X0Min) == 1 && len(spec.X0Max) == 1:
		if err := cfg.SetInitialRegion(spec.X0Min[0], spec.X0Max[0]); err != nil {
			return nil, err
		}
	default:
		if err := cfg.SetInitialRegionVectors(spec.X0Min, spec.X0Max); err != nil {
			return nil, err
		}
	}
	for index, value := range spec.Frozen {
		if err := cfg.Freeze(index, value); err != nil {
			return nil, err
		}
	}
	if spec.MaxIterations != 0 {
		cfg.SetMaxIterations(spec.MaxIterations)
	}
	if spec.MaxEvaluations != 0 {
		cfg.SetMaxEvaluations(spec.MaxEvaluations)
	}
	if spec.Target != nil {
		cfg.SetTargetObjective(*spec.Target)
	}
	if spec.FunctionTolerance != 0 {
		cfg.SetFunctionTolerance(spec.FunctionTolerance)
	}
	if spec.ParameterTolerance != 0 {
		cfg.SetParameterTolerance(spec.ParameterTolerance)
	}
	if spec.MaxHistory != 0 {
		cfg.SetMaxHistory(spec.MaxHistory)
	}
	if spec.Quiet {
		cfg.SetQuiet(true)
	}
	if spec.Parallel {
		cfg.SetParallelEvaluation(true)
	}
	if spec.Gradient {
		cfg.SetGradientInjection(true)
	}
	if spec.EDM {
		cfg.SetEDM(true)
	}
	if spec.OutputPath != "" {
		cfg.SetOutputPath(spec.OutputPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printRunRecord(record model.RunRecord) {
	target := math.Inf(-1)
	if record.TargetValue != nil {
		target = *record.TargetValue
	}
	fmt.Printf("plan dim=%d lambda=%d seed=%d algorithm=%s code=%d max_iter=%d max_evals=%d target=%g ftol=%g xtol=%g max_hist=%d quiet=%t parallel=%t gradient=%t edm=%t\n",
		record.Dimension,
		record.PopulationSize,
		record.Seed,
		record.AlgorithmName,
		record.Algorithm,
		record.MaxIterations,
		record.MaxEvaluations,
		target,
		record.FunctionTolerance,
		record.ParameterTolerance,
		record.MaxHistory,
		record.Quiet,
		record.ParallelEvaluation,
		record.GradientInjection,
		record.EDM,
	)
	fmt.Printf("x0min=%s x0max=%s\n", formatVector(record.RegionMin), formatVector(record.RegionMax))
	if len(record.Frozen) > 0 {
		fmt.Printf("frozen=%s\n", formatFrozen(record.Frozen))
	}
	if record.OutputPath != "" {
		fmt.Printf("out=%s\n", record.OutputPath)
	}
}

func formatVector(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func formatFrozen(frozen map[int]float64) string {
	indices := make([]int, 0, len(frozen))
	for index := range frozen {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	parts := make([]string, 0, len(indices))
	for _, index := range indices {
		parts = append(parts, fmt.Sprintf("%d=%s", index, strconv.FormatFloat(frozen[index], 'g', -1, 64)))
	}
	return strings.Join(parts, ",")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: strategosctl <init|reset|plan|algorithms|sample|record|runs|history|export> [flags]", msg)
}
