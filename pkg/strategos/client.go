package strategos

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"strategos/internal/model"
	"strategos/internal/stats"
	"strategos/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "strategos.db"
)

// ClientOptions configures the run registry facade. Empty fields fall back
// to the memory store and the default artifact locations.
type ClientOptions struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	Logger       *zerolog.Logger
	Now          func() time.Time
}

// Client registers resolved run configurations and tracks their progress.
type Client struct {
	store        storage.Store
	artifactsDir string
	logger       *zerolog.Logger
	now          func() time.Time
	initialized  bool
}

type RunsRequest struct {
	Limit int
}

type ProgressRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func NewClient(opts ClientOptions) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		logger:       opts.Logger,
		now:          opts.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Reset drops every registered run from the backing store.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	return resetter.Reset(ctx)
}

// Register stores a resolved configuration snapshot and returns its run id.
// An empty run id is derived from algorithm name, seed and registration time.
func (c *Client) Register(ctx context.Context, record model.RunRecord) (string, error) {
	if record.Dimension <= 0 {
		return "", errors.New("run record dimension must be > 0")
	}
	algo := Algorithm(record.Algorithm)
	if !algo.Valid() {
		return "", errors.Errorf("unknown algorithm code: %d", record.Algorithm)
	}
	if record.AlgorithmName == "" {
		record.AlgorithmName = algo.String()
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}

	now := c.clock().UTC()
	record.SchemaVersion = storage.CurrentSchemaVersion
	record.CodecVersion = storage.CurrentCodecVersion
	if record.RunID == "" {
		record.RunID = fmt.Sprintf("%s-%d-%d", record.AlgorithmName, record.Seed, now.Unix())
	}
	if record.CreatedAtUTC == "" {
		record.CreatedAtUTC = now.Format(time.RFC3339Nano)
	}

	if err := c.store.SaveRun(ctx, record); err != nil {
		return "", errors.Wrap(err, "save run")
	}
	c.diag().Info().
		Str("run_id", record.RunID).
		Str("algorithm", record.AlgorithmName).
		Int("dimension", record.Dimension).
		Msg("run registered")
	return record.RunID, nil
}

// RecordProgress appends one progress point to a registered run, mirrors it
// to the run's output file when one is configured, and echoes it to the
// diagnostic sink unless the run is quiet.
func (c *Client) RecordProgress(ctx context.Context, runID string, point model.ProgressPoint) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := c.ensureStore(ctx); err != nil {
		return err
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return errors.Wrap(err, "load run")
	}
	if !ok {
		return errors.Errorf("run not found: %s", runID)
	}

	if point.RecordedAtUTC == "" {
		point.RecordedAtUTC = c.clock().UTC().Format(time.RFC3339Nano)
	}
	if err := c.store.AppendProgress(ctx, runID, point); err != nil {
		return errors.Wrap(err, "append progress")
	}
	if run.OutputPath != "" {
		if err := stats.AppendProgressLine(run.OutputPath, point); err != nil {
			return errors.Wrap(err, "append output line")
		}
	}
	if !run.Quiet {
		c.diag().Info().
			Str("run_id", runID).
			Int("iteration", point.Iteration).
			Int("evaluations", point.Evaluations).
			Float64("value", point.Value).
			Msg("progress recorded")
	}
	return nil
}

func (c *Client) Run(ctx context.Context, runID string) (model.RunRecord, bool, error) {
	if err := c.ensureStore(ctx); err != nil {
		return model.RunRecord{}, false, err
	}
	return c.store.GetRun(ctx, runID)
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunRecord, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

func (c *Client) Progress(ctx context.Context, req ProgressRequest) ([]model.ProgressPoint, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		var err error
		runID, err = c.latestRunID(ctx)
		if err != nil {
			return nil, err
		}
	}
	if runID == "" {
		return nil, errors.New("progress requires run id or latest")
	}

	points, ok, err := c.store.GetProgress(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("progress not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(points) > req.Limit {
		points = points[:req.Limit]
	}
	return points, nil
}

// Export writes run artifacts for one run and refreshes the run index.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if err := c.ensureStore(ctx); err != nil {
		return ExportSummary{}, err
	}

	runID := req.RunID
	if req.Latest {
		var err error
		runID, err = c.latestRunID(ctx)
		if err != nil {
			return ExportSummary{}, err
		}
	}

	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, errors.Wrap(err, "load run")
	}
	if !ok {
		return ExportSummary{}, errors.Errorf("run not found: %s", runID)
	}
	points, _, err := c.store.GetProgress(ctx, runID)
	if err != nil {
		return ExportSummary{}, errors.Wrap(err, "load progress")
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{Run: run, Progress: points})
	if err != nil {
		return ExportSummary{}, err
	}
	summary := stats.SummarizeProgress(runID, points)
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          runID,
		AlgorithmName:  run.AlgorithmName,
		Dimension:      run.Dimension,
		PopulationSize: run.PopulationSize,
		Seed:           run.Seed,
		Points:         summary.Points,
		BestValue:      summary.BestValue,
		CreatedAtUTC:   run.CreatedAtUTC,
	}); err != nil {
		return ExportSummary{}, err
	}

	directory := runDir
	if req.OutDir != "" {
		directory, err = stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
		if err != nil {
			return ExportSummary{}, err
		}
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(directory)}, nil
}

func (c *Client) latestRunID(ctx context.Context) (string, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].RunID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return errors.Wrap(err, "init store")
	}
	c.initialized = true
	return nil
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) diag() *zerolog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return &log.Logger
}
