package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"strategos/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts bundles everything exported for a single run.
type RunArtifacts struct {
	Run      model.RunRecord       `json:"run"`
	Progress []model.ProgressPoint `json:"progress"`
}

// ProgressSummary condenses a progress trail for quick inspection.
type ProgressSummary struct {
	RunID       string  `json:"run_id"`
	Points      int     `json:"points"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
	FirstValue  float64 `json:"first_value"`
	FinalValue  float64 `json:"final_value"`
	BestValue   float64 `json:"best_value"`
	WorstValue  float64 `json:"worst_value"`
	MeanValue   float64 `json:"mean_value"`
	StdValue    float64 `json:"std_value"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	AlgorithmName  string  `json:"algorithm_name"`
	Dimension      int     `json:"dimension"`
	PopulationSize int     `json:"population_size"`
	Seed           uint64  `json:"seed"`
	Points         int     `json:"points"`
	BestValue      float64 `json:"best_value"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// AppendProgressLine appends one plot-data row to the run's output file.
// Rows are space separated: iteration, evaluation count, objective value.
func AppendProgressLine(path string, point model.ProgressPoint) error {
	if path == "" {
		return errors.New("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%d %d %g\n", point.Iteration, point.Evaluations, point.Value)
	return err
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.RunID == "" {
		return "", errors.New("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run_record.json"), artifacts.Run); err != nil {
		return "", errors.Wrap(err, "write run record")
	}
	if err := writeJSON(filepath.Join(runDir, "progress.json"), artifacts.Progress); err != nil {
		return "", errors.Wrap(err, "write progress")
	}
	if err := writeProgressCSV(filepath.Join(runDir, "progress.csv"), artifacts.Progress); err != nil {
		return "", errors.Wrap(err, "write progress series")
	}
	summary := SummarizeProgress(artifacts.Run.RunID, artifacts.Progress)
	if err := writeJSON(filepath.Join(runDir, "summary.json"), summary); err != nil {
		return "", errors.Wrap(err, "write summary")
	}

	return runDir, nil
}

// SummarizeProgress reduces a progress trail to its headline numbers. Values
// are objective values, so lower is better.
func SummarizeProgress(runID string, points []model.ProgressPoint) ProgressSummary {
	summary := ProgressSummary{RunID: runID, Points: len(points)}
	if len(points) == 0 {
		return summary
	}

	last := points[len(points)-1]
	summary.Iterations = last.Iteration
	summary.Evaluations = last.Evaluations
	summary.FirstValue = points[0].Value
	summary.FinalValue = last.Value

	values := make([]float64, len(points))
	for i, point := range points {
		values[i] = point.Value
	}
	summary.BestValue = values[0]
	summary.WorstValue = values[0]
	for _, value := range values[1:] {
		if value < summary.BestValue {
			summary.BestValue = value
		}
		if value > summary.WorstValue {
			summary.WorstValue = value
		}
	}
	summary.MeanValue = mean(values)
	summary.StdValue = std(values)
	return summary
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errors.New("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", errors.New("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"run_record.json", "progress.json", "progress.csv", "summary.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", errors.Wrapf(err, "copy %s", file)
		}
	}

	return dst, nil
}

func writeProgressCSV(path string, points []model.ProgressPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"iteration", "evaluations", "value"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{
			strconv.Itoa(point.Iteration),
			strconv.Itoa(point.Evaluations),
			strconv.FormatFloat(point.Value, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// std returns population standard deviation.
func std(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, value := range values {
		diff := m - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
