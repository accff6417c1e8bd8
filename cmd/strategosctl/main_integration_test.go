//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strategos/internal/stats"
)

func TestPlanRecordHistoryExportSQLite(t *testing.T) {
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})

	dbPath := filepath.Join(workdir, "strategos.db")
	planOut, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"plan",
			"-store", "sqlite",
			"-db-path", dbPath,
			"-dim", "3",
			"-seed", "42",
			"-algo", "cmaes",
			"-x0min", "-1",
			"-x0max", "1",
			"-out", "runs/progress.dat",
			"-register",
		})
	})
	if err != nil {
		t.Fatalf("plan command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	runID := registeredRunID(t, planOut)
	for _, record := range [][]string{
		{"-iteration", "1", "-evaluations", "7", "-value", "10.5"},
		{"-iteration", "2", "-evaluations", "14", "-value", "2.25"},
	} {
		args := append([]string{
			"record",
			"-store", "sqlite",
			"-db-path", dbPath,
			"-run-id", runID,
		}, record...)
		if err := run(context.Background(), args); err != nil {
			t.Fatalf("record command: %v", err)
		}
	}

	plotData, err := os.ReadFile("runs/progress.dat")
	if err != nil {
		t.Fatalf("read plot data: %v", err)
	}
	if string(plotData) != "1 7 10.5\n2 14 2.25\n" {
		t.Fatalf("unexpected plot data: %q", string(plotData))
	}

	runsOut, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(runsOut, "run_id="+runID) || !strings.Contains(runsOut, "algorithm=cmaes") {
		t.Fatalf("expected registered run in listing: %s", runsOut)
	}

	historyOut, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"history",
			"-store", "sqlite",
			"-db-path", dbPath,
			"-run-id", runID,
		})
	})
	if err != nil {
		t.Fatalf("history command: %v", err)
	}
	historyLines := strings.Split(strings.TrimSpace(historyOut), "\n")
	if len(historyLines) != 2 {
		t.Fatalf("expected two progress points, got %d: %s", len(historyLines), historyOut)
	}
	if !strings.HasPrefix(historyLines[0], "iteration=1 evaluations=7 value=10.5") {
		t.Fatalf("unexpected first history line: %s", historyLines[0])
	}

	exportOut, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"export",
			"-store", "sqlite",
			"-db-path", dbPath,
			"-latest",
			"-out", "exports",
		})
	})
	if err != nil {
		t.Fatalf("export command: %v", err)
	}
	if !strings.Contains(exportOut, "exported run_id="+runID) {
		t.Fatalf("expected export confirmation: %s", exportOut)
	}

	for _, file := range []string{"run_record.json", "progress.json", "progress.csv", "summary.json"} {
		exported := filepath.Join("exports", runID, file)
		if _, err := os.Stat(exported); err != nil {
			t.Fatalf("expected exported artifact %s: %v", exported, err)
		}
		staged := filepath.Join(artifactsDir, runID, file)
		if _, err := os.Stat(staged); err != nil {
			t.Fatalf("expected staged artifact %s: %v", staged, err)
		}
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != runID {
		t.Fatalf("expected one indexed run, got %+v", entries)
	}
	if entries[0].Points != 2 || entries[0].BestValue != 2.25 {
		t.Fatalf("unexpected index summary: %+v", entries[0])
	}
}

func TestInitAndResetSQLite(t *testing.T) {
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})

	dbPath := filepath.Join(workdir, "strategos.db")
	initOut, err := captureStdout(func() error {
		return run(context.Background(), []string{"init", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("init command: %v", err)
	}
	if !strings.Contains(initOut, "initialized store=sqlite") {
		t.Fatalf("expected init confirmation: %s", initOut)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	if err := run(context.Background(), []string{
		"plan",
		"-store", "sqlite",
		"-db-path", dbPath,
		"-dim", "2",
		"-seed", "5",
		"-register",
	}); err != nil {
		t.Fatalf("plan command: %v", err)
	}

	resetOut, err := captureStdout(func() error {
		return run(context.Background(), []string{"reset", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if !strings.Contains(resetOut, "reset store=sqlite") {
		t.Fatalf("expected reset confirmation: %s", resetOut)
	}

	runsOut, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs", "-store", "sqlite", "-db-path", dbPath})
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(runsOut, "no runs found") {
		t.Fatalf("expected empty listing after reset: %s", runsOut)
	}
}

func registeredRunID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "registered run_id=") {
			continue
		}
		fields := strings.Fields(line)
		return strings.TrimPrefix(fields[1], "run_id=")
	}
	t.Fatalf("no registration line in output: %s", out)
	return ""
}
