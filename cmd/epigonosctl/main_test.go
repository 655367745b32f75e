package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"epigonos/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
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
	return workdir
}

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read captured stdout: %v", err)
	}
	if runErr != nil {
		t.Fatalf("command failed: %v", runErr)
	}
	return buf.String()
}

func TestRunCommandCreatesArtifacts(t *testing.T) {
	chdirTemp(t)

	args := []string{
		"run",
		"--store", "memory",
		"--problem", "poly",
		"--pop", "10",
		"--gens", "2",
		"--seed", "11",
		"--workers", "2",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}

	entries, err := stats.ListRunIndex("benchmarks")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	if entries[0].Problem != "poly" || entries[0].Seed != 11 {
		t.Fatalf("unexpected index entry: %+v", entries[0])
	}

	runID := entries[0].RunID
	for _, file := range []string{"config.json", "fitness_history.json", "top_genomes.json", "generation_diagnostics.json", "score_series.csv"} {
		path := filepath.Join("benchmarks", runID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
}

func TestRunCommandConfigFileAndFlagOverride(t *testing.T) {
	workdir := chdirTemp(t)

	configPath := filepath.Join(workdir, "run_config.toml")
	body := "problem = \"step\"\npopulation = 30\ngenerations = 5\nseed = 21\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := []string{
		"run",
		"--store", "memory",
		"--config", configPath,
		"--pop", "8",
		"--gens", "2",
		"--workers", "2",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command with config: %v", err)
	}

	entries, err := stats.ListRunIndex("benchmarks")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Problem != "step" || entry.Seed != 21 {
		t.Fatalf("expected config-derived problem and seed, got %+v", entry)
	}
	if entry.PopulationSize != 8 || entry.Generations != 2 {
		t.Fatalf("expected flag overrides for pop and gens, got %+v", entry)
	}
}

func TestRunsCommandJSONListsNewestFirst(t *testing.T) {
	chdirTemp(t)

	for _, seed := range []string{"1", "2"} {
		args := []string{"run", "--store", "memory", "--pop", "8", "--gens", "1", "--seed", seed}
		if err := run(context.Background(), args); err != nil {
			t.Fatalf("seed %s run: %v", seed, err)
		}
	}

	out := captureStdout(t, func() error {
		return run(context.Background(), []string{"runs", "--json"})
	})

	var entries []stats.RunIndexEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode runs output: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two runs, got %d", len(entries))
	}
	if entries[0].Seed != 2 || entries[1].Seed != 1 {
		t.Fatalf("expected newest run first, got seeds %d,%d", entries[0].Seed, entries[1].Seed)
	}
}

func TestBatchCommandReportsSuccessRate(t *testing.T) {
	chdirTemp(t)

	args := []string{
		"batch",
		"--store", "memory",
		"--problem", "poly",
		"--runs", "2",
		"--base-seed", "5",
		"--pop", "8",
		"--gens", "2",
		"--workers", "2",
		"--with-goal",
		"--goal", "-1000000",
	}
	out := captureStdout(t, func() error {
		return run(context.Background(), args)
	})

	if !strings.Contains(out, "success=2") || !strings.Contains(out, "success_rate=1.00") {
		t.Fatalf("expected every run to clear a trivially low goal, got output:\n%s", out)
	}

	entries, err := stats.ListRunIndex("benchmarks")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two indexed batch runs, got %d", len(entries))
	}
}

func TestProblemsCommandListsBuiltins(t *testing.T) {
	chdirTemp(t)

	out := captureStdout(t, func() error {
		return run(context.Background(), []string{"problems"})
	})
	for _, name := range []string{"poly", "step", "tally"} {
		if !strings.Contains(out, "problem="+name) {
			t.Fatalf("expected problem %s in output:\n%s", name, out)
		}
	}
}

func TestUnknownCommandFails(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestRunCommandRejectsUnknownProblem(t *testing.T) {
	chdirTemp(t)

	args := []string{"run", "--store", "memory", "--problem", "nope", "--pop", "8", "--gens", "1"}
	if err := run(context.Background(), args); err == nil {
		t.Fatal("expected error for unknown problem")
	}
}
