//go:build sqlite

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"epigonos/internal/model"
)

func TestRunCommandSQLitePersistsAcrossInvocations(t *testing.T) {
	workdir := chdirTemp(t)
	dbPath := filepath.Join(workdir, "epigonos.db")

	args := []string{
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--problem", "poly",
		"--pop", "10",
		"--gens", "2",
		"--seed", "11",
		"--workers", "2",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	summaryOut := captureStdout(t, func() error {
		return run(context.Background(), []string{"summary", "--store", "sqlite", "--db-path", dbPath, "--latest", "--json"})
	})
	var summary model.RunSummary
	if err := json.Unmarshal([]byte(summaryOut), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Problem != "poly" || summary.Seed != 11 || summary.Generations != 2 {
		t.Fatalf("unexpected persisted summary: %+v", summary)
	}

	fitnessOut := captureStdout(t, func() error {
		return run(context.Background(), []string{"fitness", "--store", "sqlite", "--db-path", dbPath, "--latest", "--json"})
	})
	var history []float64
	if err := json.Unmarshal([]byte(fitnessOut), &history); err != nil {
		t.Fatalf("decode fitness history: %v", err)
	}
	if len(history) != summary.Generations {
		t.Fatalf("expected %d history entries, got %d", summary.Generations, len(history))
	}

	topOut := captureStdout(t, func() error {
		return run(context.Background(), []string{"top", "--store", "sqlite", "--db-path", dbPath, "--latest", "--json"})
	})
	var top []model.TopGenomeRecord
	if err := json.Unmarshal([]byte(topOut), &top); err != nil {
		t.Fatalf("decode top genomes: %v", err)
	}
	if len(top) == 0 || top[0].Rank != 0 {
		t.Fatalf("expected ranked top genomes, got %+v", top)
	}

	exportOut := captureStdout(t, func() error {
		return run(context.Background(), []string{"export", "--store", "sqlite", "--db-path", dbPath, "--latest"})
	})
	if !strings.Contains(exportOut, "exported run_id="+summary.RunID) {
		t.Fatalf("unexpected export output:\n%s", exportOut)
	}
	if _, err := os.Stat(filepath.Join("exports", summary.RunID, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}
}
