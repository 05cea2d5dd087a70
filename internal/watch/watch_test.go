package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	_ "sinogen/internal/edf"
	"sinogen/internal/pipeline"
)

func TestWatcherBatchesArtifactsIntoOneJob(t *testing.T) {
	dir := t.TempDir()
	jobs := make(chan pipeline.Job, 4)
	w, err := New(dir, 100*time.Millisecond, func(j pipeline.Job) error {
		jobs <- j
		return nil
	}, map[string]any{"position": 16.0}, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("scan_%04d.edf", i))
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case job := <-jobs:
		if job.Type != pipeline.JobAssemble || job.InputPath != dir {
			t.Fatalf("unexpected job %+v", job)
		}
		if job.Options["position"] != 16.0 {
			t.Fatalf("options not forwarded: %v", job.Options)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no job enqueued after settle window")
	}

	// All three writes fall inside one settle window.
	select {
	case job := <-jobs:
		t.Fatalf("unexpected second job %+v", job)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	jobs := make(chan pipeline.Job, 1)
	w, err := New(dir, 50*time.Millisecond, func(j pipeline.Job) error {
		jobs <- j
		return nil
	}, nil, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case job := <-jobs:
		t.Fatalf("job enqueued for non-artifact: %+v", job)
	case <-time.After(300 * time.Millisecond):
	}
}
