package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/seqwin/internal/api"
	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/optim"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

func TestParseLengths(t *testing.T) {
	t.Parallel()

	got, err := parseLengths(" 3, 0,5 ,")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 0, 5}, got); diff != "" {
		t.Fatalf("lengths mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"", ",", "1,x", "2,-1"} {
		if _, err := parseLengths(bad); err == nil {
			t.Fatalf("parseLengths(%q): expected error", bad)
		}
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, dir, want string
	}{
		{"data/a.seq", "", filepath.Join("data", "a.proj.seq")},
		{"data/a.json", "out", filepath.Join("out", "a.proj.json")},
		{"b", "", "b.proj"},
	}
	for _, tc := range tests {
		if got := outputPath(tc.in, tc.dir, "proj"); got != tc.want {
			t.Fatalf("outputPath(%q, %q) = %q want %q", tc.in, tc.dir, got, tc.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "context_start: -2\ncontext_length: 5\npadding_trainable: true\nbackend: serial\nworkers: 3\nlog_level: debug\nserver_address: 0.0.0.0:9000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ContextStart == nil || *cfg.ContextStart != -2 || cfg.ContextLength == nil || *cfg.ContextLength != 5 {
		t.Fatalf("window not loaded: %+v", cfg)
	}
	if cfg.PaddingTrainable == nil || !*cfg.PaddingTrainable || cfg.Workers == nil || *cfg.Workers != 3 {
		t.Fatalf("flags not loaded: %+v", cfg)
	}
	if cfg.Backend != "serial" || cfg.LogLevel != "debug" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("strings not loaded: %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for an explicit missing file")
	}
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("context_length: [1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTrainReducesLoss(t *testing.T) {
	t.Parallel()

	res, err := train(trainConfig{
		Attrs:    seqop.NewAttrs(-1, 3, true),
		Lengths:  []int{5, 1, 3, 8, 2},
		Width:    4,
		Steps:    300,
		LR:       0.02,
		Opt:      optim.NewDecayedAdagrad(),
		Seed:     1,
		LogEvery: 100,
		Compute:  compute.Serial(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.FinalLoss >= 0.1*res.InitialLoss {
		t.Fatalf("loss %v -> %v did not drop enough", res.InitialLoss, res.FinalLoss)
	}
	steps := make([]int, len(res.History))
	for i, p := range res.History {
		steps[i] = p.Step
	}
	if diff := cmp.Diff([]int{0, 100, 200, 300}, steps); diff != "" {
		t.Fatalf("history steps mismatch (-want +got):\n%s", diff)
	}

	if _, err := train(trainConfig{Attrs: seqop.NewAttrs(-1, 3, false), Lengths: []int{1}, Width: 1, Steps: 1}); err == nil {
		t.Fatalf("expected error for fixed padding")
	}
}

func TestBenchProjection(t *testing.T) {
	t.Parallel()

	res, err := benchProjection(compute.Serial(), seqop.NewAttrs(-2, 5, true), []int{4, 0, 7}, 3, 1, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 || res[0].Phase != "forward" || res[1].Phase != "backward" {
		t.Fatalf("unexpected results %+v", res)
	}
	for _, r := range res {
		if r.Backend != compute.SerialName || r.Workers != 1 || r.Mean <= 0 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

func TestRemoteProjectMatchesLocal(t *testing.T) {
	t.Parallel()

	e := echo.New()
	api.NewServer(nil, api.NewService(compute.Serial(), nil)).Register(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	features, layout, err := randomBatch([]int{3, 0, 2}, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	attrs := seqop.NewAttrs(-1, 3, false)
	b := seqfile.Batch{Features: features, Layout: layout}

	got, err := remoteProject(context.Background(), api.NewClient(srv.URL, 5*time.Second), attrs, b)
	if err != nil {
		t.Fatal(err)
	}
	op, err := seqop.New(attrs, nil)
	if err != nil {
		t.Fatal(err)
	}
	want, err := op.Forward(compute.Serial(), features, layout, b.Padding)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seqfile.MatRows(want), seqfile.MatRows(got.Features)); diff != "" {
		t.Fatalf("remote projection mismatch (-want +got):\n%s", diff)
	}
}
