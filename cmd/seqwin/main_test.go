package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/seqwin/internal/compute"
	"github.com/samcharles93/seqwin/internal/seqop"
	"github.com/samcharles93/seqwin/pkg/seqfile"
)

// The commands share package-level flag destinations, so these tests do not
// run in parallel.

const goldenJSON = `{
	"boundaries": [0, 3, 4],
	"width": 2,
	"features": [[1, 2], [3, 4], [5, 6], [7, 8]],
	"padding": [[10, 20], [30, 40]],
	"attrs": {"context_start": -1, "context_length": 3, "context_stride": 1, "padding_trainable": true}
}`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// runApp runs the CLI against an isolated config file and returns stdout.
func runApp(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "config.yaml"), config)
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	full := append([]string{"seqwin", "--config", cfgPath, "--log-format", "plain", "--log-level", "error"}, args...)
	err := app.Run(context.Background(), full)
	return stdout.String(), err
}

func mustRun(t *testing.T, config string, args ...string) string {
	t.Helper()
	out, err := runApp(t, config, args...)
	if err != nil {
		t.Fatalf("seqwin %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func readBatchT(t *testing.T, path string) seqfile.Batch {
	t.Helper()
	b, err := readBatch(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func TestProjectJSONUsesStoredAttrs(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "golden.json"), goldenJSON)
	mustRun(t, "", "project", in)

	got := readBatchT(t, filepath.Join(dir, "golden.proj.json"))
	want := [][]float32{
		{10, 20, 1, 2, 3, 4},
		{1, 2, 3, 4, 5, 6},
		{3, 4, 5, 6, 30, 40},
		{10, 20, 7, 8, 30, 40},
	}
	if diff := cmp.Diff(want, seqfile.MatRows(got.Features)); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 3, 4}, got.Layout.Offsets()); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if got.Attrs == nil || *got.Attrs != seqop.NewAttrs(-1, 3, true) {
		t.Fatalf("unexpected attrs %+v", got.Attrs)
	}
}

func TestProjectFlagsOverrideStoredAttrs(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "golden.json"), goldenJSON)
	out := filepath.Join(dir, "fixed.json")
	mustRun(t, "", "project", "--trainable=false", "--out", out, in)

	want := [][]float32{
		{0, 0, 1, 2, 3, 4},
		{1, 2, 3, 4, 5, 6},
		{3, 4, 5, 6, 0, 0},
		{0, 0, 7, 8, 0, 0},
	}
	if diff := cmp.Diff(want, seqfile.MatRows(readBatchT(t, out).Features)); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestGenProjectSeqFiles(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	var inputs []string
	for i, lengths := range []string{"3,1,0,4", "2,2"} {
		p := filepath.Join(dir, []string{"a.seq", "b.seq"}[i])
		mustRun(t, "", "gen", "--out", p, "--lengths", lengths, "--width", "3",
			"--context-start", "-2", "--context-length", "4", "--trainable", "--seed", "7")
		inputs = append(inputs, p)
	}

	args := append([]string{"project", "--out-dir", outDir, "--backend", "parallel", "--workers", "2", "--print"}, inputs...)
	stdout := mustRun(t, "", args...)
	if lower := strings.ToLower(stdout); !strings.Contains(lower, "seq") || !strings.Contains(lower, "a.seq") {
		t.Fatalf("missing table output:\n%s", stdout)
	}

	for _, in := range inputs {
		src := readBatchT(t, in)
		op, err := seqop.New(*src.Attrs, nil)
		if err != nil {
			t.Fatal(err)
		}
		want, err := op.Forward(compute.Serial(), src.Features, src.Layout, src.Padding)
		if err != nil {
			t.Fatal(err)
		}
		got := readBatchT(t, outputPath(in, outDir, "proj"))
		if diff := cmp.Diff(seqfile.MatRows(want), seqfile.MatRows(got.Features)); diff != "" {
			t.Fatalf("%s: projection mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestProjectErrors(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "golden.json"), goldenJSON)

	if _, err := runApp(t, "", "project"); err == nil {
		t.Fatalf("expected error without inputs")
	}
	if _, err := runApp(t, "", "project", "--out", filepath.Join(dir, "x.json"), in, in); err == nil {
		t.Fatalf("expected error for --out with several inputs")
	}
	if _, err := runApp(t, "", "project", "--context-length", "0", in); err == nil {
		t.Fatalf("expected error for zero context length")
	}
	if _, err := runApp(t, "", "project", "--dtype", "f64", in); err == nil {
		t.Fatalf("expected error for unknown dtype")
	}
	if _, err := runApp(t, "", "project", filepath.Join(dir, "missing.seq")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestGradAllOnes(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "golden.json"), goldenJSON)
	mustRun(t, "", "grad", in)

	got := readBatchT(t, filepath.Join(dir, "golden.grad.json"))
	if diff := cmp.Diff([][]float32{{2, 2}, {3, 3}, {2, 2}, {1, 1}}, seqfile.MatRows(got.Features)); diff != "" {
		t.Fatalf("input gradient mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]float32{{2, 2}, {2, 2}}, seqfile.MatRows(got.Padding)); diff != "" {
		t.Fatalf("padding gradient mismatch (-want +got):\n%s", diff)
	}
}

func TestGradFromFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, filepath.Join(dir, "golden.json"), goldenJSON)
	// Only the centre slot of the first row carries gradient.
	g := writeFile(t, filepath.Join(dir, "g.json"), `{
		"boundaries": [0, 3, 4],
		"width": 6,
		"features": [[0, 0, 1, 1, 0, 0], [0, 0, 0, 0, 0, 0], [0, 0, 0, 0, 0, 0], [0, 0, 0, 0, 0, 0]]
	}`)
	out := filepath.Join(dir, "g.seq")
	mustRun(t, "", "grad", "--output-grad", g, "--no-padding", "--out", out, in)

	got := readBatchT(t, out)
	if diff := cmp.Diff([][]float32{{1, 1}, {0, 0}, {0, 0}, {0, 0}}, seqfile.MatRows(got.Features)); diff != "" {
		t.Fatalf("input gradient mismatch (-want +got):\n%s", diff)
	}
	if got.Padding.R != 0 {
		t.Fatalf("unexpected padding gradient %dx%d", got.Padding.R, got.Padding.C)
	}
}

func TestConfigSuppliesWindowDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := "context_start: 0\ncontext_length: 2\ndtype: f16\n"

	out := filepath.Join(dir, "cfg.seq")
	mustRun(t, cfg, "gen", "--out", out, "--lengths", "2,3")
	f, err := seqfile.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	meta, err := f.Meta()
	_ = f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if meta.DType != seqfile.F16 || meta.Attrs == nil || meta.Attrs.ContextLength != 2 || meta.Attrs.ContextStart != 0 {
		t.Fatalf("config not applied: %+v attrs=%+v", meta, meta.Attrs)
	}

	// An explicit flag wins over the config file.
	mustRun(t, cfg, "gen", "--out", out, "--lengths", "2,3", "--context-length", "5")
	if b := readBatchT(t, out); b.Attrs.ContextLength != 5 {
		t.Fatalf("flag not applied: %+v", b.Attrs)
	}
}

func TestVersionJSON(t *testing.T) {
	out := mustRun(t, "", "version", "--json")
	if !strings.Contains(out, `"version"`) {
		t.Fatalf("unexpected version output %q", out)
	}
}
