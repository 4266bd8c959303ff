package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/envboot/envboot/internal/config"
	apperrors "github.com/envboot/envboot/internal/errors"
	"github.com/envboot/envboot/internal/fetch"
	"github.com/envboot/envboot/internal/logging"
	"github.com/envboot/envboot/internal/resources"
)

type fakeRunner struct {
	onPath map[string]bool
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) error {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.onPath[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func testLogger() logging.Logger {
	return logging.NewLogger(io.Discard, "test")
}

// fakeFetcher simulates the download phase: tasks in failing terminate in
// error, the rest write a placeholder archive at their destination.
type fakeFetcher struct {
	failing map[string]bool

	mu      sync.Mutex
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, task fetch.Task) (int64, int, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, task.Name)
	f.mu.Unlock()

	if f.failing[task.Name] {
		return 0, 1, apperrors.FetchError{Task: task.Name, Attempts: 1, Cause: errors.New("mirror returned 503")}
	}
	if err := os.WriteFile(task.Dest, []byte("archive"), 0o644); err != nil {
		return 0, 1, err
	}
	return 7, 1, nil
}

// populateAll creates every resource destination so presence checks skip the
// whole fetch phase.
func populateAll(t *testing.T, workDir string, withCorpus bool) {
	t.Helper()
	for _, res := range resources.Catalog(withCorpus) {
		dir := res.DestPath(workDir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "payload"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestNew_ZeroArgs verifies a bare invocation is treated as a help request.
func TestNew_ZeroArgs(t *testing.T) {
	var errBuf bytes.Buffer
	_, err := New([]string{"envboot"}, &errBuf)
	if !IsHelpError(err) {
		t.Fatalf("expected help error, got %v", err)
	}
	if !strings.Contains(errBuf.String(), "Usage:") {
		t.Errorf("usage text missing:\n%s", errBuf.String())
	}
}

// TestNew_InvalidConfig verifies validation failures surface as ConfigError.
func TestNew_InvalidConfig(t *testing.T) {
	var errBuf bytes.Buffer
	_, err := New([]string{"envboot", "--hw", "quantum", "--mirror", "primary"}, &errBuf)

	var cfgErr apperrors.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if IsHelpError(err) {
		t.Error("a validation failure is not a help request")
	}
	if !strings.Contains(errBuf.String(), "--help") {
		t.Errorf("expected a usage reminder:\n%s", errBuf.String())
	}
}

// TestRun_DryRun verifies a dry run completes without executing commands.
func TestRun_DryRun(t *testing.T) {
	workDir := t.TempDir()
	runner := &fakeRunner{onPath: map[string]bool{"apt-get": true}}

	application, err := New(
		[]string{"envboot", "--hw", "cpu", "--mirror", "primary", "--dry-run", "--quiet", "--no-color", "--workdir", workDir},
		io.Discard,
		WithRunner(runner),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code := application.Run(context.Background(), io.Discard)
	if code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, apperrors.ExitSuccess)
	}
	if len(runner.calls) != 0 {
		t.Errorf("dry-run must not execute commands, got %v", runner.calls)
	}
}

// TestRun_WorkflowModeSkipsDriversAndRuntime verifies the constrained mode:
// base packages only, no drivers, no pip, and an idempotent skip of every
// already-present resource.
func TestRun_WorkflowModeSkipsDriversAndRuntime(t *testing.T) {
	workDir := t.TempDir()
	populateAll(t, workDir, false)
	t.Setenv("ENVBOOT_WORKFLOW", "1")

	runner := &fakeRunner{onPath: map[string]bool{"apt-get": true}}
	application, err := New(
		[]string{"envboot", "--hw", "cuda", "--mirror", "eu", "--quiet", "--no-color", "--workdir", workDir},
		io.Discard,
		WithRunner(runner),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !application.Config.WorkflowMode {
		t.Fatal("ENVBOOT_WORKFLOW should enable workflow mode")
	}

	code := application.Run(context.Background(), io.Discard)
	if code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, apperrors.ExitSuccess)
	}

	// apt-get update plus the three base sets, nothing else.
	if len(runner.calls) != 4 {
		t.Fatalf("expected 4 package-manager calls, got %d: %v", len(runner.calls), runner.calls)
	}
	for _, call := range runner.calls {
		if strings.Contains(call, "cuda") || strings.Contains(call, "python3 -m pip") {
			t.Errorf("workflow mode must skip drivers and runtime, got %q", call)
		}
	}
}

// TestRun_FetchFailureSkipsUnpack verifies the ordering barrier: when any
// task exhausts its attempts the run exits 1 and neither extraction nor the
// runtime install ever starts, while sibling downloads still complete.
func TestRun_FetchFailureSkipsUnpack(t *testing.T) {
	workDir := t.TempDir()
	runner := &fakeRunner{onPath: map[string]bool{"apt-get": true}}
	fetcher := &fakeFetcher{failing: map[string]bool{"language-model": true}}

	application, err := New(
		[]string{"envboot", "--hw", "cpu", "--mirror", "primary", "--quiet", "--no-color", "--workdir", workDir},
		io.Discard,
		WithRunner(runner),
		WithFetcher(fetcher),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code := application.Run(context.Background(), io.Discard)
	if code != apperrors.ExitErrorGeneric {
		t.Fatalf("exit code = %d, want %d", code, apperrors.ExitErrorGeneric)
	}

	selected := resources.Catalog(false)
	if len(fetcher.fetched) != len(selected) {
		t.Errorf("a failing task must not cancel siblings: fetched %d of %d", len(fetcher.fetched), len(selected))
	}
	for _, res := range selected {
		if _, statErr := os.Stat(res.DestPath(workDir)); !os.IsNotExist(statErr) {
			t.Errorf("nothing may be unpacked after a fetch failure, %q exists", res.DestDir)
		}
		if res.Name == "language-model" {
			continue
		}
		if _, statErr := os.Stat(res.ArchivePath(workDir)); statErr != nil {
			t.Errorf("archive for %q should remain untouched: %v", res.Name, statErr)
		}
	}
	for _, call := range runner.calls {
		if strings.Contains(call, "python3 -m pip") {
			t.Errorf("runtime install must not run after a fetch failure, got %q", call)
		}
	}
}

// TestRun_NoPackageManager verifies a host without a supported package
// manager fails with the generic error code.
func TestRun_NoPackageManager(t *testing.T) {
	workDir := t.TempDir()
	runner := &fakeRunner{onPath: map[string]bool{}}
	application, err := New(
		[]string{"envboot", "--hw", "cpu", "--mirror", "primary", "--quiet", "--no-color", "--workdir", workDir},
		io.Discard,
		WithRunner(runner),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code := application.Run(context.Background(), io.Discard)
	if code != apperrors.ExitErrorGeneric {
		t.Fatalf("exit code = %d, want %d", code, apperrors.ExitErrorGeneric)
	}
}

// TestRun_FullResumeIsIdempotent verifies a run over an already-installed
// tree performs no downloads and succeeds.
func TestRun_FullResumeIsIdempotent(t *testing.T) {
	workDir := t.TempDir()
	populateAll(t, workDir, true)

	runner := &fakeRunner{onPath: map[string]bool{"apt-get": true}}
	application, err := New(
		[]string{"envboot", "--hw", "cpu", "--mirror", "cn", "--with-corpus", "--quiet", "--no-color", "--workdir", workDir},
		io.Discard,
		WithRunner(runner),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	code := application.Run(context.Background(), io.Discard)
	if code != apperrors.ExitSuccess {
		t.Fatalf("exit code = %d, want %d", code, apperrors.ExitSuccess)
	}
	// cpu has no drivers; base sets plus the three pip steps.
	pipSteps := 0
	for _, call := range runner.calls {
		if strings.Contains(call, "python3 -m pip") {
			pipSteps++
		}
	}
	if pipSteps != 3 {
		t.Errorf("expected 3 pip steps, got %d: %v", pipSteps, runner.calls)
	}
}

// TestVersion verifies the version helpers.
func TestVersion(t *testing.T) {
	if !HasVersionFlag([]string{"--version"}) || !HasVersionFlag([]string{"-version"}) {
		t.Error("version flags should be recognized")
	}
	if HasVersionFlag([]string{"--hw", "cpu"}) {
		t.Error("unrelated flags should not be recognized as version")
	}

	var buf bytes.Buffer
	PrintVersion(&buf)
	if !strings.Contains(buf.String(), "envboot") {
		t.Errorf("version line = %q", buf.String())
	}
}

// TestConfigDefaultsSurviveNew verifies retry defaults reach the application.
func TestConfigDefaultsSurviveNew(t *testing.T) {
	application, err := New(
		[]string{"envboot", "--hw", "rocm", "--mirror", "primary"},
		io.Discard,
		WithRunner(&fakeRunner{}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if application.Config.Retries != config.DefaultRetries {
		t.Errorf("Retries = %d, want %d", application.Config.Retries, config.DefaultRetries)
	}
	if application.Config.RetryWait != config.DefaultRetryWait {
		t.Errorf("RetryWait = %v, want %v", application.Config.RetryWait, config.DefaultRetryWait)
	}
}
