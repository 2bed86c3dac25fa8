package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gh-nvat/conda-envsync/src/pkg/analyze"
	"github.com/gh-nvat/conda-envsync/src/pkg/report"
	"github.com/gh-nvat/conda-envsync/src/pkg/supervise"
)

// fakeClient simulates the manager CLI without spawning processes
type fakeClient struct {
	existing map[string]bool
	// failures maps environment name to the output the create/update
	// invocation fails with
	failures map[string]string
	exports  map[string][]byte

	createdPaths map[string]string
	updatedPaths map[string]string
	pipUpgraded  []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		existing:     map[string]bool{},
		failures:     map[string]string{},
		exports:      map[string][]byte{},
		createdPaths: map[string]string{},
		updatedPaths: map[string]string{},
	}
}

func (f *fakeClient) Path() string { return "/usr/bin/true" }

func (f *fakeClient) EnvNames(ctx context.Context) ([]string, error) {
	var names []string
	for name := range f.exports {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeClient) EnvExists(ctx context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeClient) ExportEnv(ctx context.Context, name string) ([]byte, error) {
	content, ok := f.exports[name]
	if !ok {
		return nil, fmt.Errorf("env export failed for %s", name)
	}
	return content, nil
}

func (f *fakeClient) CreateEnv(ctx context.Context, name, manifestPath string) ([]byte, error) {
	if output, fail := f.failures[name]; fail {
		return []byte(output), fmt.Errorf("manager command failed: exit status 1")
	}
	f.createdPaths[name] = manifestPath
	return nil, nil
}

func (f *fakeClient) UpdateEnv(ctx context.Context, name, manifestPath string) ([]byte, error) {
	if output, fail := f.failures[name]; fail {
		return []byte(output), fmt.Errorf("manager command failed: exit status 1")
	}
	f.updatedPaths[name] = manifestPath
	return nil, nil
}

func (f *fakeClient) CreateArgs(name, manifestPath string, libmamba bool) []string {
	return []string{"env", "create", "--file", manifestPath, "--name", name}
}

func (f *fakeClient) UpdateArgs(name, manifestPath string, libmamba bool) []string {
	return []string{"env", "update", "--name", name, "--file", manifestPath}
}

func (f *fakeClient) UpgradePip(ctx context.Context, name string) error {
	f.pipUpgraded = append(f.pipUpgraded, name)
	return nil
}

func testOptions(t *testing.T) *Options {
	t.Helper()
	return &Options{
		ManifestsDir:   filepath.Join(t.TempDir(), "environments"),
		OutputDir:      t.TempDir(),
		TimeoutSeconds: 5,
	}
}

func writeTestManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readReport(t *testing.T, outputDir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(outputDir, report.REPORT_FILE_PREFIX+"-*.txt"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected exactly one report file, got %v (err %v)", matches, err)
	}
	content, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func newTestRestoreRunner(t *testing.T, opts *Options, client *fakeClient) *RunnerRestore {
	t.Helper()
	r, err := NewRunnerRestore(context.Background(), opts, client,
		analyze.NewAnalyzer(), supervise.NewExecutor(client), report.NewRenderer())
	if err != nil {
		t.Fatalf("NewRunnerRestore() error = %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return r
}

func TestRunnerRestoreProcessMixedRun(t *testing.T) {
	opts := testOptions(t)
	writeTestManifest(t, opts.ManifestsDir, "broken.yml", "name: broken\ndependencies:\n  - python=3.11\n  - nosuchpkg\n")
	writeTestManifest(t, opts.ManifestsDir, "fresh.yml", "name: fresh\ndependencies:\n  - python=3.11\n  - requests\n")
	writeTestManifest(t, opts.ManifestsDir, "known.yml", "name: known\ndependencies:\n  - python=3.11\n  - click\n")

	client := newFakeClient()
	client.existing["known"] = true
	client.failures["broken"] = "PackagesNotFoundError: nosuchpkg"

	r := newTestRestoreRunner(t, opts, client)
	err := r.Process()

	// One failure must not abort the run, but it must surface at the end
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("Process() error = %v, want partial failure error", err)
	}

	if _, ok := client.createdPaths["fresh"]; !ok {
		t.Error("fresh environment was not created")
	}
	if _, ok := client.updatedPaths["known"]; !ok {
		t.Error("known environment was not updated")
	}

	// pip post-step runs only for environments that restored cleanly
	for _, name := range client.pipUpgraded {
		if name == "broken" {
			t.Error("pip upgrade ran for a failed environment")
		}
	}
	if len(client.pipUpgraded) != 2 {
		t.Errorf("pip upgraded %v, want fresh and known", client.pipUpgraded)
	}

	content := readReport(t, opts.OutputDir)
	for _, want := range []string{
		"fresh: status=success operation=create type=standard",
		"known: status=success operation=update type=standard",
		"broken: status=failed",
		"suggestion[package-not-found]",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("report missing %q:\n%s", want, content)
		}
	}
}

func TestRunnerRestoreProcessAllClean(t *testing.T) {
	opts := testOptions(t)
	writeTestManifest(t, opts.ManifestsDir, "only.yml", "name: only\ndependencies:\n  - requests\n")

	client := newFakeClient()
	r := newTestRestoreRunner(t, opts, client)

	if err := r.Process(); err != nil {
		t.Errorf("Process() error = %v, want nil for clean run", err)
	}
}

func TestRunnerRestoreProcessMissingDir(t *testing.T) {
	opts := testOptions(t)
	// ManifestsDir is never created

	client := newFakeClient()
	r := newTestRestoreRunner(t, opts, client)

	if err := r.Process(); err == nil {
		t.Error("Process() expected error for missing manifests directory")
	}
	// Fatal before any environment is touched: no report either
	matches, _ := filepath.Glob(filepath.Join(opts.OutputDir, "*.txt"))
	if len(matches) != 0 {
		t.Errorf("no report expected for fatal discovery error, found %v", matches)
	}
}

func TestRunnerRestoreUpgradeStripsPins(t *testing.T) {
	opts := testOptions(t)
	opts.Upgrade = true
	writeTestManifest(t, opts.ManifestsDir, "pinned.yml", "name: pinned\ndependencies:\n  - requests=2.25.1\n")

	client := newFakeClient()
	r := newTestRestoreRunner(t, opts, client)

	if err := r.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	path, ok := client.createdPaths["pinned"]
	if !ok {
		t.Fatal("pinned environment was not created")
	}
	if !strings.HasSuffix(path, "pinned-unpinned.yml") {
		t.Errorf("create used %s, want the derived unpinned manifest", path)
	}
}

func TestRunnerExportProcess(t *testing.T) {
	opts := testOptions(t)

	client := newFakeClient()
	client.exports["good"] = []byte("name: good\ndependencies:\n  - python\nprefix: /opt/conda/envs/good\n")

	r, err := NewRunnerExport(context.Background(), opts, client,
		analyze.NewAnalyzer(), supervise.NewExecutor(client), report.NewRenderer())
	if err != nil {
		t.Fatalf("NewRunnerExport() error = %v", err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := r.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(opts.ManifestsDir, "good.yml"))
	if err != nil {
		t.Fatalf("exported manifest not written: %v", err)
	}
	if strings.Contains(string(content), "prefix:") {
		t.Errorf("exported manifest still carries prefix line:\n%s", content)
	}

	reportText := readReport(t, opts.OutputDir)
	if !strings.Contains(reportText, "good: status=success operation=export") {
		t.Errorf("report missing export outcome:\n%s", reportText)
	}
}

func TestInitializeRequiresCollaborators(t *testing.T) {
	r := &RunnerBase{Context: context.Background(), Options: testOptions(t)}
	if err := r.Initialize(); err == nil {
		t.Error("Initialize() expected error with nil collaborators")
	}
}
