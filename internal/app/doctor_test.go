package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/basketlift/internal/affinity"
)

// TestRunDoctor_WarningOnlyReturnsNil verifies that warnings alone do not fail
// the command: the database is populated but no stream is configured.
func TestRunDoctor_WarningOnlyReturnsNil(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	out, err := executeCommand(t, "--db", db, "doctor")
	if err != nil {
		t.Fatalf("expected doctor to return nil for warnings-only, got: %v\n%s", err, out)
	}
	if !strings.Contains(out, "⚠ No stream configured") {
		t.Errorf("expected stream warning, got:\n%s", out)
	}
	if !strings.Contains(out, "✓ 5 transactions stored") {
		t.Errorf("expected transaction count, got:\n%s", out)
	}
	if !strings.Contains(out, "Found 1 warning(s)") {
		t.Errorf("expected warning summary, got:\n%s", out)
	}
}

// TestRunDoctor_CriticalIssueReturnsError verifies that a missing database is
// reported as critical so main prints "Error: diagnostics failed" and exits 1.
func TestRunDoctor_CriticalIssueReturnsError(t *testing.T) {
	db := setupTestEnv(t)

	out, err := executeCommand(t, "--db", db, "doctor")
	if err == nil {
		t.Fatal("expected doctor to return an error for critical issues")
	}
	if !strings.Contains(err.Error(), "diagnostics failed") {
		t.Errorf("expected error to contain 'diagnostics failed', got: %v", err)
	}
	if !strings.Contains(out, "✗ Database not found") {
		t.Errorf("expected missing database line, got:\n%s", out)
	}
	if !strings.Contains(out, "Action:") {
		t.Errorf("expected an action hint, got:\n%s", out)
	}
}

func TestRunDoctor_EmptyDatabaseIsCritical(t *testing.T) {
	db := setupTestEnv(t)
	st := openTestStore(t, db)
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	out, err := executeCommand(t, "--db", db, "doctor")
	if err == nil {
		t.Fatal("expected doctor to fail without transactions")
	}
	if !strings.Contains(out, "✗ No transactions stored") {
		t.Errorf("expected empty database line, got:\n%s", out)
	}
}

func TestRunDoctor_AllChecksPass(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)
	stream := writeTestFile(t, "transactions.ndjson", watchStreamData)
	if _, err := executeCommand(t, "--db", db, "watch", "--stream", stream, "--once"); err != nil {
		t.Fatalf("watch --once: %v", err)
	}
	cfg := writeTestFile(t, "basketlift.yaml", "stream:\n  path: "+stream+"\n")

	out, err := executeCommand(t, "--db", db, "--config", cfg, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{
		"✓ Configuration loaded: " + cfg,
		"✓ Stream up to date",
		"✓ Pipeline test: pass",
		"✓ All checks passed!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunDoctor_StreamLagWarning(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)
	stream := writeTestFile(t, "transactions.ndjson", watchStreamData)
	cfg := writeTestFile(t, "basketlift.yaml", "stream:\n  path: "+stream+"\n")

	out, err := executeCommand(t, "--db", db, "--config", cfg, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	if !strings.Contains(out, "155 B not yet processed") {
		t.Errorf("expected stream lag warning, got:\n%s", out)
	}
}

func TestStreamLag(t *testing.T) {
	dir := t.TempDir()
	stream := filepath.Join(dir, "s.ndjson")
	if err := os.WriteFile(stream, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	lag, err := streamLag(stream, "")
	if err != nil || lag != 10 {
		t.Errorf("lag without offset = %d, %v; want 10", lag, err)
	}

	if err := os.WriteFile(stream+".offset", []byte("4\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	lag, err = streamLag(stream, "")
	if err != nil || lag != 6 {
		t.Errorf("lag at offset 4 = %d, %v; want 6", lag, err)
	}

	// An offset past the end means the stream was truncated; the watcher
	// restarts from zero, nothing is lost.
	if err := os.WriteFile(stream+".offset", []byte("99"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if lag, err = streamLag(stream, ""); err != nil || lag != 0 {
		t.Errorf("lag past end = %d, %v; want 0", lag, err)
	}

	if _, err := streamLag(filepath.Join(dir, "missing"), ""); err == nil {
		t.Error("expected an error for a missing stream")
	}
}

func TestRunPipelineTest(t *testing.T) {
	if err := RunPipelineTest(); err != nil {
		t.Fatalf("RunPipelineTest: %v", err)
	}
}

func TestCompareRules(t *testing.T) {
	a := []affinity.Rule{
		{ItemA: "A", ItemB: "B", Support: 0.5, Confidence: 1, Lift: 2},
		{ItemA: "B", ItemB: "A", Support: 0.5, Confidence: 0.5, Lift: 1},
	}
	reversed := []affinity.Rule{a[1], a[0]}

	if err := compareRules(nil, a, reversed); err != nil {
		t.Errorf("expected order to be ignored, got: %v", err)
	}
	if err := compareRules(nil, a, a[:1]); err == nil {
		t.Error("expected an error for different rule counts")
	}

	changed := []affinity.Rule{a[0], a[1]}
	changed[1].Lift = 1.5
	var sb strings.Builder
	if err := compareRules(&sb, a, changed); err == nil {
		t.Error("expected an error for a metric mismatch")
	}
	if !strings.Contains(sb.String(), "incremental") {
		t.Errorf("expected both rules to be printed, got: %q", sb.String())
	}

	other := []affinity.Rule{a[0], {ItemA: "B", ItemB: "C"}}
	if err := compareRules(nil, a, other); err == nil {
		t.Error("expected an error for a missing rule")
	}
}
