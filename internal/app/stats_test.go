package app

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/blackwell-systems/basketlift/internal/affinity"
	"github.com/blackwell-systems/basketlift/internal/store"
)

func TestStatsCommandRegistration(t *testing.T) {
	found := false
	for _, cmd := range RootCmd.Commands() {
		if cmd.Name() == "stats" {
			found = true
			break
		}
	}
	if !found {
		t.Error("stats command not registered with root command")
	}
}

func TestStatsCommandFlags(t *testing.T) {
	flag := statsCmd.Flags().Lookup("format")
	if flag == nil {
		t.Fatal("expected --format flag to be registered")
	}
	if flag.DefValue != formatTable {
		t.Errorf("--format default = %q, want %q", flag.DefValue, formatTable)
	}
}

func TestRunStats_Table(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	out, err := executeCommand(t, "--db", db, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	for _, want := range []string{
		"Co-occurrence Statistics",
		"Transactions:          5",
		"Unique items:          4",
		"Unique pairs:          4",
		"Milk (P001)",
		"Milk (P001) + Bread (P002)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunStats_JSON(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	out, err := executeCommand(t, "--db", db, "stats", "--format", "json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	var snap affinity.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if snap.TotalTransactions != 5 {
		t.Errorf("TotalTransactions = %d, want 5", snap.TotalTransactions)
	}
	if snap.UniqueItems != 4 {
		t.Errorf("UniqueItems = %d, want 4", snap.UniqueItems)
	}
	if snap.UniquePairs != 4 {
		t.Errorf("UniquePairs = %d, want 4", snap.UniquePairs)
	}
	// P001 and P002 both appear three times; P001 was seen first.
	if snap.MostFrequentItem != "P001" {
		t.Errorf("MostFrequentItem = %q, want P001", snap.MostFrequentItem)
	}
	if snap.MostFrequentPair == nil || *snap.MostFrequentPair != affinity.Pair("P002", "P001") {
		t.Errorf("MostFrequentPair = %v, want P001+P002", snap.MostFrequentPair)
	}
}

func TestRunStats_EmptyDatabase(t *testing.T) {
	db := setupTestEnv(t)

	st, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	st.Close()

	out, err := executeCommand(t, "--db", db, "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "Transactions:          0") {
		t.Errorf("expected zero transactions, got:\n%s", out)
	}
	if !strings.Contains(out, "Most frequent item:    —") {
		t.Errorf("expected placeholder for most frequent item, got:\n%s", out)
	}
}

func TestRunStats_MissingDatabase(t *testing.T) {
	db := setupTestEnv(t)

	_, err := executeCommand(t, "--db", db, "stats")
	if !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got: %v", err)
	}
}

func TestRunStats_InvalidFormat(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	_, err := executeCommand(t, "--db", db, "stats", "--format", "csv")
	if err == nil {
		t.Fatal("expected an error for --format csv")
	}
	if !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("unexpected error: %v", err)
	}
}
