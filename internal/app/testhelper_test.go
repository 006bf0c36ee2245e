package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/basketlift/internal/config"
)

// salesCSV holds five transactions:
//
//	T1, T2: milk, bread
//	T3:     milk, bread, eggs
//	T4:     eggs, butter
//	T5:     butter
//
// Milk and bread appear together in every milk basket (lift 5/3); eggs and
// butter have lift 1.25; milk/bread with eggs have lift 5/6.
const salesCSV = `transaction_id,product_id,product_name,quantity
T1,P001,Milk,1
T1,P002,Bread,1
T2,P001,Milk,2
T2,P002,Bread,1
T3,P001,Milk,1
T3,P002,Bread,1
T3,P003,Eggs,1
T4,P003,Eggs,1
T4,P004,Butter,1
T5,P004,Butter,1
`

// setupTestEnv isolates HOME and the config directory and returns a database
// path inside a temp dir.
func setupTestEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.PathEnvVar, "")

	oldSettings := settings
	t.Cleanup(func() { settings = oldSettings })

	return filepath.Join(home, "test.db")
}

// writeTestFile writes content to name inside a temp dir and returns the path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
	return path
}

// executeCommand runs the root command with args and returns what the command
// wrote to stdout. Flags are reset first so values do not leak between tests.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(RootCmd)

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	defer func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	}()

	err := RootCmd.Execute()
	return out.String(), err
}

// importSales imports salesCSV into db.
func importSales(t *testing.T, db string) {
	t.Helper()
	path := writeTestFile(t, "sales.csv", salesCSV)
	if _, err := executeCommand(t, "--db", db, "import", path); err != nil {
		t.Fatalf("import: %v", err)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
