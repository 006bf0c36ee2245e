package app

import (
	"strings"
	"testing"
)

func TestRunImport_CSV(t *testing.T) {
	db := setupTestEnv(t)
	path := writeTestFile(t, "sales.csv", salesCSV)

	out, err := executeCommand(t, "--db", db, "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 10 line items in 5 transactions") {
		t.Errorf("unexpected output:\n%s", out)
	}

	st := openTestStore(t, db)
	n, err := st.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions: %v", err)
	}
	if n != 5 {
		t.Errorf("stored %d transactions, want 5", n)
	}

	names, err := st.ProductNames()
	if err != nil {
		t.Fatalf("ProductNames: %v", err)
	}
	if names["P001"] != "Milk" || names["P004"] != "Butter" {
		t.Errorf("expected names from the file to be registered, got %v", names)
	}
}

func TestRunImport_AppendsByDefault(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	extra := writeTestFile(t, "more.csv", "transaction_id,product_id\nT6,P001\nT6,P004\n")
	if _, err := executeCommand(t, "--db", db, "import", extra); err != nil {
		t.Fatalf("import: %v", err)
	}

	st := openTestStore(t, db)
	n, err := st.CountTransactions()
	if err != nil {
		t.Fatalf("CountTransactions: %v", err)
	}
	if n != 6 {
		t.Errorf("stored %d transactions, want 6", n)
	}
}

func TestRunImport_Replace(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	extra := writeTestFile(t, "more.csv", "transaction_id,product_id\nT6,P001\nT6,P004\n")
	if _, err := executeCommand(t, "--db", db, "import", extra, "--replace"); err != nil {
		t.Fatalf("import --replace: %v", err)
	}

	st := openTestStore(t, db)
	n, err := st.CountLineItems()
	if err != nil {
		t.Fatalf("CountLineItems: %v", err)
	}
	if n != 2 {
		t.Errorf("stored %d line items after --replace, want 2", n)
	}
}

func TestRunImport_KeepsKnownNames(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	renamed := writeTestFile(t, "renamed.csv", "transaction_id,product_id,product_name\nT6,P001,Whole Milk\nT6,P005,Jam\n")
	if _, err := executeCommand(t, "--db", db, "import", renamed); err != nil {
		t.Fatalf("import: %v", err)
	}

	st := openTestStore(t, db)
	names, err := st.ProductNames()
	if err != nil {
		t.Fatalf("ProductNames: %v", err)
	}
	if names["P001"] != "Milk" {
		t.Errorf("P001 name = %q, want the original Milk", names["P001"])
	}
	if names["P005"] != "Jam" {
		t.Errorf("P005 name = %q, want Jam", names["P005"])
	}
}

func TestRunImport_ProductsCatalogue(t *testing.T) {
	db := setupTestEnv(t)
	sales := writeTestFile(t, "sales.csv", "transaction_id,product_id\nT1,P001\nT1,P002\n")
	products := writeTestFile(t, "products.csv", "product_id,product_name,category,unit_price\nP001,Milk,Dairy,1.29\nP002,Bread,Bakery,2.49\n")

	out, err := executeCommand(t, "--db", db, "import", sales, "--products", products)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Loaded 2 products") {
		t.Errorf("unexpected output:\n%s", out)
	}

	st := openTestStore(t, db)
	names, err := st.ProductNames()
	if err != nil {
		t.Fatalf("ProductNames: %v", err)
	}
	if names["P002"] != "Bread" {
		t.Errorf("P002 name = %q, want Bread", names["P002"])
	}
}

func TestRunImport_FormatFlag(t *testing.T) {
	db := setupTestEnv(t)
	tsv := writeTestFile(t, "dump.txt", "transaction_id\tproduct_id\nT1\tP001\nT1\tP002\n")

	if _, err := executeCommand(t, "--db", db, "import", tsv); err == nil {
		t.Error("expected an error for an unknown extension without --format")
	}

	out, err := executeCommand(t, "--db", db, "import", tsv, "--format", "tsv")
	if err != nil {
		t.Fatalf("import --format tsv: %v", err)
	}
	if !strings.Contains(out, "Imported 2 line items in 1 transactions") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunImport_JSONL(t *testing.T) {
	db := setupTestEnv(t)
	path := writeTestFile(t, "sales.jsonl", `{"transaction_id":"T1","product_id":"P001"}
{"transaction_id":"T1","product_id":"P002"}
{"transaction_id":"T2","product_id":"P002"}
`)

	out, err := executeCommand(t, "--db", db, "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "in 2 transactions") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunImport_InvalidFileLeavesDatabaseUntouched(t *testing.T) {
	db := setupTestEnv(t)
	importSales(t, db)

	bad := writeTestFile(t, "bad.csv", "transaction_id,product_id\nT6,P001\n,P002\n")
	if _, err := executeCommand(t, "--db", db, "import", bad); err == nil {
		t.Fatal("expected an error for a row without a transaction id")
	}

	st := openTestStore(t, db)
	n, err := st.CountLineItems()
	if err != nil {
		t.Fatalf("CountLineItems: %v", err)
	}
	if n != 10 {
		t.Errorf("stored %d line items, want the original 10", n)
	}
}

func TestRunImport_MissingColumn(t *testing.T) {
	db := setupTestEnv(t)
	path := writeTestFile(t, "sales.csv", "order,sku\nT1,P001\n")

	_, err := executeCommand(t, "--db", db, "import", path)
	if err == nil {
		t.Fatal("expected an error for missing columns")
	}
}

func TestRunImport_ColumnMappingFromConfig(t *testing.T) {
	db := setupTestEnv(t)
	path := writeTestFile(t, "sales.csv", "order,sku\nT1,P001\nT1,P002\n")
	cfg := writeTestFile(t, "basketlift.yaml", `columns:
  transaction_id: order
  item_id: sku
`)

	out, err := executeCommand(t, "--db", db, "--config", cfg, "import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Imported 2 line items in 1 transactions") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunImport_MissingFile(t *testing.T) {
	db := setupTestEnv(t)

	if _, err := executeCommand(t, "--db", db, "import", "/no/such/sales.csv"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
