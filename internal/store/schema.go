package store

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT,
    unit_price REAL
);

CREATE TABLE IF NOT EXISTS line_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transaction_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 1,
    unit_price REAL,
    purchased_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS analysis_runs (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    source TEXT,
    total_transactions INTEGER NOT NULL,
    min_support REAL NOT NULL,
    min_confidence REAL NOT NULL,
    rule_count INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_rules (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_a TEXT NOT NULL,
    item_b TEXT NOT NULL,
    support REAL NOT NULL,
    confidence REAL NOT NULL,
    lift REAL NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_line_items_txn ON line_items(transaction_id);
CREATE INDEX IF NOT EXISTS idx_line_items_item ON line_items(item_id);
CREATE INDEX IF NOT EXISTS idx_runs_created ON analysis_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_rules_run ON analysis_rules(run_id);
`
