package db

// The console keeps no email data locally; only UI preferences live here
const schema = `
-- Settings table (view mode, sort order, page size)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
