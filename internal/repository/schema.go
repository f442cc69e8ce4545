package repository

// Schema definitions for the FraudGuard audit database.
// Compatible with both SQLite and PostgreSQL.

const schemaTrainingRuns = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    domain TEXT NOT NULL,
    model_kind TEXT NOT NULL,
    rows_used INTEGER NOT NULL DEFAULT 0,
    metrics TEXT,
    error TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_session ON training_runs(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_training_runs_domain ON training_runs(domain);
`

// schemaAnalyses stores rule engine evaluations. Inputs and results are
// JSON documents.
const schemaAnalyses = `
CREATE TABLE IF NOT EXISTS analyses (
    id TEXT PRIMARY KEY,
    domain TEXT NOT NULL,
    inputs TEXT NOT NULL,
    score INTEGER NOT NULL,
    action TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_domain ON analyses(domain, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTrainingRuns,
		schemaAnalyses,
	}
}
