package sqlite

// migrations contains the SQL migrations for the SQLite database.
var migrations = []string{
	// Migration 1: sessions and the current pointer
	`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		state TEXT NOT NULL CHECK(state IN ('IDLE', 'DRAFT', 'VALIDATED', 'COMMITTED', 'ABORTED')),
		revision INTEGER NOT NULL,
		definition JSON NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Exactly one row may exist; a NULL session_id means no current session.
	CREATE TABLE IF NOT EXISTS current_session (
		slot INTEGER PRIMARY KEY CHECK(slot = 1),
		session_id TEXT
	);
	INSERT OR IGNORE INTO current_session (slot, session_id) VALUES (1, NULL);

	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`,
}
