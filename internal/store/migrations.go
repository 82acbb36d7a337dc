package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Settings table - key-value pairs, including the serialized dataset
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// History table - every emitted word and shortcut
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('letter', 'word', 'shortcut')),
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		// Bindings table - plugin actions to run for a recognized word or shortcut
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('letter', 'word', 'shortcut')),
			trigger TEXT NOT NULL DEFAULT '',
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_history_session_id ON history(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_kind_trigger ON bindings(kind, trigger)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
