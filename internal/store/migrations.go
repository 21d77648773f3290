package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create visitor sessions",
		SQL: `
			CREATE TABLE visitor_sessions (
				api_base          TEXT NOT NULL,
				platform_api_key  TEXT NOT NULL,
				visitor_id        TEXT NOT NULL,
				platform_open_id  TEXT NOT NULL DEFAULT '',
				channel_id        TEXT NOT NULL,
				channel_type      INTEGER NOT NULL DEFAULT 0,
				im_token          TEXT NOT NULL DEFAULT '',
				project_id        TEXT NOT NULL DEFAULT '',
				platform_id       TEXT NOT NULL DEFAULT '',
				created_at        TEXT NOT NULL DEFAULT '',
				updated_at        TEXT NOT NULL DEFAULT '',
				expires_at        TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (api_base, platform_api_key)
			);

			CREATE INDEX idx_visitor_sessions_visitor ON visitor_sessions (visitor_id);
		`,
	},
}
