package sqlite

import "github.com/mudlet/bugbot/internal/storage/migrations"

// schema is applied in version order on open
var schema = migrations.NewManager(
	migrations.Migration{
		Version:     1,
		Description: "create reports table",
		Up: `
			CREATE TABLE reports (
				id TEXT PRIMARY KEY,
				summary TEXT NOT NULL,
				steps TEXT NOT NULL DEFAULT '[]',
				error_output TEXT NOT NULL DEFAULT '',
				extra_info TEXT NOT NULL DEFAULT '',
				labels TEXT NOT NULL DEFAULT '[]',
				source_channel_id TEXT NOT NULL DEFAULT '',
				source_user_id TEXT NOT NULL DEFAULT '',
				discord_link TEXT NOT NULL DEFAULT '',
				confidence TEXT NOT NULL,
				missing_info TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				needs_confirm INTEGER NOT NULL DEFAULT 0,
				issue_number INTEGER NOT NULL DEFAULT 0,
				issue_url TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
		Down: `DROP TABLE reports`,
	},
	migrations.Migration{
		Version:     2,
		Description: "index reports by status and age",
		Up:          `CREATE INDEX idx_reports_status_created ON reports(status, created_at)`,
		Down:        `DROP INDEX idx_reports_status_created`,
	},
)
