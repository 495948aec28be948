package store

// migration is one schema step. Migrations are applied in ascending
// version order and never edited once released.
type migration struct {
	version     int
	description string
	up          string
}

var migrations = []migration{
	{
		version:     1,
		description: "devices and rules",
		up: `
			CREATE TABLE devices (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				host       TEXT NOT NULL,
				port       INTEGER NOT NULL DEFAULT 161,
				version    TEXT NOT NULL,
				config     TEXT NOT NULL,
				rules      TEXT NOT NULL DEFAULT '{}',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
	{
		version:     2,
		description: "registered entity set",
		up: `
			CREATE TABLE entities (
				device_id  TEXT NOT NULL,
				category   TEXT NOT NULL,
				kind       TEXT NOT NULL,
				mode       TEXT NOT NULL,
				ref        TEXT NOT NULL,
				name       TEXT NOT NULL,
				attributes TEXT NOT NULL DEFAULT '{}',
				available  INTEGER NOT NULL DEFAULT 1,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (device_id, category, kind, mode, ref)
			)
		`,
	},
	{
		version:     3,
		description: "entity listing index",
		up:          `CREATE INDEX idx_entities_device_category ON entities (device_id, category)`,
	},
}
