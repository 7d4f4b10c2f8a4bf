package exportdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE batch(
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			samples INT NOT NULL,
			first_time INT,
			last_time INT,
			exported_at INT NOT NULL
		);
		CREATE INDEX idx_batch_exported_at ON batch(exported_at);
		`))

	return migs
}
