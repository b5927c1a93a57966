package storage

import (
	"embed"

	"github.com/md-rashed-zaman/agendafacil/libs/db"
)

//go:embed migrations
var migrationFS embed.FS

func PostgresMigrations() ([]db.Migration, error) {
	return db.LoadMigrations(migrationFS, "migrations/postgres")
}

func SQLiteMigrations() ([]db.Migration, error) {
	return db.LoadMigrations(migrationFS, "migrations/sqlite")
}
