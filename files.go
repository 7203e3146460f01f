package authflow

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationsDir returns the migrations rooted at their directory.
func MigrationsDir() (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations")
}
