// Package commands holds the cookmate-configure subcommands.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/benvon/cookmate/internal/config"
	"github.com/benvon/cookmate/internal/database"
)

// openDB connects using DATABASE_URL alone. The caller closes the returned DB.
func openDB() (*database.DB, error) {
	url, err := config.LoadDatabaseURL()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func closeDB(db io.Closer) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}
