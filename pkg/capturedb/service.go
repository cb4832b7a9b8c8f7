// Package capturedb stores readings received from reader_api.
// Only capture_collector writes to it.
package capturedb

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/pathing"

	_ "modernc.org/sqlite"
)

var (
	store *Store
	once  sync.Once
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open capture db: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping capture db: %w", err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	return &Store{db: db}, nil
}

// GetStore opens the shared store at the default location on first use.
func GetStore() *Store {
	once.Do(func() {
		var err error
		store, err = Open(pathing.GetCaptureDbPath())
		if err != nil {
			logrus.WithError(err).Fatal("Could not open capture database")
		}
	})
	return store
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
