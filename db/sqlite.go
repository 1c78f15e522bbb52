package db

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Sqlite backs the Database interface with a file (or in-memory) database.
// Used by tests and single-machine deployments.
type Sqlite struct {
	db     *gorm.DB
	config *SqliteConfig
}

type SqliteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"file::memory:?cache=shared"`
}

func NewSqlite(config *SqliteConfig) Database {
	return &Sqlite{
		config: config,
	}
}

func (s *Sqlite) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.config.Path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db

	return migrate(s.db)
}

func (s *Sqlite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func (s *Sqlite) GetDriver() string {
	return "sqlite"
}

func (s *Sqlite) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Sqlite) DB() *gorm.DB {
	return s.db
}
