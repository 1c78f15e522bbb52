package db

import (
	"context"
	"fmt"

	"github.com/avrlab/lab-projects-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Postgres struct {
	db     *gorm.DB
	config *PostgresConfig
}

type PostgresConfig struct {
	Host     string `env:"PGHOST" envDefault:"localhost"`
	Port     string `env:"PGPORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER,required"`
	Password string `env:"POSTGRES_PASSWORD,required"`
	DBName   string `env:"POSTGRES_DB,required"`
	SSLMode  string `env:"PGSSLMODE" envDefault:"disable"`
}

func NewPostgres(config *PostgresConfig) Database {
	return &Postgres{
		config: config,
	}
}

func (p *Postgres) Connect() error {
	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		p.config.User,
		p.config.Password,
		p.config.Host,
		p.config.Port,
		p.config.DBName,
		p.config.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	p.db = db

	return migrate(p.db)
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Project{},
		&models.YouTubeCredentials{},
		&models.YouTubeChannelDetails{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func (p *Postgres) GetDriver() string {
	return "postgres"
}

func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (p *Postgres) DB() *gorm.DB {
	return p.db
}
