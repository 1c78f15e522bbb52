package db

import "fmt"

type DBType string

const (
	PostgresType DBType = "postgres"
	SqliteType   DBType = "sqlite"
)

func NewDatabase(dbType DBType, config interface{}) (Database, error) {
	switch dbType {
	case PostgresType:
		pgConfig, ok := config.(*PostgresConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for postgres")
		}
		return NewPostgres(pgConfig), nil
	case SqliteType:
		liteConfig, ok := config.(*SqliteConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for sqlite")
		}
		return NewSqlite(liteConfig), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
