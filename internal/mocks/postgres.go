package mocks

import (
	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

// MockPostgresDAL stands in for Supabase Postgres with a seeded SQLite file
type MockPostgresDAL struct {
	*dal.SQLiteDAL
}

// NewMockPostgresDAL opens sqliteFile with the same table name Postgres uses
func NewMockPostgresDAL(sqliteFile, table string, c *catalog.Catalog) (*MockPostgresDAL, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development", "file", sqliteFile, "table", table)

	sqliteDAL, err := dal.NewSQLiteDAL(sqliteFile, table, c)
	if err != nil {
		return nil, err
	}
	return &MockPostgresDAL{SQLiteDAL: sqliteDAL}, nil
}
