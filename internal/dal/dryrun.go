package dal

import (
	"context"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// DryRunStore echoes records back instead of writing them
type DryRunStore struct {
	table string
}

func NewDryRunStore(table string) *DryRunStore {
	if table == "" {
		table = DefaultMatchTable
	}
	return &DryRunStore{table: table}
}

func (d *DryRunStore) InsertMatch(_ context.Context, record models.MatchRecord) (*models.InsertResult, error) {
	logger.Info("Dry run: match not written", "table", d.table, "by_who", record[models.FieldByWho])
	return &models.InsertResult{
		DryRun: true,
		Rows:   []models.MatchRecord{cloneRecord(record)},
	}, nil
}
