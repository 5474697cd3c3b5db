package dal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"maps"
	"regexp"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// DefaultMatchTable is the table matches are written to
const DefaultMatchTable = "match_master"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name is safe to use as a bare identifier
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

func genID(prefix string) string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// recordValues orders record values by models.RecordColumns
func recordValues(record models.MatchRecord) []any {
	cols := models.RecordColumns()
	vals := make([]any, len(cols))
	for i, col := range cols {
		vals[i] = record[col]
	}
	return vals
}

func cloneRecord(record models.MatchRecord) models.MatchRecord {
	return maps.Clone(record)
}
