package dal

import (
	"context"
	"errors"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// ErrNotFound is returned by lookups when no row carries the label
var ErrNotFound = errors.New("not found")

// IDLookup resolves display labels to foreign-key identifiers
type IDLookup interface {
	LookupMapID(ctx context.Context, label string) (int64, error)
	LookupModeID(ctx context.Context, label string) (int64, error)
}

// MatchStore persists finished match records
type MatchStore interface {
	InsertMatch(ctx context.Context, record models.MatchRecord) (*models.InsertResult, error)
}

// MatchDAL is a store that can also resolve identifiers and be closed
type MatchDAL interface {
	IDLookup
	MatchStore
	Ping(ctx context.Context) error
	Close() error
}

// MatchLister reads back recorded matches, newest first
type MatchLister interface {
	ListMatches(ctx context.Context, limit int) ([]models.MatchRecord, error)
}
