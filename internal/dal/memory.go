package dal

import (
	"context"
	"fmt"
	"sync"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// MemoryDAL keeps lookup tables and inserted matches in process memory
type MemoryDAL struct {
	mu      sync.RWMutex
	modeIDs map[string]int64 // label -> id
	mapIDs  map[string]int64
	matches []models.MatchRecord
	failErr error
}

// NewMemoryDAL seeds mode and map ids from the catalog, numbered from 1 in
// catalog order.
func NewMemoryDAL(c *catalog.Catalog) *MemoryDAL {
	m := &MemoryDAL{
		modeIDs: make(map[string]int64),
		mapIDs:  make(map[string]int64),
		matches: []models.MatchRecord{},
	}
	for i, mode := range c.Modes() {
		m.modeIDs[mode.Label] = int64(i + 1)
	}
	for i, mp := range c.Maps() {
		m.mapIDs[mp.Label] = int64(i + 1)
	}
	return m
}

func (m *MemoryDAL) LookupModeID(_ context.Context, label string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.modeIDs[label]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("mode %q: %w", label, ErrNotFound)
}

func (m *MemoryDAL) LookupMapID(_ context.Context, label string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.mapIDs[label]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("map %q: %w", label, ErrNotFound)
}

// InsertMatch stores a copy of record with a generated id
func (m *MemoryDAL) InsertMatch(_ context.Context, record models.MatchRecord) (*models.InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return nil, m.failErr
	}

	row := cloneRecord(record)
	row["id"] = genID("match")
	m.matches = append(m.matches, row)

	return &models.InsertResult{Rows: []models.MatchRecord{cloneRecord(row)}}, nil
}

// Matches returns copies of every stored match in insert order
func (m *MemoryDAL) Matches() []models.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.MatchRecord, len(m.matches))
	for i, r := range m.matches {
		out[i] = cloneRecord(r)
	}
	return out
}

// ListMatches returns up to limit matches, newest first
func (m *MemoryDAL) ListMatches(_ context.Context, limit int) ([]models.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.MatchRecord{}
	for i := len(m.matches) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneRecord(m.matches[i]))
	}
	return out, nil
}

// FailInserts makes every following insert return err; nil restores inserts
func (m *MemoryDAL) FailInserts(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *MemoryDAL) Ping(context.Context) error { return nil }

func (m *MemoryDAL) Close() error { return nil }
