package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/clickhouse"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
)

// MockClickHouseClient keeps appearances in memory for local development
type MockClickHouseClient struct {
	mu   sync.RWMutex
	rows []clickhouse.Appearance
}

func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")
	return &MockClickHouseClient{}
}

func (m *MockClickHouseClient) RecordAppearances(_ context.Context, rows []clickhouse.Appearance) error {
	m.mu.Lock()
	m.rows = append(m.rows, rows...)
	m.mu.Unlock()
	logger.Debug("Mock ClickHouse: recorded appearances", "count", len(rows))
	return nil
}

// PlayerStats aggregates the same way the ClickHouse query does
func (m *MockClickHouseClient) PlayerStats(_ context.Context) ([]clickhouse.PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byPlayer := map[string]*clickhouse.PlayerStats{}
	for _, r := range m.rows {
		if r.DryRun {
			continue
		}
		s, ok := byPlayer[r.PlayerName]
		if !ok {
			s = &clickhouse.PlayerStats{Player: r.PlayerName}
			byPlayer[r.PlayerName] = s
		}
		s.Appearances++
		if r.Won {
			s.Wins++
		}
	}

	out := make([]clickhouse.PlayerStats, 0, len(byPlayer))
	for _, s := range byPlayer {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Player < out[j].Player
	})
	return out, nil
}

// Rows returns a copy of every recorded appearance
func (m *MockClickHouseClient) Rows() []clickhouse.Appearance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]clickhouse.Appearance(nil), m.rows...)
}

func (m *MockClickHouseClient) Close() error {
	return nil
}
