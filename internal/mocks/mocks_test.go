package mocks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/clickhouse"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

var (
	_ clickhouse.Recorder = (*MockClickHouseClient)(nil)
	_ dal.MatchDAL        = (*MockPostgresDAL)(nil)
)

func TestMockClickHousePlayerStats(t *testing.T) {
	m := NewMockClickHouseClient()
	ctx := context.Background()

	rows := []clickhouse.Appearance{
		{PlayerName: "Mario", Won: true},
		{PlayerName: "Kai", Won: true},
		{PlayerName: "Danny", Won: false},
		{PlayerName: "Mario", Won: false},
		{PlayerName: "Gio", Won: true, DryRun: true},
	}
	if err := m.RecordAppearances(ctx, rows); err != nil {
		t.Fatalf("RecordAppearances failed: %v", err)
	}

	stats, err := m.PlayerStats(ctx)
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	want := []clickhouse.PlayerStats{
		{Player: "Kai", Appearances: 1, Wins: 1},
		{Player: "Mario", Appearances: 2, Wins: 1},
		{Player: "Danny", Appearances: 1, Wins: 0},
	}
	if len(stats) != len(want) {
		t.Fatalf("expected %d players, got %+v", len(want), stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}
	if len(m.Rows()) != 5 {
		t.Errorf("expected 5 stored rows, got %d", len(m.Rows()))
	}
}

func TestMockPostgresDAL(t *testing.T) {
	d, err := NewMockPostgresDAL(filepath.Join(t.TempDir(), "pg.db"), "match_master", catalog.Default())
	if err != nil {
		t.Fatalf("NewMockPostgresDAL failed: %v", err)
	}
	defer d.Close()

	id, err := d.LookupModeID(context.Background(), "Hardpoint")
	if err != nil || id != 1 {
		t.Errorf("LookupModeID(Hardpoint) = %d, %v", id, err)
	}

	res, err := d.InsertMatch(context.Background(), models.MatchRecord{models.FieldByWho: "Mario"})
	if err != nil {
		t.Fatalf("InsertMatch failed: %v", err)
	}
	if res.DryRun || res.Rows[0]["id"] == nil {
		t.Errorf("unexpected result %+v", res)
	}
}
