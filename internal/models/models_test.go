package models

import "testing"

func TestSideOpponent(t *testing.T) {
	if SideGuild.Opponent() != SideJSOC || SideJSOC.Opponent() != SideGuild {
		t.Fatal("opponents are not symmetric")
	}
	if Side("red").Valid() {
		t.Error("unknown side reported valid")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := FormState{
		GuildPlayers: []int{1, 2},
		GuildScore:   IntPtr(250),
	}
	c := s.Clone()
	c.GuildPlayers[0] = 9
	*c.GuildScore = 1

	if s.GuildPlayers[0] != 1 || *s.GuildScore != 250 {
		t.Fatalf("clone shares memory with original: %+v", s)
	}
	if c.JSOCPlayers == nil || c.FFAPlayers == nil {
		t.Error("nil rosters should clone to empty slices")
	}
}

func TestRecordColumns(t *testing.T) {
	cols := RecordColumns()
	want := 5 + len(Sides)*SlotsPerSide*len(SlotFields)
	if len(cols) != want {
		t.Fatalf("got %d columns, want %d", len(cols), want)
	}

	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			t.Errorf("duplicate column %s", c)
		}
		seen[c] = true
	}
	for _, c := range []string{"guild_player1_name", "jsoc_player4_captures", FieldMapID} {
		if !seen[c] {
			t.Errorf("missing column %s", c)
		}
	}
}
