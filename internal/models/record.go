package models

import "fmt"

// Record fields outside the per-player slots
const (
	FieldByWho      = "by_who"
	FieldGuildScore = "guild_score"
	FieldJSOCScore  = "jsoc_score"
	FieldModeID     = "mode_id"
	FieldMapID      = "map_id"
)

// SlotsPerSide is the number of player columns each side has in a record
const SlotsPerSide = 4

// SlotFields are the per-player column suffixes in record order. Only name
// is filled when a match is logged; the rest are populated later.
var SlotFields = []string{"name", "level", "obj_score", "time", "obj_kills", "captures"}

// SlotField names one per-player column, e.g. guild_player2_name
func SlotField(side Side, slot int, field string) string {
	return fmt.Sprintf("%s_player%d_%s", side, slot, field)
}

// RecordColumns lists every MatchRecord key in a stable order
func RecordColumns() []string {
	cols := []string{FieldByWho, FieldGuildScore, FieldJSOCScore, FieldModeID, FieldMapID}
	for _, side := range Sides {
		for slot := 1; slot <= SlotsPerSide; slot++ {
			for _, f := range SlotFields {
				cols = append(cols, SlotField(side, slot, f))
			}
		}
	}
	return cols
}
