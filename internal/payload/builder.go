// Package payload turns a finished form into the flat record that gets
// persisted, and renders the human readable summary shown while editing.
package payload

import (
	"context"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// Builder flattens form state into match records
type Builder struct {
	catalog  *catalog.Catalog
	resolver dal.IDLookup
}

// NewBuilder creates a builder. A nil resolver stores raw mode and map codes
// in place of resolved identifiers.
func NewBuilder(c *catalog.Catalog, resolver dal.IDLookup) *Builder {
	return &Builder{catalog: c, resolver: resolver}
}

// Resolves reports whether the builder looks identifiers up
func (b *Builder) Resolves() bool {
	return b.resolver != nil
}

// Build produces the record for state. Lookup failures leave the affected
// identifier nil and never abort the build.
func (b *Builder) Build(ctx context.Context, state models.FormState) models.MatchRecord {
	record := models.MatchRecord{
		models.FieldByWho:      state.Submitter,
		models.FieldGuildScore: intOrNil(state.GuildScore),
		models.FieldJSOCScore:  intOrNil(state.JSOCScore),
	}

	if b.resolver == nil {
		record[models.FieldModeID] = stringOrNil(state.ModeCode)
		record[models.FieldMapID] = stringOrNil(state.MapCode)
	} else {
		mapLabel, _ := b.catalog.MapLabel(state.MapCode)
		modeLabel, _ := b.catalog.ModeLabel(state.ModeCode)
		record[models.FieldMapID] = b.lookup(ctx, "map", mapLabel, b.resolver.LookupMapID)
		record[models.FieldModeID] = b.lookup(ctx, "mode", modeLabel, b.resolver.LookupModeID)
	}

	guild, jsoc := state.GuildPlayers, state.JSOCPlayers
	if state.ModeCode != "" && state.ModeCode == b.catalog.FreeForAllCode() {
		guild, jsoc = splitFreeForAll(state.FFAPlayers)
	}
	b.expandSide(record, models.SideGuild, guild)
	b.expandSide(record, models.SideJSOC, jsoc)

	return record
}

func (b *Builder) lookup(ctx context.Context, kind, label string, fn func(context.Context, string) (int64, error)) any {
	if label == "" {
		return nil
	}
	id, err := fn(ctx, label)
	if err != nil {
		logger.Warn("Identifier lookup failed", "kind", kind, "label", label, "error", err)
		return nil
	}
	return id
}

// expandSide writes the fixed slot columns for one side. Slots without a
// player, and every analytic column, are nil.
func (b *Builder) expandSide(record models.MatchRecord, side models.Side, ids []int) {
	for slot := 1; slot <= models.SlotsPerSide; slot++ {
		for _, field := range models.SlotFields {
			record[models.SlotField(side, slot, field)] = nil
		}
		if slot > len(ids) {
			continue
		}
		if p, ok := b.catalog.PlayerByID(ids[slot-1]); ok {
			record[models.SlotField(side, slot, "name")] = p.Name
		}
	}
}

// splitFreeForAll seats the first four entrants in guild slots and the rest
// in jsoc slots. Entrants past the eighth have no slot.
func splitFreeForAll(ids []int) (guild, jsoc []int) {
	if len(ids) <= models.SlotsPerSide {
		return ids, nil
	}
	return ids[:models.SlotsPerSide], ids[models.SlotsPerSide:]
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
