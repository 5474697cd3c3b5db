package clickhouse

import (
	"fmt"
	"math"
	"time"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

// Appearance is one player seated in one recorded match
type Appearance struct {
	SessionID  string    `json:"sessionId"`
	RecordedAt time.Time `json:"recordedAt"`
	ByWho      string    `json:"byWho"`
	ModeID     string    `json:"modeId"`
	MapID      string    `json:"mapId"`
	Side       string    `json:"side"`
	Slot       uint8     `json:"slot"`
	PlayerName string    `json:"playerName"`
	TeamScore  int32     `json:"teamScore"`
	OppScore   int32     `json:"oppScore"`
	Won        bool      `json:"won"`
	DryRun     bool      `json:"dryRun"`
}

// PlayerStats aggregates appearances for one player name
type PlayerStats struct {
	Player      string `json:"player"`
	Appearances uint64 `json:"appearances"`
	Wins        uint64 `json:"wins"`
}

// AppearancesFromEvent expands a match recorded event into one row per
// filled player slot. Events of other types yield nothing, and so do matches
// whose scores do not fit the int32 score columns.
func AppearancesFromEvent(ev pubsub.Event) []Appearance {
	if ev.Type != session.TopicMatchRecorded {
		return nil
	}
	record, ok := ev.Payload["record"].(map[string]interface{})
	if !ok {
		if r, isRecord := ev.Payload["record"].(models.MatchRecord); isRecord {
			record = r
		} else {
			return nil
		}
	}

	at := time.Now().UTC()
	if ev.TS > 0 {
		at = time.UnixMilli(ev.TS).UTC()
	}
	sessionID, _ := ev.Payload["sessionId"].(string)
	dryRun, _ := ev.Payload["dryRun"].(bool)
	byWho, _ := record[models.FieldByWho].(string)
	guild, okGuild := toInt32(record[models.FieldGuildScore])
	jsoc, okJSOC := toInt32(record[models.FieldJSOCScore])
	if !okGuild || !okJSOC {
		logger.Warn("Skipping analytics rows, score out of range",
			"session_id", sessionID,
			"guild_score", record[models.FieldGuildScore],
			"jsoc_score", record[models.FieldJSOCScore])
		return nil
	}

	var out []Appearance
	for _, side := range models.Sides {
		team, opp := guild, jsoc
		if side == models.SideJSOC {
			team, opp = jsoc, guild
		}
		for slot := 1; slot <= models.SlotsPerSide; slot++ {
			name, _ := record[models.SlotField(side, slot, "name")].(string)
			if name == "" {
				continue
			}
			out = append(out, Appearance{
				SessionID:  sessionID,
				RecordedAt: at,
				ByWho:      byWho,
				ModeID:     idString(record[models.FieldModeID]),
				MapID:      idString(record[models.FieldMapID]),
				Side:       string(side),
				Slot:       uint8(slot),
				PlayerName: name,
				TeamScore:  team,
				OppScore:   opp,
				Won:        team > opp,
				DryRun:     dryRun,
			})
		}
	}
	return out
}

// toInt32 accepts the numeric shapes a record has before and after a JSON
// round trip. It reports false when the value does not fit in an int32.
func toInt32(v any) (int32, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int32:
		return x, true
	case int64:
		n = x
	case float64:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, false
		}
		return int32(x), true
	default:
		return 0, true
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

func idString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%d", int64(n))
	default:
		return fmt.Sprint(n)
	}
}
