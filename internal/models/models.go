package models

import "slices"

// Side identifies one of the two teams in a non free-for-all match
type Side string

const (
	SideGuild Side = "guild"
	SideJSOC  Side = "jsoc"
)

// Sides lists the two teams in record order
var Sides = []Side{SideGuild, SideJSOC}

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideGuild || s == SideJSOC
}

// Opponent returns the opposing side
func (s Side) Opponent() Side {
	if s == SideGuild {
		return SideJSOC
	}
	return SideGuild
}

// Mode is a selectable game mode
type Mode struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Map is a selectable map
type Map struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Player is a member of the static roster
type Player struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Gamertag string `json:"gamertag"`
}

// FormState holds the selections of one in-progress logging session.
// Empty strings and nil pointers mean "not chosen yet".
type FormState struct {
	Submitter    string `json:"submitter,omitempty"`
	ModeCode     string `json:"modeCode,omitempty"`
	MapCode      string `json:"mapCode,omitempty"`
	GuildPlayers []int  `json:"guildPlayers"`
	JSOCPlayers  []int  `json:"jsocPlayers"`
	FFAPlayers   []int  `json:"ffaPlayers"`
	GuildScore   *int   `json:"guildScore,omitempty"`
	JSOCScore    *int   `json:"jsocScore,omitempty"`

	// Team sizes are only enforced when exact roster sizes are required
	GuildSize *int `json:"guildSize,omitempty"`
	JSOCSize  *int `json:"jsocSize,omitempty"`
	FFASize   *int `json:"ffaSize,omitempty"`
}

// Clone returns a deep copy of the state
func (s FormState) Clone() FormState {
	c := s
	c.GuildPlayers = cloneIDs(s.GuildPlayers)
	c.JSOCPlayers = cloneIDs(s.JSOCPlayers)
	c.FFAPlayers = cloneIDs(s.FFAPlayers)
	c.GuildScore = cloneInt(s.GuildScore)
	c.JSOCScore = cloneInt(s.JSOCScore)
	c.GuildSize = cloneInt(s.GuildSize)
	c.JSOCSize = cloneInt(s.JSOCSize)
	c.FFASize = cloneInt(s.FFASize)
	return c
}

// Roster returns the picks for one side
func (s FormState) Roster(side Side) []int {
	if side == SideJSOC {
		return s.JSOCPlayers
	}
	return s.GuildPlayers
}

// Size returns the chosen team size for one side
func (s FormState) Size(side Side) *int {
	if side == SideJSOC {
		return s.JSOCSize
	}
	return s.GuildSize
}

// MatchRecord is the flat, denormalized row written for a finished match
type MatchRecord map[string]any

// InsertResult is what a store reports after an insert
type InsertResult struct {
	DryRun bool          `json:"dry_run"`
	Rows   []MatchRecord `json:"rows"`
}

func cloneIDs(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return slices.Clone(ids)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
