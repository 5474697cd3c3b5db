// Package rules holds the transition functions for a match logging form.
//
// Every Apply* function takes the current FormState by value and returns the
// next one; the input is never modified. On error the input state is returned
// unchanged so callers can keep using it.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

var (
	// ErrValidation reports malformed or out of range input
	ErrValidation = errors.New("validation failed")
	// ErrConflict reports a player picked for both teams
	ErrConflict = errors.New("player conflict")
)

const (
	// MaxTeamPlayers is the number of record slots per side
	MaxTeamPlayers = 4
	MinTeamPlayers = 1
	MinFFAPlayers  = 2
	MaxFFAPlayers  = 8
)

// Policy selects between completeness variants
type Policy struct {
	// ExactRosterSize requires a team size to be chosen first and every
	// roster to match it exactly.
	ExactRosterSize bool
}

// Engine applies form transitions against a catalog
type Engine struct {
	catalog *catalog.Catalog
	policy  Policy
}

// NewEngine creates a rule engine
func NewEngine(c *catalog.Catalog, policy Policy) *Engine {
	return &Engine{catalog: c, policy: policy}
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func (e *Engine) Policy() Policy { return e.policy }

// IsFreeForAll reports whether the selected mode is free-for-all
func (e *Engine) IsFreeForAll(state models.FormState) bool {
	return state.ModeCode != "" && state.ModeCode == e.catalog.FreeForAllCode()
}

// ApplyModeChange selects a mode and clears every roster, since picks made
// for one mode do not carry over to another.
func (e *Engine) ApplyModeChange(state models.FormState, code string) (models.FormState, error) {
	if !e.catalog.HasMode(code) {
		return state, fmt.Errorf("%w: unknown mode %q", ErrValidation, code)
	}

	next := state.Clone()
	next.ModeCode = code
	next.GuildPlayers = []int{}
	next.JSOCPlayers = []int{}
	next.FFAPlayers = []int{}
	next.GuildSize = nil
	next.JSOCSize = nil
	next.FFASize = nil
	return next, nil
}

// ApplyMapChange selects a map
func (e *Engine) ApplyMapChange(state models.FormState, code string) (models.FormState, error) {
	if !e.catalog.HasMap(code) {
		return state, fmt.Errorf("%w: unknown map %q", ErrValidation, code)
	}

	next := state.Clone()
	next.MapCode = code
	return next, nil
}

// ApplyRosterPick replaces one side's roster
func (e *Engine) ApplyRosterPick(state models.FormState, side models.Side, picks []int) (models.FormState, error) {
	if !side.Valid() {
		return state, fmt.Errorf("%w: unknown side %q", ErrValidation, side)
	}
	if e.IsFreeForAll(state) {
		return state, fmt.Errorf("%w: team rosters are not used in free-for-all", ErrValidation)
	}
	if len(picks) > MaxTeamPlayers {
		return state, fmt.Errorf("%w: at most %d players per team, got %d", ErrValidation, MaxTeamPlayers, len(picks))
	}
	if err := e.checkPicks(picks); err != nil {
		return state, err
	}
	if e.policy.ExactRosterSize {
		size := state.Size(side)
		if size == nil {
			return state, fmt.Errorf("%w: choose the %s team size first", ErrValidation, side)
		}
		if len(picks) != *size {
			return state, fmt.Errorf("%w: %s needs exactly %d players, got %d", ErrValidation, side, *size, len(picks))
		}
	}

	opposing := state.Roster(side.Opponent())
	for _, id := range picks {
		for _, other := range opposing {
			if id == other {
				return state, fmt.Errorf("%w: player %d is already on %s", ErrConflict, id, side.Opponent())
			}
		}
	}

	next := state.Clone()
	roster := append([]int{}, picks...)
	if side == models.SideGuild {
		next.GuildPlayers = roster
	} else {
		next.JSOCPlayers = roster
	}
	return next, nil
}

// ApplyFFAPick replaces the free-for-all roster
func (e *Engine) ApplyFFAPick(state models.FormState, picks []int) (models.FormState, error) {
	if !e.IsFreeForAll(state) {
		return state, fmt.Errorf("%w: free-for-all roster requires the free-for-all mode", ErrValidation)
	}
	if len(picks) > MaxFFAPlayers {
		return state, fmt.Errorf("%w: at most %d free-for-all players, got %d", ErrValidation, MaxFFAPlayers, len(picks))
	}
	if err := e.checkPicks(picks); err != nil {
		return state, err
	}
	if e.policy.ExactRosterSize {
		if state.FFASize == nil {
			return state, fmt.Errorf("%w: choose the free-for-all size first", ErrValidation)
		}
		if len(picks) != *state.FFASize {
			return state, fmt.Errorf("%w: select exactly %d free-for-all players, got %d", ErrValidation, *state.FFASize, len(picks))
		}
	}

	next := state.Clone()
	next.FFAPlayers = append([]int{}, picks...)
	return next, nil
}

// ApplyTeamSize records how many players a side fields. A roster that no
// longer matches the new size is cleared.
func (e *Engine) ApplyTeamSize(state models.FormState, side models.Side, size int) (models.FormState, error) {
	if !side.Valid() {
		return state, fmt.Errorf("%w: unknown side %q", ErrValidation, side)
	}
	if e.IsFreeForAll(state) {
		return state, fmt.Errorf("%w: team sizes are not used in free-for-all", ErrValidation)
	}
	if size < MinTeamPlayers || size > MaxTeamPlayers {
		return state, fmt.Errorf("%w: team size must be between %d and %d", ErrValidation, MinTeamPlayers, MaxTeamPlayers)
	}

	next := state.Clone()
	if side == models.SideGuild {
		next.GuildSize = models.IntPtr(size)
		if len(next.GuildPlayers) != size {
			next.GuildPlayers = []int{}
		}
	} else {
		next.JSOCSize = models.IntPtr(size)
		if len(next.JSOCPlayers) != size {
			next.JSOCPlayers = []int{}
		}
	}
	return next, nil
}

// ApplyFFASize records the free-for-all entrant count
func (e *Engine) ApplyFFASize(state models.FormState, size int) (models.FormState, error) {
	if !e.IsFreeForAll(state) {
		return state, fmt.Errorf("%w: free-for-all size requires the free-for-all mode", ErrValidation)
	}
	if size < MinFFAPlayers || size > MaxFFAPlayers {
		return state, fmt.Errorf("%w: free-for-all size must be between %d and %d", ErrValidation, MinFFAPlayers, MaxFFAPlayers)
	}

	next := state.Clone()
	next.FFASize = models.IntPtr(size)
	if len(next.FFAPlayers) != size {
		next.FFAPlayers = []int{}
	}
	return next, nil
}

// ApplyScores sets the submitter and both scores together. Nothing changes
// unless every field is valid.
func (e *Engine) ApplyScores(state models.FormState, submitter, guildScore, jsocScore string) (models.FormState, error) {
	submitter = strings.TrimSpace(submitter)
	if submitter == "" {
		return state, fmt.Errorf("%w: logged by is required", ErrValidation)
	}
	guild, err := strconv.Atoi(strings.TrimSpace(guildScore))
	if err != nil {
		return state, fmt.Errorf("%w: guild score must be an integer, got %q", ErrValidation, guildScore)
	}
	jsoc, err := strconv.Atoi(strings.TrimSpace(jsocScore))
	if err != nil {
		return state, fmt.Errorf("%w: jsoc score must be an integer, got %q", ErrValidation, jsocScore)
	}

	next := state.Clone()
	next.Submitter = submitter
	next.GuildScore = models.IntPtr(guild)
	next.JSOCScore = models.IntPtr(jsoc)
	return next, nil
}

// IsComplete reports whether the form can be submitted
func (e *Engine) IsComplete(state models.FormState) bool {
	if state.ModeCode == "" || state.MapCode == "" || state.Submitter == "" {
		return false
	}
	if state.GuildScore == nil || state.JSOCScore == nil {
		return false
	}

	if e.IsFreeForAll(state) {
		if len(state.FFAPlayers) < MinFFAPlayers {
			return false
		}
		if e.policy.ExactRosterSize {
			return state.FFASize != nil && len(state.FFAPlayers) == *state.FFASize
		}
		return true
	}

	if len(state.GuildPlayers) < MinTeamPlayers || len(state.JSOCPlayers) < MinTeamPlayers {
		return false
	}
	if e.policy.ExactRosterSize {
		return state.GuildSize != nil && len(state.GuildPlayers) == *state.GuildSize &&
			state.JSOCSize != nil && len(state.JSOCPlayers) == *state.JSOCSize
	}
	return true
}

// Missing lists the fields still blocking submission, in form order
func (e *Engine) Missing(state models.FormState) []string {
	var missing []string
	if state.ModeCode == "" {
		missing = append(missing, "mode")
	}
	if state.MapCode == "" {
		missing = append(missing, "map")
	}
	if state.ModeCode != "" {
		if e.IsFreeForAll(state) {
			if len(state.FFAPlayers) < MinFFAPlayers ||
				(e.policy.ExactRosterSize && (state.FFASize == nil || len(state.FFAPlayers) != *state.FFASize)) {
				missing = append(missing, "ffa roster")
			}
		} else {
			for _, side := range models.Sides {
				roster := state.Roster(side)
				size := state.Size(side)
				if len(roster) < MinTeamPlayers ||
					(e.policy.ExactRosterSize && (size == nil || len(roster) != *size)) {
					missing = append(missing, string(side)+" roster")
				}
			}
		}
	}
	if state.GuildScore == nil || state.JSOCScore == nil {
		missing = append(missing, "scores")
	}
	if state.Submitter == "" {
		missing = append(missing, "submitter")
	}
	return missing
}

// checkPicks rejects unknown and repeated player ids
func (e *Engine) checkPicks(picks []int) error {
	seen := make(map[int]bool, len(picks))
	for _, id := range picks {
		if _, ok := e.catalog.PlayerByID(id); !ok {
			return fmt.Errorf("%w: unknown player %d", ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: player %d picked twice", ErrValidation, id)
		}
		seen[id] = true
	}
	return nil
}
