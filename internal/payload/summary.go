package payload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// Pending is shown for anything not chosen yet
const Pending = "Pending"

// Labels are the display names of the two sides
type Labels struct {
	Guild string `json:"guild"`
	JSOC  string `json:"jsoc"`
}

// DefaultLabels are used when no side labels are configured
var DefaultLabels = Labels{Guild: "Guild", JSOC: "JSOC"}

// Summary is the rendered view of a form in progress
type Summary struct {
	Mode      string `json:"mode"`
	Map       string `json:"map"`
	Roster    string `json:"roster"`
	Scores    string `json:"scores"`
	EnteredBy string `json:"enteredBy"`
}

// BuildSummary describes state using catalog labels and player names
func BuildSummary(c *catalog.Catalog, labels Labels, state models.FormState) Summary {
	if labels.Guild == "" {
		labels.Guild = DefaultLabels.Guild
	}
	if labels.JSOC == "" {
		labels.JSOC = DefaultLabels.JSOC
	}

	s := Summary{
		Mode:      Pending,
		Map:       Pending,
		EnteredBy: Pending,
	}
	if label, ok := c.ModeLabel(state.ModeCode); ok {
		s.Mode = label
	}
	if label, ok := c.MapLabel(state.MapCode); ok {
		s.Map = label
	}
	if state.Submitter != "" {
		s.EnteredBy = state.Submitter
	}

	if state.ModeCode != "" && state.ModeCode == c.FreeForAllCode() {
		names := c.PlayerNames(state.FFAPlayers)
		s.Roster = fmt.Sprintf("FFA (%d players): %s", len(names), joinOrPending(names))
	} else {
		s.Roster = fmt.Sprintf("%s [%s] vs %s [%s]",
			labels.Guild, joinOrPending(c.PlayerNames(state.GuildPlayers)),
			labels.JSOC, joinOrPending(c.PlayerNames(state.JSOCPlayers)))
	}

	s.Scores = fmt.Sprintf("%s: %s | %s: %s",
		labels.Guild, scoreOrPending(state.GuildScore),
		labels.JSOC, scoreOrPending(state.JSOCScore))

	return s
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", s.Mode)
	fmt.Fprintf(&b, "Map: %s\n", s.Map)
	fmt.Fprintf(&b, "Roster: %s\n", s.Roster)
	fmt.Fprintf(&b, "Scores: %s\n", s.Scores)
	fmt.Fprintf(&b, "Entered By: %s", s.EnteredBy)
	return b.String()
}

func joinOrPending(names []string) string {
	if len(names) == 0 {
		return Pending
	}
	return strings.Join(names, ", ")
}

func scoreOrPending(v *int) string {
	if v == nil {
		return Pending
	}
	return strconv.Itoa(*v)
}
