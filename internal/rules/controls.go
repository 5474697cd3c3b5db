package rules

import "github.com/Billy-Davies-2/bo7-match-logger/internal/models"

// Controls says which form inputs a renderer should enable. Size selects are
// only shown when exact roster sizes are required.
type Controls struct {
	Mode       bool `json:"mode"`
	Map        bool `json:"map"`
	GuildSize  bool `json:"guildSize"`
	GuildPicks bool `json:"guildPicks"`
	JSOCSize   bool `json:"jsocSize"`
	JSOCPicks  bool `json:"jsocPicks"`
	FFASize    bool `json:"ffaSize"`
	FFAPicks   bool `json:"ffaPicks"`
	Scores     bool `json:"scores"`
	Submit     bool `json:"submit"`
	Cancel     bool `json:"cancel"`
}

// Controls derives control eligibility from the current state
func (e *Engine) Controls(state models.FormState) Controls {
	ffa := e.IsFreeForAll(state)
	teams := state.ModeCode != "" && !ffa
	strict := e.policy.ExactRosterSize

	c := Controls{
		Mode:   true,
		Map:    true,
		Scores: true,
		Cancel: true,
		Submit: e.IsComplete(state),
	}

	c.GuildSize = teams && strict
	c.JSOCSize = teams && strict
	c.GuildPicks = teams && (!strict || state.GuildSize != nil)
	c.JSOCPicks = teams && (!strict || state.JSOCSize != nil)

	c.FFASize = ffa && strict
	c.FFAPicks = ffa && (!strict || state.FFASize != nil)

	return c
}
