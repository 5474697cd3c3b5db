package session

import (
	"fmt"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// EventKind names a form interaction
type EventKind string

const (
	EventSelectMode     EventKind = "select_mode"
	EventSelectMap      EventKind = "select_map"
	EventPickRoster     EventKind = "pick_roster"
	EventPickFFA        EventKind = "pick_ffa"
	EventSetScores      EventKind = "set_scores"
	EventSelectTeamSize EventKind = "select_team_size"
	EventSelectFFASize  EventKind = "select_ffa_size"
	EventSubmit         EventKind = "submit"
	EventCancel         EventKind = "cancel"
)

var eventKinds = map[EventKind]bool{
	EventSelectMode:     true,
	EventSelectMap:      true,
	EventPickRoster:     true,
	EventPickFFA:        true,
	EventSetScores:      true,
	EventSelectTeamSize: true,
	EventSelectFFASize:  true,
	EventSubmit:         true,
	EventCancel:         true,
}

// ParseEventKind validates a kind received from a client
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !eventKinds[k] {
		return "", fmt.Errorf("unknown event %q", s)
	}
	return k, nil
}

// Event is one interaction delivered to a session. Only the fields used by
// Kind are read.
type Event struct {
	Kind EventKind `json:"kind"`

	// SelectMode, SelectMap
	Code string `json:"code,omitempty"`

	// PickRoster, SelectTeamSize
	Side models.Side `json:"side,omitempty"`

	// PickRoster, PickFFA
	Picks []int `json:"picks,omitempty"`

	// SelectTeamSize, SelectFFASize
	Size int `json:"size,omitempty"`

	// SetScores
	Submitter  string `json:"submitter,omitempty"`
	GuildScore string `json:"guildScore,omitempty"`
	JSOCScore  string `json:"jsocScore,omitempty"`
}

func SelectMode(code string) Event { return Event{Kind: EventSelectMode, Code: code} }

func SelectMap(code string) Event { return Event{Kind: EventSelectMap, Code: code} }

func PickRoster(side models.Side, picks []int) Event {
	return Event{Kind: EventPickRoster, Side: side, Picks: picks}
}

func PickFFA(picks []int) Event { return Event{Kind: EventPickFFA, Picks: picks} }

func SetScores(submitter, guild, jsoc string) Event {
	return Event{Kind: EventSetScores, Submitter: submitter, GuildScore: guild, JSOCScore: jsoc}
}

func SelectTeamSize(side models.Side, size int) Event {
	return Event{Kind: EventSelectTeamSize, Side: side, Size: size}
}

func SelectFFASize(size int) Event { return Event{Kind: EventSelectFFASize, Size: size} }

func Submit() Event { return Event{Kind: EventSubmit} }

func Cancel() Event { return Event{Kind: EventCancel} }
