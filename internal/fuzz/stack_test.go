package fuzz

import (
	"testing"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

func init() {
	// Initialize logger for tests
	logger.InitWithLevel("error")
}

type stack struct {
	catalog *catalog.Catalog
	engine  *rules.Engine
	store   *dal.MemoryDAL
	bus     *pubsub.Bus
	ctrl    *session.Controller
}

func newStack(t *testing.T, policy rules.Policy) *stack {
	t.Helper()
	c := catalog.Default()
	s := &stack{
		catalog: c,
		engine:  rules.NewEngine(c, policy),
		store:   dal.NewMemoryDAL(c),
		bus:     pubsub.New(),
	}
	ctrl, err := session.NewController(session.Options{
		Engine:  s.engine,
		Builder: payload.NewBuilder(c, s.store),
		Store:   s.store,
		Events:  s.bus,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.ctrl = ctrl
	return s
}

// checkRosters fails when a state breaks the roster rules
func checkRosters(t *testing.T, state models.FormState) {
	t.Helper()
	onGuild := make(map[int]bool)
	for _, id := range state.GuildPlayers {
		onGuild[id] = true
	}
	for _, id := range state.JSOCPlayers {
		if onGuild[id] {
			t.Fatalf("player %d on both teams: %+v", id, state)
		}
	}
	if len(state.GuildPlayers) > rules.MaxTeamPlayers || len(state.JSOCPlayers) > rules.MaxTeamPlayers {
		t.Fatalf("team over capacity: %+v", state)
	}
	if len(state.FFAPlayers) > rules.MaxFFAPlayers {
		t.Fatalf("free-for-all over capacity: %+v", state)
	}
}

// picksFrom turns fuzz bytes into small player ids, some out of range
func picksFrom(data []byte) []int {
	picks := make([]int, 0, len(data))
	for _, b := range data {
		picks = append(picks, int(b%9))
	}
	return picks
}
