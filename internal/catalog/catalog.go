// Package catalog holds the static reference data a logging session picks from:
// game modes, maps and the player roster.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// DefaultFreeForAllCode is the mode code with no two-sided team structure
const DefaultFreeForAllCode = "FFA"

// Config is the raw table data a Catalog is built from
type Config struct {
	Modes          []models.Mode   `json:"modes"`
	Maps           []models.Map    `json:"maps"`
	Roster         []models.Player `json:"roster"`
	FreeForAllCode string          `json:"freeForAllCode"`
}

// Catalog is an immutable, indexed view over a Config
type Catalog struct {
	modes   []models.Mode
	maps    []models.Map
	roster  []models.Player
	ffaCode string

	modeLabels map[string]string
	mapLabels  map[string]string
	players    map[int]models.Player
}

// New validates cfg and builds a Catalog from a private copy of it
func New(cfg Config) (*Catalog, error) {
	c := &Catalog{
		modes:      slices.Clone(cfg.Modes),
		maps:       slices.Clone(cfg.Maps),
		roster:     slices.Clone(cfg.Roster),
		ffaCode:    cfg.FreeForAllCode,
		modeLabels: make(map[string]string, len(cfg.Modes)),
		mapLabels:  make(map[string]string, len(cfg.Maps)),
		players:    make(map[int]models.Player, len(cfg.Roster)),
	}
	if c.ffaCode == "" {
		c.ffaCode = DefaultFreeForAllCode
	}

	for _, m := range c.modes {
		if m.Code == "" {
			return nil, fmt.Errorf("mode %q has an empty code", m.Label)
		}
		if _, dup := c.modeLabels[m.Code]; dup {
			return nil, fmt.Errorf("duplicate mode code %q", m.Code)
		}
		c.modeLabels[m.Code] = m.Label
	}
	for _, m := range c.maps {
		if m.Code == "" {
			return nil, fmt.Errorf("map %q has an empty code", m.Label)
		}
		if _, dup := c.mapLabels[m.Code]; dup {
			return nil, fmt.Errorf("duplicate map code %q", m.Code)
		}
		c.mapLabels[m.Code] = m.Label
	}
	for _, p := range c.roster {
		if _, dup := c.players[p.ID]; dup {
			return nil, fmt.Errorf("duplicate player id %d", p.ID)
		}
		c.players[p.ID] = p
	}
	if _, ok := c.modeLabels[c.ffaCode]; !ok && len(c.modes) > 0 {
		return nil, fmt.Errorf("free-for-all code %q is not a known mode", c.ffaCode)
	}

	return c, nil
}

// LoadFile builds a Catalog from a JSON encoded Config
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode catalog file %s: %w", path, err)
	}
	return New(cfg)
}

// Default returns the BO7 catalog
func Default() *Catalog {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(fmt.Sprintf("catalog: default tables are invalid: %v", err))
	}
	return c
}

// DefaultConfig returns the BO7 mode, map and roster tables
func DefaultConfig() Config {
	return Config{
		Modes: []models.Mode{
			{Code: "HP", Label: "Hardpoint"},
			{Code: "SND", Label: "Search and Destroy"},
			{Code: "GF", Label: "Gunfight"},
			{Code: "FFA", Label: "Free For All"},
			{Code: "TDM", Label: "Team Deathmatch"},
			{Code: "OVR", Label: "Overload"},
		},
		Maps: []models.Map{
			{Code: "BLACKHEART", Label: "Blackheart"},
			{Code: "COLOSSUS", Label: "Colossus"},
			{Code: "CORTEX", Label: "Cortex"},
			{Code: "HIJACKED", Label: "Hijacked"},
			{Code: "RAID", Label: "Raid"},
			{Code: "FORGE", Label: "The Forge"},
		},
		Roster: []models.Player{
			{ID: 1, Name: "Mario", Gamertag: "Nooport"},
			{ID: 2, Name: "Kai", Gamertag: "MuffinMan"},
			{ID: 3, Name: "Danny", Gamertag: "Dflo"},
			{ID: 4, Name: "Gio", Gamertag: "Kobe"},
			{ID: 5, Name: "Jozy", Gamertag: "BaconEggCheese"},
			{ID: 6, Name: "Alan", Gamertag: "retro"},
		},
		FreeForAllCode: DefaultFreeForAllCode,
	}
}

func (c *Catalog) Modes() []models.Mode {
	return slices.Clone(c.modes)
}

func (c *Catalog) Maps() []models.Map {
	return slices.Clone(c.maps)
}

func (c *Catalog) Roster() []models.Player {
	return slices.Clone(c.roster)
}

// FreeForAllCode returns the code of the free-for-all mode
func (c *Catalog) FreeForAllCode() string {
	return c.ffaCode
}

// LabelOf returns the label for a mode or map code. Mode codes win if a code
// appears in both tables.
func (c *Catalog) LabelOf(code string) (string, bool) {
	if label, ok := c.modeLabels[code]; ok {
		return label, true
	}
	label, ok := c.mapLabels[code]
	return label, ok
}

func (c *Catalog) ModeLabel(code string) (string, bool) {
	label, ok := c.modeLabels[code]
	return label, ok
}

func (c *Catalog) MapLabel(code string) (string, bool) {
	label, ok := c.mapLabels[code]
	return label, ok
}

func (c *Catalog) HasMode(code string) bool {
	_, ok := c.modeLabels[code]
	return ok
}

func (c *Catalog) HasMap(code string) bool {
	_, ok := c.mapLabels[code]
	return ok
}

// PlayerByID looks up a roster entry
func (c *Catalog) PlayerByID(id int) (models.Player, bool) {
	p, ok := c.players[id]
	return p, ok
}

// PlayerNames resolves ids to names, skipping ids not on the roster
func (c *Catalog) PlayerNames(ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.players[id]; ok {
			names = append(names, p.Name)
		}
	}
	return names
}
