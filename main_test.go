package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/auth"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/config"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/mocks"
)

func TestOpenStore(t *testing.T) {
	c := catalog.Default()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
		check   func(dal.MatchDAL) bool
	}{
		{"memory", config.Config{DBDriver: config.DriverMemory}, false, func(s dal.MatchDAL) bool {
			_, ok := s.(*dal.MemoryDAL)
			return ok
		}},
		{"sqlite", config.Config{DBDriver: config.DriverSQLite, SQLiteFile: filepath.Join(dir, "a.sqlite"), Table: "match_master"}, false, func(s dal.MatchDAL) bool {
			_, ok := s.(*dal.SQLiteDAL)
			return ok
		}},
		{"postgres in development falls back to the mock", config.Config{
			Environment: "development", DBDriver: config.DriverPostgres,
			SQLiteFile: filepath.Join(dir, "b.sqlite"), Table: "match_master",
		}, false, func(s dal.MatchDAL) bool {
			_, ok := s.(*mocks.MockPostgresDAL)
			return ok
		}},
		{"postgres in production needs a url", config.Config{Environment: "production", DBDriver: config.DriverPostgres}, true, nil},
		{"unknown driver", config.Config{DBDriver: "mongo"}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(&tt.cfg, c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer store.Close()
			if !tt.check(store) {
				t.Errorf("unexpected store type %T", store)
			}
			if err := store.Ping(context.Background()); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}

func TestOpenBus(t *testing.T) {
	for _, mode := range []string{config.NATSOff, config.NATSMock} {
		var cleanup closer
		bus, err := openBus(&config.Config{NATSMode: mode}, &cleanup)
		if err != nil || bus == nil {
			t.Errorf("%s: %v", mode, err)
		}
		cleanup.run()
	}

	var cleanup closer
	if _, err := openBus(&config.Config{NATSMode: "kafka"}, &cleanup); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestCloserRunsInReverse(t *testing.T) {
	var order []int
	var c closer
	c.add(func() { order = append(order, 1) })
	c.add(func() { order = append(order, 2) })
	c.run()
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("order = %v", order)
	}
}

func TestNewAuthProvider(t *testing.T) {
	if _, ok := newAuthProvider(&config.Config{Environment: "development"}).(*auth.MockAuth); !ok {
		t.Error("development without Discord should use mock auth")
	}
	if _, ok := newAuthProvider(&config.Config{Environment: "production", DiscordClientID: "1"}).(*auth.DiscordAuth); !ok {
		t.Error("production should use Discord")
	}
}

func TestCatalogCommand(t *testing.T) {
	t.Setenv("CATALOG_FILE", "")
	var buf bytes.Buffer
	envFile := filepath.Join(t.TempDir(), "none.env")
	cmd := catalogCmd(&envFile)
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Hardpoint", "The Forge", "BaconEggCheese"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestServeRejectsRawCodesWithoutDryRun(t *testing.T) {
	t.Setenv("RESOLVE_IDS", "false")
	t.Setenv("DRY_RUN", "false")
	t.Setenv("DB_DRIVER", config.DriverMemory)

	err := runServe(context.Background(), filepath.Join(t.TempDir(), "missing.env"))
	if err == nil || !strings.Contains(err.Error(), "RESOLVE_IDS") {
		t.Fatalf("expected RESOLVE_IDS error, got %v", err)
	}
}
