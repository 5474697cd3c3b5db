// Package clickhouse mirrors recorded matches into ClickHouse as one row per
// player appearance, for win-rate and participation queries.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Recorder stores appearances and answers aggregate queries
type Recorder interface {
	RecordAppearances(ctx context.Context, rows []Appearance) error
	PlayerStats(ctx context.Context) ([]PlayerStats, error)
	Close() error
}

// Client is the ClickHouse backed Recorder
type Client struct {
	conn driver.Conn
}

// NewClient connects, pings and makes sure the appearances table exists
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	ddl := `
		CREATE TABLE IF NOT EXISTS match_appearances (
			session_id  String,
			recorded_at DateTime64(3),
			by_who      String,
			mode_id     String,
			map_id      String,
			side        LowCardinality(String),
			slot        UInt8,
			player_name String,
			team_score  Int32,
			opp_score   Int32,
			won         Bool,
			dry_run     Bool
		) ENGINE = MergeTree
		ORDER BY (player_name, recorded_at)
	`
	if err := conn.Exec(ctx, ddl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create match_appearances: %w", err)
	}

	return &Client{conn: conn}, nil
}

// RecordAppearances writes rows in one batch
func (c *Client) RecordAppearances(ctx context.Context, rows []Appearance) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO match_appearances")
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := batch.Append(r.SessionID, r.RecordedAt, r.ByWho, r.ModeID, r.MapID,
			r.Side, r.Slot, r.PlayerName, r.TeamScore, r.OppScore, r.Won, r.DryRun); err != nil {
			return err
		}
	}
	return batch.Send()
}

// PlayerStats counts appearances and wins per player, dry runs excluded
func (c *Client) PlayerStats(ctx context.Context) ([]PlayerStats, error) {
	query := `
		SELECT
			player_name,
			count() AS appearances,
			countIf(won) AS wins
		FROM match_appearances
		WHERE NOT dry_run
		GROUP BY player_name
		ORDER BY wins DESC, player_name
	`

	rows, err := c.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PlayerStats{}
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.Player, &s.Appearances, &s.Wins); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
