package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// PostgresOptions tunes connection setup
type PostgresOptions struct {
	Table          string
	ConnectRetries int
	RetryDelay     time.Duration
	PingTimeout    time.Duration
}

// DefaultPostgresOptions suit a hosted Postgres reached over the network
func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{
		Table:          DefaultMatchTable,
		ConnectRetries: 5,
		RetryDelay:     5 * time.Second,
		PingTimeout:    60 * time.Second,
	}
}

// PostgresDAL writes matches to an existing Postgres schema (Supabase). It
// never creates or alters tables; modes, maps and the match table must exist.
type PostgresDAL struct {
	db    *sql.DB
	table string
}

// NewPostgresDAL opens connString and waits for the database to answer
func NewPostgresDAL(connString string, opts PostgresOptions) (*PostgresDAL, error) {
	if opts.Table == "" {
		opts.Table = DefaultMatchTable
	}
	if !ValidTableName(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.ConnectRetries < 1 {
		opts.ConnectRetries = 1
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	var lastErr error
	for i := 0; i < opts.ConnectRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
		lastErr = db.PingContext(ctx)
		cancel()
		if lastErr == nil {
			break
		}
		logger.Warn("Postgres not ready", "attempt", i+1, "error", lastErr)
		if i < opts.ConnectRetries-1 {
			time.Sleep(opts.RetryDelay)
		}
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d attempts: %w", opts.ConnectRetries, lastErr)
	}

	return &PostgresDAL{db: db, table: opts.Table}, nil
}

func (p *PostgresDAL) LookupModeID(ctx context.Context, label string) (int64, error) {
	return p.lookup(ctx, "modes", label)
}

func (p *PostgresDAL) LookupMapID(ctx context.Context, label string) (int64, error) {
	return p.lookup(ctx, "maps", label)
}

func (p *PostgresDAL) lookup(ctx context.Context, table, label string) (int64, error) {
	var id int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE name = $1 LIMIT 1", pq.QuoteIdentifier(table))
	err := p.db.QueryRowContext(ctx, query, label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s %q: %w", table, label, ErrNotFound)
	}
	if err != nil {
		return 0, describePQ(err)
	}
	return id, nil
}

// InsertMatch writes one row in a single attempt
func (p *PostgresDAL) InsertMatch(ctx context.Context, record models.MatchRecord) (*models.InsertResult, error) {
	cols := models.RecordColumns()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pq.QuoteIdentifier(p.table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := p.db.QueryRowContext(ctx, query, recordValues(record)...).Scan(&id); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", p.table, describePQ(err))
	}

	row := cloneRecord(record)
	row["id"] = id
	return &models.InsertResult{Rows: []models.MatchRecord{row}}, nil
}

// ListMatches returns the most recent rows, newest first
func (p *PostgresDAL) ListMatches(ctx context.Context, limit int) ([]models.MatchRecord, error) {
	cols := models.RecordColumns()
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id DESC LIMIT $1",
		strings.Join(quoted, ", "), pq.QuoteIdentifier(p.table))
	return listMatches(ctx, p.db, query, limit)
}

func (p *PostgresDAL) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDAL) Close() error {
	return p.db.Close()
}

// describePQ adds the SQLSTATE name to Postgres errors
func describePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Message, pqErr.Code.Name(), err)
	}
	return err
}
