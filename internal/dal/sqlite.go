package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/catalog"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/models"
)

// SQLiteDAL stores matches in a local SQLite file. It creates and seeds its
// own lookup tables, which makes it the development stand-in for Postgres.
type SQLiteDAL struct {
	db    *sql.DB
	table string
}

// NewSQLiteDAL opens dbPath, creating the schema and seeding modes and maps
// from the catalog on first use.
func NewSQLiteDAL(dbPath, table string, c *catalog.Catalog) (*SQLiteDAL, error) {
	if table == "" {
		table = DefaultMatchTable
	}
	if !ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	s := &SQLiteDAL{db: db, table: table}
	if err := s.initSchema(c); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDAL) initSchema(c *catalog.Catalog) error {
	schema := `
	CREATE TABLE IF NOT EXISTS modes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS maps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL UNIQUE
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if _, err := s.db.Exec(matchTableDDL(s.table)); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}

	for _, m := range c.Modes() {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO modes (code, name) VALUES (?, ?)`, m.Code, m.Label); err != nil {
			return fmt.Errorf("failed to seed mode %s: %w", m.Code, err)
		}
	}
	for _, m := range c.Maps() {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO maps (code, name) VALUES (?, ?)`, m.Code, m.Label); err != nil {
			return fmt.Errorf("failed to seed map %s: %w", m.Code, err)
		}
	}
	return nil
}

// matchTableDDL builds the CREATE TABLE statement for the flat match row
func matchTableDDL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("\tcreated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	for _, col := range models.RecordColumns() {
		typ := "INTEGER"
		if col == models.FieldByWho || strings.HasSuffix(col, "_name") {
			typ = "TEXT"
		}
		fmt.Fprintf(&b, ",\n\t%s %s", col, typ)
	}
	b.WriteString("\n)")
	return b.String()
}

func (s *SQLiteDAL) LookupModeID(ctx context.Context, label string) (int64, error) {
	return s.lookup(ctx, "modes", label)
}

func (s *SQLiteDAL) LookupMapID(ctx context.Context, label string) (int64, error) {
	return s.lookup(ctx, "maps", label)
}

func (s *SQLiteDAL) lookup(ctx context.Context, table, label string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE name = ?", table), label).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s %q: %w", table, label, ErrNotFound)
	}
	return id, err
}

// InsertMatch writes one row and returns it with its id
func (s *SQLiteDAL) InsertMatch(ctx context.Context, record models.MatchRecord) (*models.InsertResult, error) {
	cols := models.RecordColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(cols, ", "), placeholders)

	res, err := s.db.ExecContext(ctx, query, recordValues(record)...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", s.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := cloneRecord(record)
	row["id"] = id
	return &models.InsertResult{Rows: []models.MatchRecord{row}}, nil
}

// ListMatches returns the most recent rows, newest first
func (s *SQLiteDAL) ListMatches(ctx context.Context, limit int) ([]models.MatchRecord, error) {
	return listMatches(ctx, s.db, fmt.Sprintf("SELECT id, %s FROM %s ORDER BY id DESC LIMIT ?",
		strings.Join(models.RecordColumns(), ", "), s.table), limit)
}

func (s *SQLiteDAL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDAL) Close() error {
	return s.db.Close()
}

// listMatches scans rows of id followed by every record column
func listMatches(ctx context.Context, db *sql.DB, query string, limit int) ([]models.MatchRecord, error) {
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := append([]string{"id"}, models.RecordColumns()...)
	out := []models.MatchRecord{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(models.MatchRecord, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[col] = string(b)
			} else {
				rec[col] = vals[i]
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
