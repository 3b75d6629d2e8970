package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/normanpd/internal/incident"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const incidentsSchema = `
CREATE TABLE IF NOT EXISTS incidents (
	incident_time     TEXT,
	incident_number   TEXT UNIQUE,
	incident_location TEXT,
	nature            TEXT,
	incident_ori      TEXT
)`

// PostgreSQL has no rowid, so the insertion sequence is an explicit column.
const incidentsSchemaPostgres = `
CREATE TABLE IF NOT EXISTS incidents (
	seq               BIGSERIAL PRIMARY KEY,
	incident_time     TEXT,
	incident_number   TEXT UNIQUE,
	incident_location TEXT,
	nature            TEXT,
	incident_ori      TEXT
)`

const insertIncident = `INSERT INTO incidents (incident_time, incident_number, incident_location, nature, incident_ori)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (incident_number) DO NOTHING`

const aggregateByNature = `SELECT nature, COUNT(*) AS cnt
	FROM incidents
	GROUP BY nature
	ORDER BY cnt DESC, nature ASC`

// Config selects the backing database. For SQLite the DSN is a file path.
type Config struct {
	Driver string
	DSN    string
}

// SQLStore keeps incidents in a single relational table. SQLite is the
// default backend; PostgreSQL works through the pgx stdlib driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

type incidentRow struct {
	Timestamp  sql.NullString `db:"incident_time"`
	CaseNumber string         `db:"incident_number"`
	Location   sql.NullString `db:"incident_location"`
	Nature     sql.NullString `db:"nature"`
	ORI        sql.NullString `db:"incident_ori"`
}

func (r incidentRow) record() incident.Record {
	return incident.Record{
		Timestamp:  r.Timestamp.String,
		CaseNumber: r.CaseNumber,
		Location:   r.Location.String,
		Category:   r.Nature.String,
		AgencyCode: r.ORI.String,
	}
}

// Open connects and verifies the connection. It does not create the table.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DriverSQLite
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database dsn is required")
	}

	dsn := cfg.DSN
	if driver == DriverSQLite {
		if dir := filepath.Dir(cfg.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = cfg.DSN + "?_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Driver() string { return s.driver }

func (s *SQLStore) Create(ctx context.Context) error {
	schema := incidentsSchema
	if s.driver == DriverPostgres {
		schema = incidentsSchemaPostgres
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Reset drops every stored incident and recreates the table.
func (s *SQLStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS incidents`); err != nil {
		return fmt.Errorf("drop incidents: %w", err)
	}
	return s.Create(ctx)
}

// InsertMany inserts records that are not already present and returns how
// many rows were written. All inserts share one transaction and a single
// commit. When an insert fails or ctx is cancelled mid-batch, rows written
// before that point are still committed.
func (s *SQLStore) InsertMany(ctx context.Context, records []incident.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	// The transaction must outlive a cancelled ctx, otherwise database/sql
	// rolls it back and the partial batch is lost.
	txCtx := context.WithoutCancel(ctx)
	tx, err := s.db.BeginTxx(txCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PreparexContext(txCtx, s.db.Rebind(insertIncident))
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return s.commitPartial(tx, inserted, fmt.Errorf("insert incident %q: %w", r.CaseNumber, err))
		}
		res, err := stmt.ExecContext(txCtx, r.Timestamp, r.CaseNumber, r.Location, r.Category, nullString(r.AgencyCode))
		if err != nil {
			return s.commitPartial(tx, inserted, fmt.Errorf("insert incident %q: %w", r.CaseNumber, err))
		}
		n, err := res.RowsAffected()
		if err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLStore) commitPartial(tx *sqlx.Tx, inserted int, cause error) (int, error) {
	if err := tx.Commit(); err != nil {
		return 0, errors.Join(cause, fmt.Errorf("commit partial batch: %w", err))
	}
	return inserted, cause
}

func (s *SQLStore) AggregateByCategory(ctx context.Context) ([]incident.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, aggregateByNature)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer rows.Close()
	var out []incident.CategoryCount
	for rows.Next() {
		var nature sql.NullString
		var cnt int
		if err := rows.Scan(&nature, &cnt); err != nil {
			return nil, err
		}
		out = append(out, incident.CategoryCount{Category: nature.String, Count: cnt})
	}
	return out, rows.Err()
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM incidents`); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Get(ctx context.Context, caseNumber string) (incident.Record, error) {
	var row incidentRow
	q := s.db.Rebind(`SELECT incident_time, incident_number, incident_location, nature, incident_ori
		FROM incidents WHERE incident_number = ?`)
	if err := s.db.GetContext(ctx, &row, q, caseNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return incident.Record{}, ErrNotFound
		}
		return incident.Record{}, fmt.Errorf("get incident: %w", err)
	}
	return row.record(), nil
}

// List returns incidents in insertion order.
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]incident.Record, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT incident_time, incident_number, incident_location, nature, incident_ori FROM incidents`)
	if filter.Category != "" {
		b.WriteString(` WHERE nature = ?`)
		args = append(args, filter.Category)
	}
	b.WriteString(` ORDER BY ` + s.insertionOrder())
	if filter.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	var rows []incidentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	out := make([]incident.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SQLStore) insertionOrder() string {
	if s.driver == DriverPostgres {
		return "seq"
	}
	return "rowid"
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ API = (*SQLStore)(nil)
