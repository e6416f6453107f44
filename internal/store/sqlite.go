package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mindsight/synapses/internal/domain"
	_ "modernc.org/sqlite"
)

// defaultFactTable is the table the assessment pipeline writes tagged facts
// to. Discovery falls back to scanning for the expected columns when the
// table was created under a different name.
const defaultFactTable = "dados_AVD_pessoas"

// SQLiteStore implements Repository over two SQLite databases: the main
// people database and an optional weekly-reports database.
type SQLiteStore struct {
	db     *sql.DB
	weekly *sql.DB // nil when no weekly database is configured

	mu        sync.Mutex
	factTable string // resolved lazily on first LatestFacts call
}

// NewSQLite opens the main database at dbPath and, when weeklyPath is
// non-empty, the weekly-reports database. factTable overrides fact-table
// discovery; pass "" to use the default.
func NewSQLite(dbPath, weeklyPath, factTable string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db, factTable: factTable}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if weeklyPath != "" {
		weekly, err := open(weeklyPath)
		if err != nil {
			return nil, fmt.Errorf("open weekly database: %w", err)
		}
		s.weekly = weekly
		if err := s.initWeeklySchema(); err != nil {
			return nil, fmt.Errorf("initialize weekly schema: %w", err)
		}
	}

	return s, nil
}

func open(path string) (*sql.DB, error) {
	// WAL mode for better concurrency.
	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// initSchema creates the tables the aggregator reads when they do not exist
// yet. Timestamps are unix epoch seconds; NULL means "date unknown".
func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS pessoas_ativos (
		email TEXT PRIMARY KEY,
		resumo_pessoa TEXT,
		id TEXT,
		posicao TEXT
	);

	CREATE TABLE IF NOT EXISTS outputs_bot_pessoas (
		email TEXT NOT NULL,
		data INTEGER NOT NULL,
		output_pessoa_bot TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_bot_email_data ON outputs_bot_pessoas(email, data);

	CREATE TABLE IF NOT EXISTS ` + defaultFactTable + ` (
		email TEXT NOT NULL,
		informacao TEXT NOT NULL,
		descricao TEXT,
		data INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_fact_email ON ` + defaultFactTable + `(email);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) initWeeklySchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS resumos (
		employee_email TEXT NOT NULL,
		summary TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_resumos_email_ts ON resumos(employee_email, timestamp);
	`
	if _, err := s.weekly.Exec(query); err != nil {
		return fmt.Errorf("create weekly schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	if s.weekly != nil {
		return s.weekly.PingContext(ctx)
	}
	return nil
}

// Close closes the database connections.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.weekly != nil {
		if werr := s.weekly.Close(); err == nil {
			err = werr
		}
	}
	return err
}

// BasicProfile retrieves the person record for an email.
func (s *SQLiteStore) BasicProfile(ctx context.Context, email string) (*domain.Profile, error) {
	query := `
		SELECT resumo_pessoa, id, posicao
		FROM pessoas_ativos
		WHERE email = ?
		LIMIT 1`

	var summary, personID, role sql.NullString
	err := s.db.QueryRowContext(ctx, query, email).Scan(&summary, &personID, &role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query basic profile: %w", err)
	}

	return &domain.Profile{
		Summary:  summary.String,
		Role:     role.String,
		PersonID: personID.String,
	}, nil
}

// InteractionHistory renders the recent assistant interactions for an email.
func (s *SQLiteStore) InteractionHistory(ctx context.Context, email string, days int) (string, error) {
	query := `
		SELECT data, output_pessoa_bot
		FROM outputs_bot_pessoas
		WHERE email = ? AND data >= ?
		ORDER BY data DESC
		LIMIT 5`

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()
	rows, err := s.db.QueryContext(ctx, query, email, cutoff)
	if err != nil {
		return "", fmt.Errorf("query interaction history: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var ts int64
		var summary sql.NullString
		if err := rows.Scan(&ts, &summary); err != nil {
			return "", fmt.Errorf("scan interaction row: %w", err)
		}
		date := time.Unix(ts, 0).UTC().Format("2006-01-02")
		parts = append(parts, fmt.Sprintf("data: %s - resumo: %s", date, strings.TrimSpace(summary.String)))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate interaction rows: %w", err)
	}

	if len(parts) == 0 {
		return "Não há nenhuma interação até o momento", nil
	}
	return strings.Join(parts, "; "), nil
}

// WeeklySummaries renders the weekly report summaries for an email.
func (s *SQLiteStore) WeeklySummaries(ctx context.Context, email string, days int) (string, error) {
	if s.weekly == nil {
		return "", nil
	}

	query := `
		SELECT summary, timestamp
		FROM resumos
		WHERE employee_email = ? AND timestamp >= ?
		ORDER BY timestamp ASC`

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()
	rows, err := s.weekly.QueryContext(ctx, query, email, cutoff)
	if err != nil {
		return "", fmt.Errorf("query weekly summaries: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var summary sql.NullString
		var ts int64
		if err := rows.Scan(&summary, &ts); err != nil {
			return "", fmt.Errorf("scan weekly row: %w", err)
		}
		text := strings.TrimSpace(summary.String)
		if text == "" {
			continue
		}
		date := time.Unix(ts, 0).UTC().Format("02/01/2006")
		lines = append(lines, fmt.Sprintf("resumo da semana %s - %s", date, text))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate weekly rows: %w", err)
	}

	return strings.Join(lines, "\n"), nil
}

// LatestFacts returns the newest row per tagged category label for an email.
func (s *SQLiteStore) LatestFacts(ctx context.Context, email string, maxAgeDays int) ([]domain.Fact, error) {
	table, err := s.resolveFactTable(ctx)
	if err != nil {
		return nil, err
	}

	// NULL dates survive the age filter; the aggregator decides what an
	// undated fact is worth. DESC ordering puts NULLs last, so the first row
	// per label is the newest dated one.
	query := fmt.Sprintf(`
		SELECT trim(lower(informacao)), descricao, data
		FROM %q
		WHERE email = ? AND (data IS NULL OR data >= ?)
		ORDER BY trim(lower(informacao)), data DESC`, table)

	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays).Unix()
	rows, err := s.db.QueryContext(ctx, query, email, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query latest facts: %w", err)
	}
	defer rows.Close()

	var facts []domain.Fact
	seen := make(map[string]bool)
	for rows.Next() {
		var label string
		var desc sql.NullString
		var ts sql.NullInt64
		if err := rows.Scan(&label, &desc, &ts); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		if seen[label] {
			continue
		}
		seen[label] = true

		fact := domain.Fact{Category: label, Description: strings.TrimSpace(desc.String)}
		if ts.Valid {
			t := time.Unix(ts.Int64, 0).UTC()
			fact.Date = &t
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact rows: %w", err)
	}

	return facts, nil
}

// resolveFactTable finds the tagged-facts table: configured override first,
// then the conventional name, then a scan for any table carrying the
// email/informacao/descricao/data columns.
func (s *SQLiteStore) resolveFactTable(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.factTable != "" {
		return s.factTable, nil
	}

	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND lower(name) = lower(?)
		LIMIT 1`, defaultFactTable).Scan(&name)
	if err == nil {
		s.factTable = name
		return name, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("discover fact table: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		candidates = append(candidates, t)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate table names: %w", err)
	}

	for _, t := range candidates {
		ok, err := s.hasFactColumns(ctx, t)
		if err != nil {
			return "", err
		}
		if ok {
			s.factTable = t
			return t, nil
		}
	}

	return "", fmt.Errorf("no table with email/informacao/descricao/data columns; set DB_TABLE")
}

func (s *SQLiteStore) hasFactColumns(ctx context.Context, table string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	want := map[string]bool{"email": false, "informacao": false, "descricao": false, "data": false}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan column info: %w", err)
		}
		if _, ok := want[strings.ToLower(name)]; ok {
			want[strings.ToLower(name)] = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate column info: %w", err)
	}

	for _, found := range want {
		if !found {
			return false, nil
		}
	}
	return true, nil
}
