package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:dosera.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/dosera?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// "precision" is quoted everywhere: reserved in Postgres.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS units (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ascii_name TEXT NOT NULL UNIQUE,
  "precision" INTEGER DEFAULT NULL,
  accepted_answer TEXT NOT NULL CHECK(json_valid(accepted_answer))
);

CREATE TABLE IF NOT EXISTS course (
  course_code TEXT PRIMARY KEY NOT NULL,
  course_name TEXT NOT NULL,
  question_types TEXT CHECK(question_types IS NULL OR json_valid(question_types)),
  num_questions INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS medicine (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  namn TEXT UNIQUE NOT NULL,
  fass_link TEXT NOT NULL,
  variating_values TEXT CHECK(variating_values IS NULL OR json_valid(variating_values))
);

CREATE TABLE IF NOT EXISTS qtype (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS question_data (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question TEXT NOT NULL,
  answer_unit_id INTEGER NOT NULL REFERENCES units(id),
  answer_formula TEXT NOT NULL,
  variating_values TEXT NOT NULL,
  course_codes TEXT NOT NULL CHECK(json_valid(course_codes)),
  question_type_id INTEGER NOT NULL REFERENCES qtype(id),
  hints TEXT NOT NULL DEFAULT '[]' CHECK(json_valid(hints))
);

CREATE TABLE IF NOT EXISTS answer_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL,
  correct INTEGER NOT NULL CHECK(correct IN (1, -1)),
  course_code TEXT NOT NULL,
  date INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
  id TEXT PRIMARY KEY,
  feedback_text TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS units (
  id BIGSERIAL PRIMARY KEY,
  ascii_name TEXT NOT NULL UNIQUE,
  "precision" INTEGER DEFAULT NULL,
  accepted_answer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS course (
  course_code TEXT PRIMARY KEY,
  course_name TEXT NOT NULL,
  question_types TEXT,
  num_questions INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS medicine (
  id BIGSERIAL PRIMARY KEY,
  namn TEXT UNIQUE NOT NULL,
  fass_link TEXT NOT NULL,
  variating_values TEXT
);

CREATE TABLE IF NOT EXISTS qtype (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS question_data (
  id BIGSERIAL PRIMARY KEY,
  question TEXT NOT NULL,
  answer_unit_id BIGINT NOT NULL REFERENCES units(id),
  answer_formula TEXT NOT NULL,
  variating_values TEXT NOT NULL,
  course_codes TEXT NOT NULL,
  question_type_id BIGINT NOT NULL REFERENCES qtype(id),
  hints TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS answer_history (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL,
  correct INTEGER NOT NULL CHECK(correct IN (1, -1)),
  course_code TEXT NOT NULL,
  date BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
  id TEXT PRIMARY KEY,
  feedback_text TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
