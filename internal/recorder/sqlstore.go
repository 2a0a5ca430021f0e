package recorder

import (
	"database/sql"
	"embed"
	"encoding/json"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLStore is the relational alternative to DiskStore (spec.md §4.6:
// "a table in a relational store"), backed by modernc.org/sqlite's
// pure-Go driver so this module never needs cgo.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens dsn (a sqlite file path, or ":memory:") and
// applies pending migrations via goose.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apierrors.NewInternalError("open recording database", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, apierrors.NewInternalError("set migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, apierrors.NewInternalError("apply recording migrations", err)
	}

	return &SQLStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Put upserts exchange by request key.
func (s *SQLStore) Put(key string, exchange *model.RecordedExchange) error {
	data, err := json.Marshal(exchange)
	if err != nil {
		return apierrors.NewInternalError("marshal recorded exchange", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO recorded_exchanges (request_key, version, exchange)
		 VALUES (?, ?, ?)
		 ON CONFLICT(request_key) DO UPDATE SET version = excluded.version, exchange = excluded.exchange`,
		key, exchange.Version, string(data),
	)
	if err != nil {
		return apierrors.NewInternalError("write recorded exchange", err)
	}
	return nil
}

// Get looks up the exchange for key.
func (s *SQLStore) Get(key string) (*model.RecordedExchange, bool, error) {
	row := s.db.QueryRow(`SELECT version, exchange FROM recorded_exchanges WHERE request_key = ?`, key)

	var version int
	var data string
	if err := row.Scan(&version, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apierrors.NewInternalError("read recorded exchange", err)
	}
	if version != model.CurrentRecordingVersion {
		return nil, false, nil
	}

	var exchange model.RecordedExchange
	if err := json.Unmarshal([]byte(data), &exchange); err != nil {
		return nil, false, apierrors.NewInternalError("unmarshal recorded exchange", err)
	}
	return &exchange, true, nil
}
