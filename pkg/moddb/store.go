package moddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/modhost/pkg/plugins"
)

const schema = `CREATE TABLE IF NOT EXISTS mod_records (
	id            TEXT PRIMARY KEY,
	display_id    TEXT NOT NULL,
	status        TEXT NOT NULL,
	status_reason TEXT NOT NULL DEFAULT '',
	page_url      TEXT NOT NULL DEFAULT '',
	upper_version TEXT NOT NULL DEFAULT ''
)`

const selectColumns = `SELECT display_id, status, status_reason, page_url, upper_version FROM mod_records`

// ErrInvalidRecord is returned for records that can't be stored.
var ErrInvalidRecord = errors.New("invalid mod record")

// Store keeps the host's compatibility records in SQLite. Lookups are served
// from memory after Refresh.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger

	mu    sync.RWMutex
	cache map[string]*plugins.DataRecord
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mod database: %w", err)
	}
	store, err := NewStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database and creates the schema.
func NewStore(ctx context.Context, db *sql.DB, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create mod database schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger,
		cache:  make(map[string]*plugins.DataRecord),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Refresh reloads every record into memory.
func (s *Store) Refresh(ctx context.Context) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	cache := make(map[string]*plugins.DataRecord, len(records))
	for _, record := range records {
		cache[plugins.NormalizeID(record.ID)] = record
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	s.logger.Debugf("Loaded %d mod database record(s).", len(records))
	return nil
}

// Lookup returns the cached record for id, or nil.
func (s *Store) Lookup(id string) *plugins.DataRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.cache[plugins.NormalizeID(id)]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

// Get reads one record from the database. It returns nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*plugins.DataRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, plugins.NormalizeID(id))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mod record %s: %w", id, err)
	}
	return record, nil
}

// List returns every record ordered by id.
func (s *Store) List(ctx context.Context) ([]*plugins.DataRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mod records: %w", err)
	}
	defer rows.Close()

	var records []*plugins.DataRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mod record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*plugins.DataRecord, error) {
	var (
		record plugins.DataRecord
		status string
	)
	if err := row.Scan(&record.ID, &status, &record.StatusReason, &record.PageURL, &record.UpperVersion); err != nil {
		return nil, err
	}
	record.Status = plugins.DataRecordStatus(status)
	return &record, nil
}

// Validate checks a record before it is stored.
func Validate(record *plugins.DataRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	switch record.Status {
	case plugins.RecordOK, plugins.RecordAssumeCompatible, plugins.RecordAssumeBroken, plugins.RecordObsolete:
	default:
		return fmt.Errorf("%w: unknown status %q for %s", ErrInvalidRecord, record.Status, record.ID)
	}
	if record.UpperVersion != "" && !plugins.IsValidVersion(record.UpperVersion) {
		return fmt.Errorf("%w: invalid upper version %q for %s", ErrInvalidRecord, record.UpperVersion, record.ID)
	}
	return nil
}

// Upsert inserts or replaces a record and updates the cache.
func (s *Store) Upsert(ctx context.Context, record *plugins.DataRecord) error {
	if err := Validate(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO mod_records (id, display_id, status, status_reason, page_url, upper_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_id = excluded.display_id,
			status = excluded.status,
			status_reason = excluded.status_reason,
			page_url = excluded.page_url,
			upper_version = excluded.upper_version`,
		plugins.NormalizeID(record.ID), strings.TrimSpace(record.ID), string(record.Status),
		record.StatusReason, record.PageURL, record.UpperVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to store mod record %s: %w", record.ID, err)
	}

	copied := *record
	s.mu.Lock()
	s.cache[plugins.NormalizeID(record.ID)] = &copied
	s.mu.Unlock()
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mod_records WHERE id = ?`, plugins.NormalizeID(id)); err != nil {
		return fmt.Errorf("failed to delete mod record %s: %w", id, err)
	}
	s.mu.Lock()
	delete(s.cache, plugins.NormalizeID(id))
	s.mu.Unlock()
	return nil
}

// recordFile is the YAML seed format.
type recordFile struct {
	Records []struct {
		ID           string `yaml:"id"`
		Status       string `yaml:"status"`
		StatusReason string `yaml:"reason"`
		PageURL      string `yaml:"page_url"`
		UpperVersion string `yaml:"upper_version"`
	} `yaml:"records"`
}

// Import stores every record of a YAML seed file in one transaction and
// returns how many were written.
//
//	records:
//	  - id: alice.Farming
//	    status: assume_broken
//	    reason: uses the removed tick API
//	    upper_version: 1.4.0
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var file recordFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return 0, fmt.Errorf("failed to parse mod records: %w", err)
	}

	records := make([]*plugins.DataRecord, 0, len(file.Records))
	for _, entry := range file.Records {
		record := &plugins.DataRecord{
			ID:           entry.ID,
			Status:       plugins.DataRecordStatus(entry.Status),
			StatusReason: entry.StatusReason,
			PageURL:      entry.PageURL,
			UpperVersion: entry.UpperVersion,
		}
		if err := Validate(record); err != nil {
			return 0, err
		}
		records = append(records, record)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, record := range records {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO mod_records (id, display_id, status, status_reason, page_url, upper_version)
			VALUES (?, ?, ?, ?, ?, ?)`,
			plugins.NormalizeID(record.ID), strings.TrimSpace(record.ID), string(record.Status),
			record.StatusReason, record.PageURL, record.UpperVersion,
		); err != nil {
			return 0, fmt.Errorf("failed to import mod record %s: %w", record.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	s.mu.Lock()
	for _, record := range records {
		s.cache[plugins.NormalizeID(record.ID)] = record
	}
	s.mu.Unlock()
	return len(records), nil
}
