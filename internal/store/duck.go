package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"

	"github.com/file-parser/backend/internal/models"
)

// DuckStore is a DuckDB-backed Store. A single file database keeps
// records durable across restarts without an external server.
type DuckStore struct {
	db     *sql.DB
	dbPath string

	// DuckDB allows one writer; serializing updates here also gives
	// the read-modify-write in Update its atomicity.
	mu sync.Mutex
}

// NewDuckStore opens (or creates) the database at dbPath and ensures
// the files table exists.
func NewDuckStore(dbPath string) (*DuckStore, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id            VARCHAR PRIMARY KEY,
			original_name VARCHAR NOT NULL,
			size          BIGINT NOT NULL,
			type_tag      VARCHAR NOT NULL,
			status        VARCHAR NOT NULL,
			progress      INTEGER NOT NULL,
			content       VARCHAR,
			error         VARCHAR,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating files table: %w", err)
	}

	return &DuckStore{db: db, dbPath: dbPath}, nil
}

var _ Store = (*DuckStore)(nil)

// Create inserts a new record.
func (s *DuckStore) Create(ctx context.Context, f *models.File) (*models.File, error) {
	rec := f.Clone()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = models.StatusUploading
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	content, err := marshalContent(rec.Content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (id, original_name, size, type_tag, status, progress, content, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OriginalName, rec.Size, rec.TypeTag,
		string(rec.Status), rec.Progress, content, nullString(rec.Error),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting file record: %w", err)
	}

	return rec, nil
}

// Get retrieves a record by id.
func (s *DuckStore) Get(ctx context.Context, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, size, type_tag, status, progress, content, error, created_at, updated_at
		FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// Update applies a partial mutation. The read-modify-write runs under
// the store mutex so status and progress commit together.
func (s *DuckStore) Update(ctx context.Context, id string, upd FileUpdate) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, size, type_tag, status, progress, content, error, created_at, updated_at
		FROM files WHERE id = ?`, id)
	rec, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(rec, upd); err != nil {
		return nil, err
	}

	applyUpdate(rec, upd)
	rec.UpdatedAt = time.Now().UTC()

	content, err := marshalContent(rec.Content)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, progress = ?, content = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(rec.Status), rec.Progress, content, nullString(rec.Error), rec.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating file record: %w", err)
	}

	return rec, nil
}

// Delete removes a record. Returns false when no record existed.
func (s *DuckStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting file record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns records newest first plus the total matching count.
func (s *DuckStore) List(ctx context.Context, filter ListFilter) ([]*models.File, int, error) {
	where := ""
	args := []any{}
	if filter.Status != nil {
		where = " WHERE status = ?"
		args = append(args, string(*filter.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting file records: %w", err)
	}

	query := `
		SELECT id, original_name, size, type_tag, status, progress, content, error, created_at, updated_at
		FROM files` + where + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing file records: %w", err)
	}
	defer rows.Close()

	files := []*models.File{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return files, total, nil
}

// Close closes the underlying database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.File, error) {
	var (
		rec      models.File
		status   string
		content  sql.NullString
		errorMsg sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.OriginalName, &rec.Size, &rec.TypeTag,
		&status, &rec.Progress, &content, &errorMsg,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning file record: %w", err)
	}

	rec.Status = models.FileStatus(status)
	rec.Error = errorMsg.String
	if content.Valid && content.String != "" {
		if err := json.Unmarshal([]byte(content.String), &rec.Content); err != nil {
			return nil, fmt.Errorf("decoding stored content: %w", err)
		}
	}
	return &rec, nil
}

func marshalContent(content map[string]any) (sql.NullString, error) {
	if content == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(content)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding content: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
