package chatlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/oppuna-lab/oppuna/pkg/domain/model"
	"github.com/oppuna-lab/oppuna/pkg/domain/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_logs_user_created
	ON chat_logs (user_id, created_at DESC);
`

// SQLite stores the plain chat transcript in an embedded SQLite database.
// It backs the history endpoints and the retention worker; embeddings never
// touch this table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the transcript database at path.
// Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chat log database", goerr.V("path", path))
	}

	// modernc.org/sqlite serializes access itself, but a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize chat log schema", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

// Append stores one chat turn.
func (s *SQLite) Append(ctx context.Context, record *model.MemoryRecord) error {
	if record == nil {
		return goerr.New("record is nil")
	}
	if record.UserID == "" {
		return goerr.New("record user ID is required")
	}

	id := record.ID
	if id == "" {
		id = model.NewMemoryRecordID()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (id, user_id, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(id), record.UserID, record.Role.String(), record.Text,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to append chat log", goerr.V("userID", record.UserID))
	}

	return nil
}

// History returns up to limit turns for the user, newest first.
func (s *SQLite) History(ctx context.Context, userID string, limit int) ([]*model.MemoryRecord, error) {
	if limit <= 0 {
		return []*model.MemoryRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, text, created_at FROM chat_logs
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query chat logs", goerr.V("userID", userID))
	}
	defer rows.Close()

	records := make([]*model.MemoryRecord, 0, limit)
	for rows.Next() {
		var id, role, text, createdAt string
		if err := rows.Scan(&id, &role, &text, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chat log row", goerr.V("userID", userID))
		}

		rec := &model.MemoryRecord{
			ID:     model.MemoryRecordID(id),
			UserID: userID,
			Text:   text,
		}
		rec.Role, _ = types.ParseRole(role)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chat logs", goerr.V("userID", userID))
	}

	return records, nil
}

// Clear removes all turns for the user.
func (s *SQLite) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE user_id = ?`, userID,
	); err != nil {
		return goerr.Wrap(err, "failed to clear chat logs", goerr.V("userID", userID))
	}
	return nil
}

// PruneBefore deletes turns older than cutoff and returns how many rows
// were removed.
func (s *SQLite) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_logs WHERE created_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to prune chat logs", goerr.V("cutoff", cutoff))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count pruned chat logs")
	}
	return removed, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close chat log database")
	}
	return nil
}
