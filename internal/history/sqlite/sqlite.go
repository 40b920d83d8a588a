package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/artasov/speechd/internal/history"
)

// Sink writes operation audit events to a SQLite database. It is the
// default sink: a single local file next to the install root.
type Sink struct {
	db *sql.DB
}

// New creates a SQLite sink.
// DSN formats:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" or ":memory:" (without prefix)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS operation_history(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		ok BOOLEAN NOT NULL,
		error TEXT NULL,
		phase TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	var errStr interface{}
	if e.Error != "" {
		errStr = e.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operation_history(op, ok, error, phase, started_at, finished_at)
		VALUES(?, ?, ?, ?, ?, ?);`,
		e.Op, e.OK, errStr, e.Phase, e.StartedAt.UTC(), e.FinishedAt.UTC())
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
