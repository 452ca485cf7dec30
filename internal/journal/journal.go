/*
Package journal keeps an optional SQLite record of past invocations.

Each run that reaches a terminal state adds one row: the target command,
how many bytes were buffered, which transfer backend moved them and how
the run ended. The journal is opened, written and closed within a single
invocation, so concurrent invocations share the file through SQLite's own
locking.
*/
package journal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the journal's file name inside its directory.
const FileName = "journal.db"

// Outcome of a run that reached the exec step.
const OutcomeExec = "exec"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded invocation.
type Entry struct {
	Started time.Time
	Prefix  string
	Command string
	Backend string
	Bytes   int64
	Elapsed time.Duration
	Outcome string
}

// Journal is an open journal database.
type Journal struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	logger *slog.Logger
}

// DefaultPath returns the journal location under the user's cache
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seekpipe", FileName), nil
}

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:gosec // journal directory
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{conn: conn, logger: logger}
	if err := j.ensureSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.conn.Close()
}

// Record appends an entry.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := sqlitex.Execute(j.conn, `
		INSERT INTO invocations (started, prefix, command, backend, bytes, elapsed_us, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, &sqlitex.ExecOptions{
		Args: []any{
			e.Started.UTC().Format(timeLayout),
			e.Prefix,
			e.Command,
			e.Backend,
			e.Bytes,
			e.Elapsed.Microseconds(),
			e.Outcome,
		},
	})
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	j.logger.Debug("journal entry recorded", "command", e.Command, "outcome", e.Outcome)
	return nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Entry
	err := sqlitex.Execute(j.conn, `
		SELECT started, prefix, command, backend, bytes, elapsed_us, outcome
		FROM invocations
		ORDER BY started DESC, id DESC LIMIT ?
	`, &sqlitex.ExecOptions{
		Args: []any{n},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			started, err := time.Parse(timeLayout, stmt.ColumnText(0))
			if err != nil {
				return fmt.Errorf("parse started: %w", err)
			}
			out = append(out, Entry{
				Started: started,
				Prefix:  stmt.ColumnText(1),
				Command: stmt.ColumnText(2),
				Backend: stmt.ColumnText(3),
				Bytes:   stmt.ColumnInt64(4),
				Elapsed: time.Duration(stmt.ColumnInt64(5)) * time.Microsecond,
				Outcome: stmt.ColumnText(6),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	return out, nil
}

// Prune deletes entries that started before cutoff and returns how many
// were removed.
func (j *Journal) Prune(cutoff time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := sqlitex.Execute(j.conn, `DELETE FROM invocations WHERE started < ?`, &sqlitex.ExecOptions{
		Args: []any{cutoff.UTC().Format(timeLayout)},
	})
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	return j.conn.Changes(), nil
}

// Write prints entries as an aligned table.
func Write(w io.Writer, entries []Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOUTCOME\tBACKEND\tBYTES\tELAPSED\tCOMMAND")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.Started.Local().Format(time.DateTime),
			e.Outcome,
			dash(e.Backend),
			e.Bytes,
			e.Elapsed.Round(time.Microsecond),
			e.Command,
		)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ensureSchema creates the journal table.
func (j *Journal) ensureSchema() error {
	if err := sqlitex.ExecuteTransient(j.conn, "PRAGMA busy_timeout = 5000;", nil); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return sqlitex.ExecuteScript(j.conn, `
		CREATE TABLE IF NOT EXISTS invocations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			started    TEXT NOT NULL,
			prefix     TEXT NOT NULL,
			command    TEXT NOT NULL,
			backend    TEXT NOT NULL DEFAULT '',
			bytes      INTEGER NOT NULL DEFAULT 0,
			elapsed_us INTEGER NOT NULL DEFAULT 0,
			outcome    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS invocations_started ON invocations (started);
	`, nil)
}
