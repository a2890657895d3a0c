// Package sqlite provides a durable, append-only ArtifactStore and
// TransitionLog backed by a single SQLite database. It is the production
// counterpart to the in-memory stores: artifacts and the state audit trail
// survive process restarts and can be inspected with any SQLite client.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hupe1980/sessionmesh/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	session_id TEXT NOT NULL,
	step       TEXT NOT NULL,
	payload    BLOB,
	status     TEXT NOT NULL,
	metadata   TEXT,
	created_at INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	PRIMARY KEY (session_id, step)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS transitions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	from_state TEXT,
	to_state   TEXT NOT NULL,
	metadata   TEXT,
	timestamp  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS transitions_session ON transitions (session_id, id);
`

// Options configures the SQLite store.
type Options struct {
	// PoolSize is the number of connections. SQLite serializes writes, so
	// 4 is plenty; extra connections only help concurrent reads.
	PoolSize int
	// OpTimeout bounds each store operation.
	OpTimeout time.Duration
}

// Store implements core.ArtifactStore and core.TransitionLog on one SQLite
// file. Safe for concurrent use; each operation takes its own pooled
// connection.
type Store struct {
	pool      *sqlitex.Pool
	opTimeout time.Duration
}

// Open creates (or opens) the database at path and ensures the schema
// exists. Use ":memory:" with PoolSize 1 for tests.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{PoolSize: 4, OpTimeout: 5 * time.Second}

	for _, fn := range optFns {
		fn(&opts)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: opts.PoolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}

	return &Store{pool: pool, opTimeout: opts.OpTimeout}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.pool.Close() }

// Put appends a new artifact record. A second artifact for the same
// (session, step) pair fails with DuplicateArtifactError.
func (s *Store) Put(a core.Artifact) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var metadata []byte
	if len(a.Metadata) > 0 {
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal artifact metadata: %w", err)
		}
	}

	// seq is assigned under SQLite's write serialization; created_at has
	// only microsecond-ish resolution and can collide within a burst.
	err = sqlitex.Execute(conn,
		"INSERT INTO artifacts (session_id, step, payload, status, metadata, created_at, seq) VALUES (?, ?, ?, ?, ?, ?, (SELECT IFNULL(MAX(seq), 0) + 1 FROM artifacts))",
		&sqlitex.ExecOptions{
			Args: []any{a.SessionID, a.Step, a.Payload, string(a.Status), metadata, createdAt.UnixNano()},
		})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintPrimaryKey {
			return &core.DuplicateArtifactError{SessionID: a.SessionID, Step: a.Step}
		}
		return fmt.Errorf("insert artifact: %w", err)
	}

	return nil
}

// Get returns the artifact for the (sessionID, step) pair.
func (s *Store) Get(sessionID, step string) (core.Artifact, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var out core.Artifact
	found := false
	err = sqlitex.Execute(conn,
		"SELECT session_id, step, payload, status, metadata, created_at FROM artifacts WHERE session_id = ? AND step = ?",
		&sqlitex.ExecOptions{
			Args: []any{sessionID, step},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				a, err := scanArtifact(stmt)
				if err != nil {
					return err
				}
				out = a
				return nil
			},
		})
	if err != nil {
		return core.Artifact{}, fmt.Errorf("query artifact: %w", err)
	}
	if !found {
		return core.Artifact{}, &core.MissingArtifactError{SessionID: sessionID, Step: step}
	}

	return out, nil
}

// List returns all artifacts recorded for the session in insertion order.
func (s *Store) List(sessionID string) ([]core.Artifact, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var out []core.Artifact
	err = sqlitex.Execute(conn,
		"SELECT session_id, step, payload, status, metadata, created_at FROM artifacts WHERE session_id = ? ORDER BY seq",
		&sqlitex.ExecOptions{
			Args: []any{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				a, err := scanArtifact(stmt)
				if err != nil {
					return err
				}
				out = append(out, a)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}

	return out, nil
}

// Append records one state transition in the durable audit trail.
func (s *Store) Append(t core.Transition) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var metadata []byte
	if len(t.Metadata) > 0 {
		metadata, err = json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("marshal transition metadata: %w", err)
		}
	}

	err = sqlitex.Execute(conn,
		"INSERT INTO transitions (session_id, from_state, to_state, metadata, timestamp) VALUES (?, ?, ?, ?, ?)",
		&sqlitex.ExecOptions{
			Args: []any{t.SessionID, t.From, t.To, metadata, t.Timestamp.UnixNano()},
		})
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}

	return nil
}

// BySession returns the session's transitions ordered by insertion.
func (s *Store) BySession(sessionID string) ([]core.Transition, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var out []core.Transition
	err = sqlitex.Execute(conn,
		"SELECT session_id, from_state, to_state, metadata, timestamp FROM transitions WHERE session_id = ? ORDER BY id",
		&sqlitex.ExecOptions{
			Args: []any{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t := core.Transition{
					SessionID: stmt.ColumnText(0),
					From:      stmt.ColumnText(1),
					To:        stmt.ColumnText(2),
					Timestamp: time.Unix(0, stmt.ColumnInt64(4)).UTC(),
				}
				if raw := stmt.ColumnText(3); raw != "" {
					if err := json.Unmarshal([]byte(raw), &t.Metadata); err != nil {
						return fmt.Errorf("unmarshal transition metadata: %w", err)
					}
				}
				out = append(out, t)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}

	return out, nil
}

func scanArtifact(stmt *sqlite.Stmt) (core.Artifact, error) {
	a := core.Artifact{
		SessionID: stmt.ColumnText(0),
		Step:      stmt.ColumnText(1),
		Status:    core.ArtifactStatus(stmt.ColumnText(3)),
		CreatedAt: time.Unix(0, stmt.ColumnInt64(5)).UTC(),
	}

	payload := make([]byte, stmt.ColumnLen(2))
	stmt.ColumnBytes(2, payload)
	a.Payload = payload

	if raw := stmt.ColumnText(4); raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.Metadata); err != nil {
			return core.Artifact{}, fmt.Errorf("unmarshal artifact metadata: %w", err)
		}
	}

	return a, nil
}
