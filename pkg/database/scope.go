package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope is a pooled connection held for the duration of one job step.
// The connection is labelled with the job name so long-running ingest and
// validation sessions are identifiable in pg_stat_activity.
type Scope struct {
	Conn *pgxpool.Conn
	Job  string
}

// Close resets the session label and releases the connection to the pool.
// This MUST be called, normally with defer.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET application_name")
	s.Conn.Release()
}

// WithJob acquires a connection labelled with the job name.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithJob(ctx context.Context, job string) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('application_name', $1, false)", "ekaya-macro:"+job)
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &Scope{Conn: conn, Job: job}, nil
}
