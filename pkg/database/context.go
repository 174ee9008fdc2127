package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for the job-scoped database connection.
	ScopeKey contextKey = "dbScope"
)

// GetScope retrieves the job-scoped connection from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok
}

// SetScope stores the job-scoped connection in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeProvider creates job-scoped contexts for database operations.
type ScopeProvider interface {
	WithScope(ctx context.Context, job string) (context.Context, func(), error)
}

type poolScopeProvider struct {
	db *DB
}

// NewScopeProvider creates a ScopeProvider backed by the pool.
func NewScopeProvider(db *DB) ScopeProvider {
	return &poolScopeProvider{db: db}
}

// WithScope returns a context carrying a fresh connection for job.
// The cleanup function must be called when the scope is no longer needed.
func (p *poolScopeProvider) WithScope(ctx context.Context, job string) (context.Context, func(), error) {
	scope, err := p.db.WithJob(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	return SetScope(ctx, scope), func() { scope.Close() }, nil
}
