//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
)

// scopeConn returns the scoped connection carried by ctx.
func scopeConn(t *testing.T, ctx context.Context) *pgxpool.Conn {
	t.Helper()
	scope, ok := database.GetScope(ctx)
	if !ok {
		t.Fatal("no database scope in context")
	}
	return scope.Conn
}
