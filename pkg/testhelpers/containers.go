package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
)

// PostgresImage is the image used for integration tests.
const PostgresImage = "postgres:16-alpine"

const (
	testUser     = "ekaya"
	testPassword = "test_password"
	testDatabase = "postgres"
	macroDBName  = "ekaya_macro_test"
)

// TestDB holds a shared test database container and a superuser pool on the
// default database.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
	Host      string
	Port      string
}

// ConnStrFor returns a connection string for another database in the container.
func (t *TestDB) ConnStrFor(user, password, dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, t.Host, t.Port, dbName)
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		// postgres logs this line twice: once for the init server, once for the real one
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	testDB := &TestDB{
		Container: container,
		Host:      host,
		Port:      port.Port(),
	}
	testDB.ConnStr = testDB.ConnStrFor(testUser, testPassword, testDatabase)

	pool, err := pgxpool.New(ctx, testDB.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}

	testDB.Pool = pool
	return testDB, nil
}

// MacroDB holds a migrated database for repository, service and migration tests.
type MacroDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	sharedMacroDB     *MacroDB
	sharedMacroDBOnce sync.Once
	sharedMacroDBErr  error
)

// GetMacroDB returns a shared database with all migrations applied.
// Tests must clean up the rows they create; the schema is reused across tests.
func GetMacroDB(t *testing.T) *MacroDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	testDB := GetTestDB(t)

	sharedMacroDBOnce.Do(func() {
		sharedMacroDB, sharedMacroDBErr = setupMacroDB(testDB)
	})

	if sharedMacroDBErr != nil {
		t.Fatalf("Failed to setup macro database: %v", sharedMacroDBErr)
	}

	return sharedMacroDB
}

func setupMacroDB(testDB *TestDB) (*MacroDB, error) {
	ctx := context.Background()

	if _, err := testDB.Pool.Exec(ctx, "CREATE DATABASE "+macroDBName); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", macroDBName, err)
	}

	connStr := testDB.ConnStrFor(testUser, testPassword, macroDBName)

	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to macro database: %w", err)
	}

	return &MacroDB{
		DB:      db,
		ConnStr: connStr,
	}, nil
}

// WithScope returns a context carrying a job-scoped connection on the macro database.
// The scope is released when the test finishes.
func (m *MacroDB) WithScope(t *testing.T, job string) context.Context {
	t.Helper()

	scope, err := m.DB.WithJob(context.Background(), job)
	if err != nil {
		t.Fatalf("Failed to acquire scoped connection: %v", err)
	}
	t.Cleanup(scope.Close)

	return database.SetScope(context.Background(), scope)
}
