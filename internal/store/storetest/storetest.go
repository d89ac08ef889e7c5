// Package storetest provides throwaway databases for tests.
//
// SQLite in memory is the default. Set TEST_DB_DRIVER=postgres to run the
// same tests against a PostgreSQL container.
package storetest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	container "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/store"
)

// NewDB returns a migrated, empty database that is torn down with the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	if os.Getenv("TEST_DB_DRIVER") == "postgres" {
		return newPostgres(t)
	}
	return newSqlite(t)
}

func newSqlite(t testing.TB) *gorm.DB {
	t.Helper()

	uniqueDSN := fmt.Sprintf("file:memdb%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.OpenSqlite(uniqueDSN)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := container.Run(ctx,
		"postgres:16-alpine",
		container.WithDatabase("postgres"),
		container.WithUsername("postgres"),
		container.WithPassword("postgres"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("database system is ready to accept connections"),
				wait.ForListeningPort("5432/tcp"),
			)))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("terminating postgres container: %v", err)
		}
	})

	url, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := store.OpenPostgres(url)
	require.NoError(t, err)
	return db
}
