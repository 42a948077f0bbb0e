package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/config"
)

func TestDSN(t *testing.T) {
	t.Run("builds from fields with a default sslmode", func(t *testing.T) {
		dsn := DSN(&config.DatabaseConfig{Host: "db", Port: 5432, User: "irma", Password: "secret", Name: "irma"})
		assert.Equal(t, "host=db port=5432 user=irma password=secret dbname=irma sslmode=disable", dsn)
	})

	t.Run("prefers an explicit DSN", func(t *testing.T) {
		dsn := DSN(&config.DatabaseConfig{Host: "db", DSN: "postgres://u:p@h/irma"})
		assert.Equal(t, "postgres://u:p@h/irma", dsn)
	})
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t.Run("applies the schema", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		require.NoError(t, Migrate(context.Background(), db))
	})

	t.Run("wraps failures", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
			WillReturnError(errors.New("permission denied"))
		err := Migrate(context.Background(), db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to apply schema")
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
