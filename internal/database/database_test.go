package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("lib", "p@ss", "db", "3306", "library")

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "lib", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.Equal(t, "library", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "UTC", cfg.Loc.String())
}

func TestMigrate(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "mysql")

	for _, table := range []string{"users", "refresh_tokens", "books", "borrowings"} {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + table + " ").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "mysql")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("denied"))
	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "migration 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaChecks(t *testing.T) {
	var books, borrowings string
	for _, s := range schema {
		switch {
		case containsTable(s, "books"):
			books = s
		case containsTable(s, "borrowings"):
			borrowings = s
		}
	}
	assert.Contains(t, books, "CHECK (inventory >= 0)")
	assert.Contains(t, books, "CHECK (daily_fee >= 0)")
	assert.Contains(t, borrowings, "CHECK (expected_return_date >= borrow_date)")
	assert.NotContains(t, borrowings, "actual_return_date <= expected_return_date")
}

func containsTable(stmt, table string) bool {
	return strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+table+" ")
}
