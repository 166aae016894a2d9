package db

import (
	"database/sql"
	"fmt"

	"sacco/migrations"

	"github.com/pressly/goose/v3"
)

func Migrate(database *sql.DB, command string) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	var err error
	switch command {
	case "", "up":
		err = goose.Up(database, ".")
	case "down":
		err = goose.Down(database, ".")
	case "status":
		err = goose.Status(database, ".")
	default:
		return fmt.Errorf("unknown migrate command: %s", command)
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
