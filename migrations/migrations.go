// Package migrations embeds the trips schema so commands and tests apply
// the same statements on PostgreSQL and SQLite.
package migrations

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Latest is the newest schema version
const Latest = "001_create_schema"

// Statements returns the individual statements of a migration.
// direction is "up" or "down".
func Statements(name, direction string) ([]string, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	content, err := files.ReadFile(name + "." + direction + ".sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	var statements []string
	for _, stmt := range strings.Split(string(content), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}
