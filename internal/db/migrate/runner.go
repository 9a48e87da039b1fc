// Package migrate applies the embedded schema with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
)

// Direction selects what Run does.
type Direction string

const (
	// Up applies every pending migration.
	Up Direction = "up"
	// Down rolls back the most recent migration.
	Down Direction = "down"
	// Reset rolls back every migration.
	Reset Direction = "reset"
)

// ParseDirection accepts up, down or reset in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down, Reset:
		return d, nil
	}
	return "", fmt.Errorf("direction must be up, down or reset, got %q", s)
}

// Result reports the schema version before and after Run. Changed is false when the
// database was already at the target.
type Result struct {
	From    uint
	To      uint
	Changed bool
}

// Run migrates the database at dsn in direction d.
func Run(dsn string, d Direction) (Result, error) {
	if dsn == "" {
		return Result{}, errors.New("DATABASE_URL is not set")
	}
	if _, err := ParseDirection(string(d)); err != nil {
		return Result{}, err
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return Result{}, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	m.Log = zerologAdapter{l: log.With().Str("component", "migrate").Logger()}

	var res Result
	if res.From, err = version(m); err != nil {
		return res, err
	}
	switch d {
	case Up:
		err = m.Up()
	case Down:
		err = m.Steps(-1)
	case Reset:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return res, fmt.Errorf("migrate %s: %w", d, err)
	}
	if res.To, err = version(m); err != nil {
		return res, err
	}
	res.Changed = res.From != res.To
	return res, nil
}

// version returns 0 for an empty schema and refuses to continue from a dirty one.
func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrate version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty; fix it and force the version", v)
	}
	return v, nil
}

type zerologAdapter struct {
	l zerolog.Logger
}

func (a zerologAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (a zerologAdapter) Verbose() bool {
	return a.l.GetLevel() <= zerolog.DebugLevel
}
