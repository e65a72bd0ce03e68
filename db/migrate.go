package db

import (
	"database/sql"
	"embed"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/atomdb/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationDir = "sqlite/migrations"

// Migration is one embedded schema step, named NNN_description.sql.
type Migration struct {
	Version string
	File    string
}

// MigrationReport describes one Migrate run.
type MigrationReport struct {
	// Applied lists the versions this run applied, in order.
	Applied []string
	// Current is the newest version recorded in schema_migrations.
	Current string
}

// Migrations lists the embedded migrations in the order they apply.
func Migrations() ([]Migration, error) {
	entries, err := migrations.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, errors.Newf("migration %s is not named NNN_description.sql", e.Name())
		}
		out = append(out, Migration{Version: version, File: e.Name()})
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// SchemaVersion is the newest migration embedded in this build.
func SchemaVersion() string {
	ms, err := Migrations()
	if err != nil || len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1].Version
}

// Migrate applies every pending migration, each in its own transaction.
// It refuses a database that already records a version newer than this
// build knows, since the atom documents may no longer read back.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) (*MigrationReport, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ms, err := Migrations()
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 || ms[0].Version != "000" {
		return nil, errors.New("migration 000 must create schema_migrations")
	}

	// 000 is idempotent and creates the table the others are recorded in
	if err := apply(db, ms[0]); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return nil, err
	}
	report := &MigrationReport{}
	if !applied["000"] {
		if err := record(db, ms[0]); err != nil {
			return nil, err
		}
		report.Applied = append(report.Applied, ms[0].Version)
	}

	latest := ms[len(ms)-1].Version
	for v := range applied {
		if v > latest {
			return nil, errors.WithHint(
				errors.Newf("database schema version %s is newer than this build (%s)", v, latest),
				"upgrade atomdb or point database.path at another file")
		}
	}

	for _, m := range ms[1:] {
		if applied[m.Version] {
			logger.Debugw("Skipping migration (already applied)", "migration", m.File)
			continue
		}
		logger.Infow("Applying migration", "migration", m.File, "version", m.Version)
		if err := apply(db, m); err != nil {
			return nil, err
		}
		report.Applied = append(report.Applied, m.Version)
	}

	report.Current = latest
	logger.Infow("Migrations complete",
		"applied", report.Applied,
		"schema_version", report.Current,
	)
	return report, nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, Wrap(err, "scan schema_migrations")
		}
		out[v] = true
	}
	return out, Wrap(rows.Err(), "read schema_migrations")
}

// apply runs m and, except for 000, records it in the same transaction.
func apply(db *sql.DB, m Migration) error {
	body, err := migrations.ReadFile(path.Join(migrationDir, m.File))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.File)
	}
	tx, err := db.Begin()
	if err != nil {
		return Wrapf(err, "begin %s", m.File)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return Wrapf(err, "execute %s", m.File)
	}
	if m.Version != "000" {
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return Wrapf(err, "record %s", m.File)
		}
	}
	return Wrapf(tx.Commit(), "commit %s", m.File)
}

func record(db *sql.DB, m Migration) error {
	_, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version)
	return Wrapf(err, "record %s", m.File)
}
