package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Migration represents a single versioned schema change that Sync cannot
// express, such as a data backfill or a column rename.
type Migration struct {
	Version     int64
	Description string
	Up          func(ctx context.Context, tx *Tx) error
	Down        func(ctx context.Context, tx *Tx) error
}

type migrationRecord struct {
	Version     int64     `tabula:"pk"`
	Description string    `tabula:"size:255"`
	AppliedAt   time.Time `tabula:"notnull"`
}

func (migrationRecord) TableName() string { return "tabula_migrations" }

// Migrator manages database migrations and history.
type Migrator struct {
	db      *DB
	history map[int64]bool
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{
		db:      db,
		history: make(map[int64]bool),
	}
}

// Init creates the history table if needed and loads the applied versions.
func (m *Migrator) Init(ctx context.Context) error {
	if err := m.db.Schema().CreateTableIfNotExisting(ctx, migrationRecord{}); err != nil {
		return fmt.Errorf("failed to initialize migration table: %w", err)
	}

	cur, err := Select[migrationRecord](ctx, m.db, "")
	if err != nil {
		return fmt.Errorf("failed to fetch migration history: %w", err)
	}
	records, err := cur.Collect()
	if err != nil {
		return fmt.Errorf("failed to fetch migration history: %w", err)
	}
	for _, r := range records {
		m.history[r.Version] = true
	}
	return nil
}

// Applied returns the applied versions in ascending order.
func (m *Migrator) Applied() []int64 {
	versions := make([]int64, 0, len(m.history))
	for v := range m.history {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// Migrate executes, in version order, the migrations that haven't been applied yet.
func (m *Migrator) Migrate(ctx context.Context, migrations ...*Migration) error {
	if err := m.Init(ctx); err != nil {
		return err
	}

	sorted := append([]*Migration(nil), migrations...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	for _, mig := range sorted {
		if m.history[mig.Version] {
			continue
		}

		err := m.db.Transaction(ctx, func(tx *Tx) error {
			if mig.Up != nil {
				if err := mig.Up(ctx, tx); err != nil {
					return err
				}
			}
			return tx.Insert(ctx, &migrationRecord{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			})
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Description, err)
		}

		m.history[mig.Version] = true
		m.db.logger.Info("applied migration %d (%s)", mig.Version, mig.Description)
	}

	return nil
}

// Rollback rolls back one applied migration.
func (m *Migrator) Rollback(ctx context.Context, mig *Migration) error {
	if !m.history[mig.Version] {
		return fmt.Errorf("migration %d not applied", mig.Version)
	}

	err := m.db.Transaction(ctx, func(tx *Tx) error {
		if mig.Down != nil {
			if err := mig.Down(ctx, tx); err != nil {
				return err
			}
		}
		_, err := tx.Delete(ctx, &migrationRecord{Version: mig.Version})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to rollback migration %d (%s): %w", mig.Version, mig.Description, err)
	}

	delete(m.history, mig.Version)
	return nil
}
