package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Shelf struct {
	ID    int64 `tabula:"pk"`
	Label string
}

func TestMigratorAppliesInOrderOnce(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	var ran []int64
	migrations := []*Migration{
		{
			Version:     2,
			Description: "seed shelf",
			Up: func(ctx context.Context, tx *Tx) error {
				ran = append(ran, 2)
				return tx.Insert(ctx, &Shelf{ID: 1, Label: "top"})
			},
			Down: func(ctx context.Context, tx *Tx) error {
				_, err := tx.Delete(ctx, &Shelf{ID: 1})
				return err
			},
		},
		{
			Version:     1,
			Description: "create shelf",
			Up: func(ctx context.Context, tx *Tx) error {
				ran = append(ran, 1)
				_, err := tx.ExecContext(ctx, "CREATE TABLE shelf (id INTEGER PRIMARY KEY, label VARCHAR(255))")
				return err
			},
		},
	}

	m := NewMigrator(db)
	require.NoError(t, m.Migrate(ctx, migrations...))
	assert.Equal(t, []int64{1, 2}, ran)
	assert.Equal(t, []int64{1, 2}, m.Applied())

	again := NewMigrator(db)
	require.NoError(t, again.Migrate(ctx, migrations...))
	assert.Equal(t, []int64{1, 2}, ran)
	assert.Equal(t, []int64{1, 2}, again.Applied())

	require.NoError(t, again.Rollback(ctx, migrations[0]))
	assert.Equal(t, []int64{1}, again.Applied())
	_, err := Get[Shelf](ctx, db, 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.Error(t, again.Rollback(ctx, migrations[0]))
}

func TestMigratorStopsOnFailure(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	m := NewMigrator(db)
	err := m.Migrate(ctx,
		&Migration{Version: 1, Description: "ok"},
		&Migration{Version: 2, Description: "fails", Up: func(context.Context, *Tx) error { return boom }},
		&Migration{Version: 3, Description: "never"},
	)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int64{1}, m.Applied())

	fresh := NewMigrator(db)
	require.NoError(t, fresh.Init(ctx))
	assert.Equal(t, []int64{1}, fresh.Applied())
}
