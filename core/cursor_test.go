package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/tabula/logger"
)

type Item struct {
	ID   int64 `tabula:"pk"`
	Name string
}

type FoundItem struct {
	ID    int64 `tabula:"pk"`
	found bool
}

func (f *FoundItem) AfterFind() error {
	f.found = true
	return nil
}

type fakeRows struct {
	cols      []string
	data      [][]any
	pos       int
	nextCalls int
	closed    int
	err       error
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (r *fakeRows) Next() bool {
	r.nextCalls++
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { r.closed++; return nil }

func itemMapper(t *testing.T, db *DB) *RecordMapper[Item] {
	t.Helper()
	rm, err := NewRecordMapper[Item](db)
	require.NoError(t, err)
	return rm
}

func TestCursorEmpty(t *testing.T) {
	db, mock := openMock(t, "sqlite3", nil)
	q := "SELECT `id`, `name` FROM `item`"
	prep := mock.ExpectPrepare(q)
	prep.ExpectQuery().WillReturnRows(sqlmock.NewRows([]string{"id", "name"})).RowsWillBeClosed()
	prep.WillBeClosed()

	cur, err := Select[Item](context.Background(), db, "")
	require.NoError(t, err)

	assert.False(t, cur.HasNext())
	assert.True(t, cur.Closed())
	_, err = cur.Next()
	assert.ErrorIs(t, err, ErrNoSuchElement)
	assert.NoError(t, cur.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorRows(t *testing.T) {
	db, mock := openMock(t, "sqlite3", nil)
	q := "SELECT `id`, `name` FROM `item` WHERE id > ?"
	prep := mock.ExpectPrepare(q)
	prep.ExpectQuery().WithArgs(0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b").
			AddRow(int64(3), "c")).
		RowsWillBeClosed()
	prep.WillBeClosed()

	cur, err := Select[Item](context.Background(), db, "id > ?", 0)
	require.NoError(t, err)

	var names []string
	for i := 0; i < 3; i++ {
		require.True(t, cur.HasNext())
		require.True(t, cur.HasNext())
		item, err := cur.Next()
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), item.ID)
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
	assert.False(t, cur.HasNext())
	assert.True(t, cur.Closed())
	_, err = cur.Next()
	assert.ErrorIs(t, err, ErrNoSuchElement)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorDoesNotAdvanceTwice(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	rows := &fakeRows{cols: []string{"id", "name"}, data: [][]any{{int64(1), "a"}, {int64(2), "b"}}}
	cur := NewCursor[Item](rows, nil, itemMapper(t, db))

	assert.True(t, cur.HasNext())
	assert.True(t, cur.HasNext())
	assert.Equal(t, 1, rows.nextCalls)

	first, err := cur.Next()
	require.NoError(t, err)
	second, err := cur.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, 2, rows.nextCalls)

	assert.False(t, cur.HasNext())
	assert.False(t, cur.HasNext())
	assert.Equal(t, 3, rows.nextCalls)
	assert.Equal(t, 1, rows.closed)

	cur.Close()
	assert.Equal(t, 1, rows.closed)
	assert.ErrorIs(t, cur.Remove(), errors.ErrUnsupported)
}

func TestCursorRecordsRowsError(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	rows := &fakeRows{cols: []string{"id"}, err: assert.AnError}
	cur := NewCursor[Item](rows, nil, itemMapper(t, db))

	items, err := cur.Collect()
	assert.Empty(t, items)
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, cur.Err(), assert.AnError)
}

func TestCursorBreakCloses(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	rows := &fakeRows{cols: []string{"id"}, data: [][]any{{int64(1)}, {int64(2)}, {int64(3)}}}
	cur := NewCursor[Item](rows, nil, itemMapper(t, db))

	for item, err := range cur.All() {
		require.NoError(t, err)
		assert.Equal(t, int64(1), item.ID)
		break
	}
	assert.True(t, cur.Closed())
	assert.Equal(t, 1, rows.closed)
}

func TestMapperSkipsUnknownColumns(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	l, buf := bufferLogger(logger.LogLevelWarn)
	db.SetLogger(l)

	rows := &fakeRows{
		cols: []string{"ID", "extra", "Name"},
		data: [][]any{{int64(1), "x", "a"}, {int64(2), "y", "b"}},
	}
	rm, err := NewRecordMapper[Item](db)
	require.NoError(t, err)
	items, err := NewCursor[Item](rows, nil, rm).Collect()
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, Item{ID: 2, Name: "b"}, *items[1])
	assert.Equal(t, 1, strings.Count(buf.String(), "column extra of item"))
}

func TestMapperReadFailure(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	rows := &fakeRows{cols: []string{"id", "name"}, data: [][]any{{"abc", "a"}}}
	cur := NewCursor[Item](rows, nil, itemMapper(t, db))

	_, err := cur.Next()
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "id", pe.Column)
	assert.Equal(t, "ID", pe.Field)
	assert.Equal(t, "item", pe.Table)
}

func TestMapperNullAndHook(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	rm, err := NewRecordMapper[FoundItem](db)
	require.NoError(t, err)

	got, err := rm.Map(&fakeRows{cols: []string{"id"}, data: [][]any{{nil}}, pos: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ID)
	assert.True(t, got.found)
}

func TestMapperTableIsSharedPerScope(t *testing.T) {
	lite, _ := openMock(t, "sqlite3", nil)
	pg, _ := openMock(t, "postgres", nil)

	a := itemMapper(t, lite)
	b := itemMapper(t, lite)
	c := itemMapper(t, pg)
	assert.Same(t, a.table, b.table)
	assert.NotSame(t, a.table, c.table)
	assert.Same(t, a.Metadata(), b.Metadata())
}

func TestQueryRejectsEmptySQL(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	_, err := Query[Item](context.Background(), db, "  ")
	assert.ErrorIs(t, err, ErrInvalidSQL)
}

func TestQueryPrepareFailure(t *testing.T) {
	db, mock := openMock(t, "sqlite3", nil)
	mock.ExpectPrepare("SELECT id FROM item").WillReturnError(assert.AnError)

	_, err := Query[Item](context.Background(), db, "SELECT id FROM item")
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "prepare", pe.Op)
	assert.Equal(t, "SELECT id FROM item", pe.Statement)
}
