package generator

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrek82/tabula/model"
)

type Invoice struct {
	Number int64 `tabula:"pk generated:max(step=10)"`
	Title  string
}

type Ticket struct {
	Number int16 `tabula:"pk generated:sequence(cached=false)"`
}

type Badge struct {
	Code int8 `tabula:"pk generated:max"`
}

type BadParam struct {
	ID int64 `tabula:"pk generated:max(start=5)"`
}

var maxInvoice = regexp.QuoteMeta("SELECT MAX(number) FROM invoice")

func bound(t *testing.T, entity any) *MaxSequence {
	t.Helper()
	m, err := model.GetModel(entity)
	require.NoError(t, err)
	require.NotNil(t, m.PKField.Generator)
	return m.PKField.Generator.Generator.(*MaxSequence)
}

func TestCachedSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := bound(t, Invoice{})
	assert.Equal(t, "SELECT MAX(number) FROM invoice", g.Query(nil))

	mock.ExpectQuery(maxInvoice).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(40)))

	ctx := context.Background()
	v, err := g.NextValue(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), v)

	v, err = g.NextValue(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60), v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUncachedSequenceRequeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := bound(t, Ticket{})
	query := regexp.QuoteMeta("SELECT MAX(number) FROM ticket")
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(7)))
	mock.ExpectQuery(query).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(20)))

	ctx := context.Background()
	v, err := g.NextValue(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int16(8), v)

	v, err = g.NextValue(ctx, db, nil)
	require.NoError(t, err)
	assert.Equal(t, int16(21), v)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyTableStartsAtStep(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := &MaxSequence{}
	m, err := model.GetModel(Invoice{})
	require.NoError(t, err)
	require.NoError(t, g.Init(model.GeneratorDecl{Step: 1, Cached: true}, m.PKField, m))

	mock.ExpectQuery(maxInvoice).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	v, err := g.NextValue(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNarrowOverflow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := bound(t, Badge{})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(code) FROM badge")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(127)))

	_, err = g.NextValue(context.Background(), db, nil)
	assert.ErrorContains(t, err, "overflows int8")
}

func TestQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := &MaxSequence{}
	m, err := model.GetModel(Invoice{})
	require.NoError(t, err)
	require.NoError(t, g.Init(model.GeneratorDecl{Step: 1}, m.PKField, m))

	mock.ExpectQuery(maxInvoice).WillReturnError(assert.AnError)
	_, err = g.NextValue(context.Background(), db, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestUnknownParameter(t *testing.T) {
	_, err := model.GetModel(BadParam{})
	var ae *model.AnnotationError
	assert.ErrorAs(t, err, &ae)
}

func TestConcurrentCallersGetDistinctKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := &MaxSequence{}
	m, err := model.GetModel(Invoice{})
	require.NoError(t, err)
	require.NoError(t, g.Init(model.GeneratorDecl{Step: 1, Cached: true}, m.PKField, m))
	mock.ExpectQuery(maxInvoice).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(0)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := g.NextValue(context.Background(), db, nil)
			if err != nil {
				return
			}
			mu.Lock()
			seen[v.(int64)] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

type doubleQuotes struct{}

func (doubleQuotes) Quote(name string) string { return `"` + name + `"` }

func TestQuotedNames(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	g := bound(t, Invoice{})
	assert.Equal(t, `SELECT MAX("number") FROM "invoice"`, g.Query(doubleQuotes{}))

	g = &MaxSequence{}
	m, err := model.GetModel(Invoice{})
	require.NoError(t, err)
	require.NoError(t, g.Init(model.GeneratorDecl{Step: 1}, m.PKField, m))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("number") FROM "invoice"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(3)))
	v, err := g.NextValue(context.Background(), db, doubleQuotes{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}
