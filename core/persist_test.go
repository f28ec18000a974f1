package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Sample struct {
	ID       int64 `tabula:"pk auto"`
	Small    int16
	Count    int32
	Big      int64
	Unsigned uint32
	Ratio    float32
	Score    float64
	Name     string `tabula:"size:64"`
	Code     string `tabula:"type:CHAR(4)"`
	Body     string `tabula:"type:TEXT"`
	Enabled  bool
	Day      time.Time `tabula:"type:DATE"`
	At       time.Time
	Payload  []byte
	Amount   decimal.Decimal `tabula:"size:12 precision:2"`
	Token    uuid.UUID
	Note     *string
	Missing  *int64
}

type Ticket struct {
	ID      int64 `tabula:"pk generated:max"`
	Subject string
}

type Order struct {
	ID   int64 `tabula:"pk generated:max"`
	Item string
}

type Note struct {
	ID   int32 `tabula:"pk auto"`
	Body string
}

type Audited struct {
	ID     int64 `tabula:"pk"`
	Name   string
	events []string
}

func (a *Audited) BeforeInsert() error { a.events = append(a.events, "before insert"); return nil }
func (a *Audited) AfterInsert() error  { a.events = append(a.events, "after insert"); return nil }
func (a *Audited) BeforeUpdate() error { a.events = append(a.events, "before update"); return nil }
func (a *Audited) AfterUpdate() error  { a.events = append(a.events, "after update"); return nil }
func (a *Audited) BeforeDelete() error { a.events = append(a.events, "before delete"); return nil }
func (a *Audited) AfterDelete() error  { a.events = append(a.events, "after delete"); return nil }

func TestRoundTripScalarTypes(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Schema().CreateTable(ctx, Sample{}))

	note := "hello"
	want := &Sample{
		Small:    -12,
		Count:    1 << 20,
		Big:      1 << 40,
		Unsigned: 4000000000,
		Ratio:    1.5,
		Score:    -2.25,
		Name:     "widget",
		Code:     "ABCD",
		Body:     "long text",
		Enabled:  true,
		Day:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		At:       time.Date(2024, 3, 15, 10, 30, 45, 123000000, time.UTC),
		Payload:  []byte{0, 1, 2, 255},
		Amount:   decimal.RequireFromString("1234.50"),
		Token:    uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Note:     &note,
	}
	require.NoError(t, db.Insert(ctx, want))
	require.NotZero(t, want.ID)

	got, err := Get[Sample](ctx, db, want.ID)
	require.NoError(t, err)

	assert.True(t, want.Day.Equal(got.Day), "day %v", got.Day)
	assert.True(t, want.At.Equal(got.At), "at %v", got.At)
	assert.True(t, want.Amount.Equal(got.Amount), "amount %v", got.Amount)
	require.NotNil(t, got.Note)
	assert.Equal(t, note, *got.Note)
	assert.Nil(t, got.Missing)

	got.Day, got.At, got.Amount, got.Note = want.Day, want.At, want.Amount, want.Note
	assert.Equal(t, want, got)
}

func TestGetConvertsPrimaryKey(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Schema().CreateTable(ctx, Note{}))

	n := &Note{Body: "first"}
	require.NoError(t, db.Insert(ctx, n))
	assert.Equal(t, int32(1), n.ID)

	got, err := Get[Note](ctx, db, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Body)

	_, err = Get[Note](ctx, db, int64(99))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestInsertStampsGeneratedKey(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Schema().CreateTable(ctx, Ticket{}))

	a := &Ticket{Subject: "a"}
	b := &Ticket{Subject: "b"}
	require.NoError(t, db.Insert(ctx, a))
	require.NoError(t, db.Insert(ctx, b))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	explicit := &Ticket{ID: 40, Subject: "c"}
	require.NoError(t, db.Insert(ctx, explicit))
	assert.Equal(t, int64(40), explicit.ID)

	all, err := Select[Ticket](ctx, db, "")
	require.NoError(t, err)
	tickets, err := all.Collect()
	require.NoError(t, err)
	assert.Len(t, tickets, 3)
}

func TestGeneratedKeyOnReservedTableName(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Schema().CreateTable(ctx, Order{}))

	first := &Order{Item: "x"}
	second := &Order{Item: "y"}
	require.NoError(t, db.Insert(ctx, first))
	require.NoError(t, db.Insert(ctx, second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	got, err := Get[Order](ctx, db, 2)
	require.NoError(t, err)
	assert.Equal(t, "y", got.Item)
}

func TestInsertReturningOnPostgres(t *testing.T) {
	db, mock := openMock(t, "postgres", nil)
	mock.ExpectQuery(`INSERT INTO "note" ("body") VALUES ($1) RETURNING "id"`).
		WithArgs("hi").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	n := &Note{Body: "hi"}
	require.NoError(t, db.Insert(context.Background(), n))
	assert.Equal(t, int32(5), n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAndDeleteRunHooks(t *testing.T) {
	db, mock := openMock(t, "mysql", nil)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO `audited` (`id`, `name`) VALUES (?, ?)").
		WithArgs(7, "a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `audited` SET `name` = ? WHERE `id` = ?").
		WithArgs("b", 7).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `audited` WHERE `id` = ?").
		WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 1))

	a := &Audited{ID: 7, Name: "a"}
	require.NoError(t, db.Insert(ctx, a))
	a.Name = "b"
	n, err := db.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = db.Delete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, []string{
		"before insert", "after insert",
		"before update", "after update",
		"before delete", "after delete",
	}, a.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsNonPointer(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	assert.ErrorIs(t, db.Insert(context.Background(), Note{}), ErrInvalidModel)
}

func TestInsertFailureCarriesStatement(t *testing.T) {
	db, mock := openMock(t, "sqlite3", nil)
	q := "INSERT INTO `note` (`body`) VALUES (?)"
	mock.ExpectExec(q).WillReturnError(assert.AnError)

	err := db.Insert(context.Background(), &Note{Body: "x"})
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, q, pe.Statement)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTransactionRollsBack(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, db.Schema().CreateTable(ctx, Note{}))

	boom := errors.New("boom")
	err := db.Transaction(ctx, func(tx *Tx) error {
		if err := tx.Insert(ctx, &Note{Body: "gone"}); err != nil {
			return err
		}
		got, err := Get[Note](ctx, tx, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, "gone", got.Body)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = Get[Note](ctx, db, 1)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, db.Transaction(ctx, func(tx *Tx) error {
		return tx.Insert(ctx, &Note{Body: "kept"})
	}))
	cur, err := Select[Note](ctx, db, "")
	require.NoError(t, err)
	notes, err := cur.Collect()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].Body)
}

func TestExecRejectsEmptySQL(t *testing.T) {
	db, _ := openMock(t, "sqlite3", nil)
	_, err := db.Exec(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSQL)
}
