package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tablelens/tablelens/internal/filter"
	"github.com/tablelens/tablelens/internal/source"
)

func TestListTables(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "postgres", Schema: "public"}, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name ASC`)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("accounts").AddRow("orders"))

	tables, err := src.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"accounts", "orders"}) {
		t.Fatalf("tables = %#v", tables)
	}
	assertSQLMock(t, mock)
}

func TestColumnTypesClassifiesInOrdinalOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "postgres", Schema: "public"}, Options{})

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position ASC`)).
		WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("order_id", "uuid").
			AddRow("amount", "numeric").
			AddRow("paid", "boolean").
			AddRow("placed_at", "timestamp with time zone").
			AddRow("note", "text"))

	columns, err := src.ColumnTypes(context.Background(), "orders")
	if err != nil {
		t.Fatalf("ColumnTypes() error = %v", err)
	}
	want := []filter.Family{filter.FamilyIdentifier, filter.FamilyNumeric, filter.FamilyBoolean, filter.FamilyTemporal, filter.FamilyText}
	if len(columns) != len(want) {
		t.Fatalf("columns = %#v", columns)
	}
	for i, col := range columns {
		if col.Family != want[i] {
			t.Fatalf("columns[%d] = %#v, want family %s", i, col, want[i])
		}
	}
	if columns[0].Name != "order_id" || columns[3].RawType != "timestamp with time zone" {
		t.Fatalf("columns = %#v", columns)
	}
	assertSQLMock(t, mock)
}

func TestColumnTypesUnknownTable(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "duckdb", Schema: "main"}, Options{})

	mock.ExpectQuery("SELECT column_name, data_type").
		WithArgs("main", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}))

	_, err := src.ColumnTypes(context.Background(), "missing")
	if !errors.Is(err, source.ErrTableNotFound) {
		t.Fatalf("ColumnTypes() error = %v, want %v", err, source.ErrTableNotFound)
	}
	assertSQLMock(t, mock)
}

func TestExecuteNormalizesValues(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "postgres", Schema: "public"}, Options{StatementTimeout: time.Second})
	placed := time.Date(2024, 3, 1, 10, 15, 0, 0, time.FixedZone("x", 3600))
	rawID := [16]byte{0x0b, 0x4f, 0x2d, 0x1c, 0x8c, 0x4e, 0x4b, 0x8e, 0x9a, 0x57, 0x6f, 0x1f, 0x0f, 0x7c, 0x1a, 0x10}

	sqlText := `SELECT "id", "note", "placed_at", "paid", "qty" FROM "orders" WHERE "qty" > $1 LIMIT 500`
	mock.ExpectQuery(regexp.QuoteMeta(sqlText)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "note", "placed_at", "paid", "qty"}).
			AddRow(rawID, []byte("gift"), placed, true, int64(3)).
			AddRow("plain", nil, nil, false, int64(4)))

	rows, err := src.Execute(context.Background(), sqlText, []any{int64(2)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(rows.Columns, []string{"id", "note", "placed_at", "paid", "qty"}) {
		t.Fatalf("Columns = %#v", rows.Columns)
	}
	if len(rows.Values) != 2 {
		t.Fatalf("Values = %#v", rows.Values)
	}
	first := rows.Values[0]
	if first[0] != "0b4f2d1c-8c4e-4b8e-9a57-6f1f0f7c1a10" {
		t.Fatalf("uuid value = %#v", first[0])
	}
	if first[1] != "gift" {
		t.Fatalf("bytes value = %#v", first[1])
	}
	if first[2] != "2024-03-01T09:15:00Z" {
		t.Fatalf("time value = %#v", first[2])
	}
	if first[3] != true || first[4] != int64(3) {
		t.Fatalf("row = %#v", first)
	}
	if rows.Values[1][1] != nil {
		t.Fatalf("null value = %#v", rows.Values[1][1])
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsDriverErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "postgres", Schema: "public"}, Options{})

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))
	_, err := src.Execute(context.Background(), `SELECT "a" FROM "t" LIMIT 500`, nil)
	if err == nil || err.Error() != "execute query: relation does not exist" {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestPing(t *testing.T) {
	db, mock := newSQLMock(t)
	src := New(db, Dialect{Name: "postgres", Schema: "public"}, Options{})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if err := src.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	errDown := errors.New("server closed the connection")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnError(errDown)
	if err := src.Ping(context.Background()); !errors.Is(err, errDown) {
		t.Fatalf("Ping() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
