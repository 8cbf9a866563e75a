package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiosum-dev/contexted/internal/orm/changeset"
	"github.com/curiosum-dev/contexted/internal/orm/query"
)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, catalogSchemas(), query.Postgres), mock
}

func TestGet(t *testing.T) {
	r, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT categories\.\* FROM categories WHERE categories\.id = \$1 LIMIT \$2`).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Lamps"))

	record, err := r.Get(ctx, "Category", 1)
	require.NoError(t, err)
	assert.Equal(t, "Lamps", record["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Missing(t *testing.T) {
	r, mock := newMockRepo(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT categories\.\* FROM categories WHERE categories\.id = \$1 LIMIT \$2`).
			WithArgs(42, 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	}

	record, err := r.Get(ctx, "Category", 42)
	assert.NoError(t, err)
	assert.Nil(t, record)

	record, err = r.MustGet(ctx, "Category", 42)
	assert.Nil(t, record)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_UnknownResource(t *testing.T) {
	r, _ := newMockRepo(t)

	_, err := r.Get(context.Background(), "Warehouse", 1)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestOne_MultipleResults(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT categories\.\* FROM categories WHERE categories\.name = \$1 LIMIT \$2`).
		WithArgs("Lamps", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Lamps").AddRow(2, "Lamps"))

	qb, err := r.Filter("Category", query.Filter{"name": "Lamps"})
	require.NoError(t, err)

	_, err = r.One(context.Background(), qb)
	assert.ErrorIs(t, err, ErrMultipleResults)
	assert.NoError(t, mock.ExpectationsWereMet())

	statement, args, err := qb.ToSQL()
	require.NoError(t, err)
	assert.NotContains(t, statement, "LIMIT", "One limits a copy of the builder")
	assert.Equal(t, []interface{}{"Lamps"}, args)
}

func TestMustOne_Missing(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT categories\.\* FROM categories`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	qb, _ := r.Query("Category")
	_, err := r.MustOne(context.Background(), qb)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAll_FilterThroughAssociation(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT subcategories\.\* FROM subcategories LEFT JOIN categories AS category ON category\.id = subcategories\.category_id WHERE category\.name = \$1`).
		WithArgs("Lamps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category_id"}).
			AddRow(1, []byte("Desk"), 1).
			AddRow(2, []byte("Floor"), 1))

	qb, err := r.Filter("Subcategory", query.Filter{"category": query.Filter{"name": "Lamps"}})
	require.NoError(t, err)

	records, err := r.All(context.Background(), qb)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Desk", records[0]["name"], "byte values are returned as strings")
}

func TestCount(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT categories\.id\) FROM categories`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	qb, _ := r.Query("Category")
	count, err := r.Count(context.Background(), qb)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestInsert(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO categories \(name\) VALUES \(\$1\) RETURNING \*`).
		WithArgs("Lamps").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(7, "Lamps"))

	cs := changeset.Cast(nil, map[string]interface{}{"name": "Lamps"}, []string{"name"})
	record, err := r.Insert(context.Background(), "Category", cs)
	require.NoError(t, err)
	assert.EqualValues(t, 7, record["id"])
}

func TestInsert_GeneratesUUIDKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db, catalogSchemas(), query.Postgres, WithIDGenerator(func() string { return "tag-1" }))

	mock.ExpectQuery(`INSERT INTO tags \(id, label\) VALUES \(\$1, \$2\) RETURNING \*`).
		WithArgs("tag-1", "new").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow("tag-1", "new"))

	cs := changeset.Cast(nil, map[string]interface{}{"label": "new"}, []string{"label"})
	record, err := r.Insert(context.Background(), "Tag", cs)
	require.NoError(t, err)
	assert.Equal(t, "tag-1", record["id"])
}

func TestInsert_InvalidChangeset(t *testing.T) {
	r, mock := newMockRepo(t)
	s, _ := r.Schema("Category")

	cs := changeset.CastResource(s, nil, map[string]interface{}{}, nil).ValidateSchema()

	_, err := r.Insert(context.Background(), "Category", cs)
	var csErr *changeset.Error
	require.True(t, errors.As(err, &csErr))
	assert.NotErrorIs(t, err, ErrInvalidChangeset)

	_, err = r.MustInsert(context.Background(), "Category", cs)
	assert.ErrorIs(t, err, ErrInvalidChangeset)
	assert.True(t, errors.As(err, &csErr))
	assert.True(t, IsInvalidChangeset(err))

	assert.NoError(t, mock.ExpectationsWereMet(), "no statement is sent for an invalid changeset")
}

func TestInsert_UniqueViolation(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO categories`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (name)=(Lamps) already exists."})

	cs := changeset.Cast(nil, map[string]interface{}{"name": "Lamps"}, []string{"name"})
	_, err := r.Insert(context.Background(), "Category", cs)
	assert.True(t, IsUniqueViolation(err))
}

func TestUpdate(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE categories SET name = \$1 WHERE id = \$2 RETURNING \*`).
		WithArgs("Floor lamps", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Floor lamps"))

	cs := changeset.Cast(Record{"id": 1, "name": "Lamps"}, map[string]interface{}{"name": "Floor lamps"}, []string{"name"})
	record, err := r.Update(context.Background(), "Category", cs)
	require.NoError(t, err)
	assert.Equal(t, "Floor lamps", record["name"])
}

func TestUpdate_NoChanges(t *testing.T) {
	r, mock := newMockRepo(t)

	cs := changeset.Cast(Record{"id": 1, "name": "Lamps"}, nil, []string{"name"})
	record, err := r.Update(context.Background(), "Category", cs)
	require.NoError(t, err)
	assert.Equal(t, Record{"id": 1, "name": "Lamps"}, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Errors(t *testing.T) {
	r, mock := newMockRepo(t)
	ctx := context.Background()

	_, err := r.Update(ctx, "Category", changeset.Cast(Record{"name": "x"}, nil, nil))
	assert.ErrorIs(t, err, ErrMissingPrimaryKey)

	mock.ExpectQuery(`UPDATE categories`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	cs := changeset.Cast(Record{"id": 9}, map[string]interface{}{"name": "y"}, []string{"name"})
	_, err = r.MustUpdate(ctx, "Category", cs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`DELETE FROM categories WHERE id = \$1 RETURNING \*`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Lamps"))
	mock.ExpectQuery(`DELETE FROM categories WHERE id = \$1 RETURNING \*`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	cs := changeset.New(nil, Record{"id": 1})
	record, err := r.Delete(context.Background(), "Category", cs)
	require.NoError(t, err)
	assert.Equal(t, "Lamps", record["name"])

	_, err = r.MustDelete(context.Background(), "Category", cs)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreload_Postgres(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "subcategories" WHERE "category_id" = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category_id"}).
			AddRow(10, "Desk", 1).
			AddRow(11, "Floor", 1))

	records := []Record{{"id": 1, "name": "Lamps"}, {"id": 2, "name": "Empty"}}
	err := r.Preload(context.Background(), "Category", records, "subcategories")
	require.NoError(t, err)

	assert.Len(t, records[0]["subcategories"], 2)
	assert.NotNil(t, records[1]["subcategories"])
	assert.Len(t, records[1]["subcategories"], 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreload_Errors(t *testing.T) {
	r, _ := newMockRepo(t)

	err := r.Preload(context.Background(), "Category", nil, "items")
	assert.ErrorIs(t, err, ErrUnknownAssociation)
}

func TestTransaction(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Lamps"))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := r.Transaction(context.Background(), func(tx *Repo) error {
		cs := changeset.Cast(nil, map[string]interface{}{"name": "Lamps"}, []string{"name"})
		if _, err := tx.Insert(context.Background(), "Category", cs); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrUniqueViolation},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolation},
		{"check", &pgconn.PgError{Code: "23514"}, ErrCheckViolation},
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "name"}, ErrNotNullViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}

	assert.NoError(t, ConvertDBError(nil))
	other := errors.New("connection reset")
	assert.Equal(t, other, ConvertDBError(other))
}
