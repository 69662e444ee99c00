package storage

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/dernek/pkg/apierror"
)

func newMockRecordStore(t *testing.T, table Table) (*RecordStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecordStore(sqlx.NewDb(db, "postgres"), table), mock
}

func newSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), DBConfig{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func TestRecordStore_List_Postgres(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM members WHERE durum = $1 AND (ad ILIKE $2 OR soyad ILIKE $3 OR email ILIKE $4)`)).
		WithArgs("aktif", "%ay%", "%ay%", "%ay%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM members WHERE durum = $1 AND (ad ILIKE $2 OR soyad ILIKE $3 OR email ILIKE $4) ORDER BY id DESC LIMIT $5 OFFSET $6`)).
		WithArgs("aktif", "%ay%", "%ay%", "%ay%", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ad", "soyad"}).
			AddRow(int64(3), []byte("Ayşe"), "Yılmaz").
			AddRow(int64(2), []byte("Ayla"), "Demir"))

	rows, total, err := store.List(context.Background(), ListQuery{
		Limit:   10,
		Offset:  10,
		Search:  " ay ",
		Filters: map[string]string{"durum": "aktif"},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ayşe", rows[0]["ad"], "byte columns become strings")
	assert.Equal(t, int64(3), rows[0]["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_List_EmptyFilterIgnored(t *testing.T) {
	store, mock := newMockRecordStore(t, SocialAid)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM social_aid_applications`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM social_aid_applications ORDER BY id DESC LIMIT $1 OFFSET $2`)).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, total, err := store.List(context.Background(), ListQuery{Limit: 10, Filters: map[string]string{"durum": ""}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_List_UnknownFilter(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	_, _, err := store.List(context.Background(), ListQuery{Limit: 10, Filters: map[string]string{"password": "x"}})
	verr, ok := apierror.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "password", verr.Issues[0].Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Insert_Postgres(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO members (ad, durum, soyad) VALUES ($1, $2, $3) RETURNING *`)).
		WithArgs("Ayşe", "aktif", "Yılmaz").
		WillReturnRows(sqlmock.NewRows([]string{"id", "ad", "soyad", "durum"}).
			AddRow(int64(1), "Ayşe", "Yılmaz", "aktif"))

	row, err := store.Insert(context.Background(), Record{"ad": "Ayşe", "soyad": "Yılmaz"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, "aktif", row["durum"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Insert_RejectsUnknownColumns(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	_, err := store.Insert(context.Background(), Record{"ad": "Ayşe", "id": 5, "is_admin": true})
	verr, ok := apierror.AsValidation(err)
	require.True(t, ok)
	require.Len(t, verr.Issues, 2)
	assert.Equal(t, "id", verr.Issues[0].Field)
	assert.Equal(t, "is_admin", verr.Issues[1].Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Insert_UniqueViolation(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectQuery(`INSERT INTO members`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint \"members_email_key\""})

	_, err := store.Insert(context.Background(), Record{"ad": "Ayşe", "soyad": "Yılmaz", "email": "ayse@example.org"})
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindDuplicate, apiErr.Kind)
	assert.Equal(t, "Bu kayıt zaten mevcut", apiErr.Message)
	assert.NotContains(t, apiErr.Message, "members_email_key")
}

func TestRecordStore_Get_NotFound(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM members WHERE id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status())
	assert.Equal(t, "Üye bulunamadı", apiErr.Title)
}

func TestRecordStore_Update_Postgres(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE members SET durum = $1, telefon = $2 WHERE id = $3 RETURNING *`)).
		WithArgs("pasif", "555", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "durum"}).AddRow(int64(7), "pasif"))

	row, err := store.Update(context.Background(), 7, Record{"telefon": "555", "durum": "pasif"})
	require.NoError(t, err)
	assert.Equal(t, "pasif", row["durum"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_Update_EmptyBody(t *testing.T) {
	store, _ := newMockRecordStore(t, Members)

	_, err := store.Update(context.Background(), 7, Record{})
	_, ok := apierror.AsValidation(err)
	assert.True(t, ok)
}

func TestRecordStore_Delete(t *testing.T) {
	store, mock := newMockRecordStore(t, Members)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM members WHERE id = $1`)).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM members WHERE id = $1`)).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), 7))
	assert.ErrorIs(t, store.Delete(context.Background(), 8), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStore_DatabaseErrorIsUntagged(t *testing.T) {
	store, mock := newMockRecordStore(t, Donations)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("connection reset"))

	_, _, err := store.List(context.Background(), ListQuery{Limit: 10})
	require.Error(t, err)
	assert.Equal(t, apierror.KindUnexpected, apierror.KindOf(err))
}

func TestRecordStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store := NewRecordStore(newSQLiteDB(t), Members)

	first, err := store.Insert(ctx, Record{"ad": "Ayşe", "soyad": "Yılmaz", "email": "ayse@example.org"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first["id"])
	assert.Equal(t, "aktif", first["durum"])

	_, err = store.Insert(ctx, Record{"ad": "Mehmet", "soyad": "Kaya", "durum": "pasif"})
	require.NoError(t, err)

	rows, total, err := store.List(ctx, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Mehmet", rows[0]["ad"], "newest first")

	rows, total, err = store.List(ctx, ListQuery{Limit: 10, Search: "Yıl"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Ayşe", rows[0]["ad"])

	_, total, err = store.List(ctx, ListQuery{Limit: 10, Filters: map[string]string{"durum": "pasif"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	updated, err := store.Update(ctx, 1, Record{"telefon": "05550000000"})
	require.NoError(t, err)
	assert.Equal(t, "05550000000", updated["telefon"])

	_, err = store.Insert(ctx, Record{"ad": "Ayşe", "soyad": "Başka", "email": "ayse@example.org"})
	assert.True(t, apierror.IsKind(err, apierror.KindDuplicate))

	_, err = store.Update(ctx, 99, Record{"telefon": "1"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, 1))
	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, 1), ErrNotFound)
}

func TestRecordStore_SQLite_SocialAidDefaults(t *testing.T) {
	store := NewRecordStore(newSQLiteDB(t), SocialAid)

	row, err := store.Insert(context.Background(), Record{"beneficiary_id": "b-1", "yardim_turu": "gida"})
	require.NoError(t, err)
	assert.Equal(t, "beklemede", row["durum"])

	row, err = store.Insert(context.Background(), Record{"beneficiary_id": "b-1", "yardim_turu": "egitim", "durum": "onaylandi"})
	require.NoError(t, err)
	assert.Equal(t, "onaylandi", row["durum"])
}

func TestRecordStore_SQLite_CheckConstraint(t *testing.T) {
	store := NewRecordStore(newSQLiteDB(t), Donations)

	_, err := store.Insert(context.Background(), Record{"bagisci_adi": "Ali", "tutar": -5, "tur": "nakdi"})
	assert.True(t, apierror.IsKind(err, apierror.KindBadRequest))
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newSQLiteDB(t)
	require.NoError(t, RunMigrations(context.Background(), db))

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, len(Migrations()), applied)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), DBConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}
