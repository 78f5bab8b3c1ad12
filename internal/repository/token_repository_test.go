package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-identity/internal/model"
	"github.com/iliyamo/storefront-identity/internal/utils"
)

var testNow = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func newTokenRepo(t *testing.T) (*TokenRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	r := NewTokenRepo(db, utils.NewTokenHasher("pepper"))
	r.now = func() time.Time { return testNow }
	return r, mock
}

func TestTokenRepo_Store(t *testing.T) {
	r, mock := newTokenRepo(t)
	exp := testNow.Add(14 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(insertRefreshSQL)).
		WithArgs(r.Hasher.Hash("raw"), "usr_1", testNow, exp, "iPhone", "10.0.0.1", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := r.Store(context.Background(), "usr_1", "raw", exp, model.ClientMeta{DeviceInfo: "iPhone", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const rotateUpdate = `UPDATE refresh_tokens SET revoked_at=\?, replaced_by_hash=\? WHERE token_hash=\? AND revoked_at IS NULL AND replaced_by_hash IS NULL AND expires_at > \?`

func TestTokenRepo_VerifyAndRotate_Success(t *testing.T) {
	r, mock := newTokenRepo(t)
	oldHash, newHash := r.Hasher.Hash("old"), r.Hasher.Hash("new")
	exp := testNow.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(rotateUpdate).
		WithArgs(testNow, newHash, oldHash, testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT user_id FROM refresh_tokens WHERE token_hash=\?`).
		WithArgs(oldHash).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("usr_1"))
	mock.ExpectExec(regexp.QuoteMeta(insertRefreshSQL)).
		WithArgs(newHash, "usr_1", testNow, exp, nil, nil, "curl/8").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := r.VerifyAndRotate(context.Background(), "old", NextRefresh{
		Raw: "new", ExpiresAt: exp, Meta: model.ClientMeta{UserAgent: "curl/8"},
	})
	require.NoError(t, err)
	assert.Equal(t, "usr_1", uid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_VerifyAndRotate_Failures(t *testing.T) {
	cols := []string{"user_id", "expires_at", "revoked_at", "replaced_by_hash"}
	rotatedAt := testNow.Add(-time.Minute)

	tests := []struct {
		name    string
		rows    *sqlmock.Rows
		want    error
		wantUID string
	}{
		{
			name: "unknown token",
			rows: sqlmock.NewRows(cols),
			want: ErrRefreshNotFound,
		},
		{
			name:    "already rotated",
			rows:    sqlmock.NewRows(cols).AddRow("usr_1", testNow.Add(time.Hour), rotatedAt, "succ"),
			want:    ErrRefreshReused,
			wantUID: "usr_1",
		},
		{
			name: "revoked by logout",
			rows: sqlmock.NewRows(cols).AddRow("usr_1", testNow.Add(time.Hour), rotatedAt, nil),
			want: ErrRefreshRevoked,
		},
		{
			name: "expired",
			rows: sqlmock.NewRows(cols).AddRow("usr_1", testNow.Add(-time.Second), nil, nil),
			want: ErrRefreshExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTokenRepo(t)
			mock.ExpectBegin()
			mock.ExpectExec(rotateUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT user_id, expires_at, revoked_at, replaced_by_hash FROM refresh_tokens`).
				WithArgs(r.Hasher.Hash("old")).
				WillReturnRows(tt.rows)
			mock.ExpectRollback()

			uid, err := r.VerifyAndRotate(context.Background(), "old", NextRefresh{Raw: "new", ExpiresAt: testNow.Add(time.Hour)})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.wantUID, uid)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTokenRepo_VerifyAndRotate_ReuseCarriesRotationTime(t *testing.T) {
	r, mock := newTokenRepo(t)
	rotatedAt := testNow.Add(-2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(rotateUpdate).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at", "replaced_by_hash"}).
			AddRow("usr_9", testNow.Add(time.Hour), rotatedAt, "succ"))
	mock.ExpectRollback()

	_, err := r.VerifyAndRotate(context.Background(), "old", NextRefresh{Raw: "new"})
	var reuse *ReuseError
	require.True(t, errors.As(err, &reuse))
	assert.Equal(t, "usr_9", reuse.UserID)
	assert.True(t, reuse.RotatedAt.Equal(rotatedAt))
}

func TestTokenRepo_VerifyAndRotate_InsertFailureRollsBack(t *testing.T) {
	r, mock := newTokenRepo(t)
	boom := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectExec(rotateUpdate).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT user_id FROM refresh_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("usr_1"))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnError(boom)
	mock.ExpectRollback()

	uid, err := r.VerifyAndRotate(context.Background(), "old", NextRefresh{Raw: "new"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, uid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_RevokeIsIdempotent(t *testing.T) {
	r, mock := newTokenRepo(t)
	q := `UPDATE refresh_tokens SET revoked_at=\? WHERE token_hash=\? AND revoked_at IS NULL AND expires_at > \?`

	mock.ExpectExec(q).WithArgs(testNow, r.Hasher.Hash("raw"), testNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(testNow, r.Hasher.Hash("raw"), testNow).WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := r.Revoke(context.Background(), "raw")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.Revoke(context.Background(), "raw")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_RevokeAll(t *testing.T) {
	r, mock := newTokenRepo(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE user_id=\? AND revoked_at IS NULL AND expires_at > \?`).
		WithArgs(testNow, "usr_1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := r.RevokeAll(context.Background(), "usr_1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_RevokeSkipsExpiredToken(t *testing.T) {
	r, mock := newTokenRepo(t)
	// the row exists but expires_at <= now, so nothing matches
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=\? WHERE token_hash=\? AND revoked_at IS NULL AND expires_at > \?`).
		WithArgs(testNow, r.Hasher.Hash("stale"), testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := r.Revoke(context.Background(), "stale")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_PurgeExpired(t *testing.T) {
	r, mock := newTokenRepo(t)
	cutoff := testNow.Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < \?`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := r.PurgeExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}

func TestNullString(t *testing.T) {
	assert.Equal(t, sql.NullString{}, nullString(""))
	assert.Equal(t, sql.NullString{String: "x", Valid: true}, nullString("x"))
}
