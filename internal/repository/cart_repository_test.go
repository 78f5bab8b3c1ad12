package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-identity/internal/model"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *CartRepo, func() *WishlistRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, func() *CartRepo { return NewCartRepo(db) }, func() *WishlistRepo { return NewWishlistRepo(db) }
}

func TestCartRepo_Get(t *testing.T) {
	mock, carts, _ := newMock(t)
	owner := model.GuestOwner("8b0e6a9c-2f6e-4d57-9a51-0a3c8f4e7b21")
	added := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT items, updated_at FROM carts WHERE owner_kind=\? AND owner_id=\?`).
		WithArgs("guest", owner.ID()).
		WillReturnRows(sqlmock.NewRows([]string{"items", "updated_at"}).
			AddRow([]byte(`[{"productId":"p1","quantity":2,"price":1500,"selectedColor":"red","addedAt":"2026-01-02T03:04:05Z"}]`), added))

	got, err := carts().Get(context.Background(), owner)
	require.NoError(t, err)

	want := &model.Cart{
		Owner:     owner,
		UpdatedAt: added,
		Items: []model.CartItem{
			{ProductID: "p1", Quantity: 2, Price: 1500, SelectedColor: "red", AddedAt: added},
		},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(model.OwnerKey{})); diff != "" {
		t.Fatalf("cart mismatch (-want +got):\n%s", diff)
	}
}

func TestCartRepo_GetMissing(t *testing.T) {
	mock, carts, _ := newMock(t)
	mock.ExpectQuery(`SELECT items, updated_at FROM carts`).
		WillReturnRows(sqlmock.NewRows([]string{"items", "updated_at"}))

	_, err := carts().Get(context.Background(), model.UserOwner("usr_1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartRepo_SaveAndDiscard(t *testing.T) {
	mock, carts, _ := newMock(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cart := &model.Cart{Owner: model.UserOwner("usr_1"), UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO carts .* ON DUPLICATE KEY UPDATE`).
		WithArgs("user", "usr_1", []byte("[]"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM carts WHERE owner_kind=\? AND owner_id=\?`).
		WithArgs("guest", "sess").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, carts().SaveAndDiscard(context.Background(), cart, model.GuestOwner("sess")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartRepo_Rekey(t *testing.T) {
	from, to := model.GuestOwner("sess"), model.UserOwner("usr_1")

	t.Run("moved", func(t *testing.T) {
		mock, carts, _ := newMock(t)
		mock.ExpectExec(`UPDATE carts SET owner_kind=\?, owner_id=\?, updated_at=\? WHERE owner_kind=\? AND owner_id=\?`).
			WithArgs("user", "usr_1", sqlmock.AnyArg(), "guest", "sess").
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, carts().Rekey(context.Background(), from, to))
	})
	t.Run("nothing to move", func(t *testing.T) {
		mock, carts, _ := newMock(t)
		mock.ExpectExec(`UPDATE carts`).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, carts().Rekey(context.Background(), from, to), ErrNotFound)
	})
	t.Run("target exists", func(t *testing.T) {
		mock, carts, _ := newMock(t)
		mock.ExpectExec(`UPDATE carts`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
		assert.ErrorIs(t, carts().Rekey(context.Background(), from, to), ErrConflict)
	})
}

func TestWishlistRepo_RoundTrip(t *testing.T) {
	mock, _, wishlists := newMock(t)
	owner := model.UserOwner("usr_1")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO wishlists`).
		WithArgs("user", "usr_1", []byte(`["p1","p2"]`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT product_ids, updated_at FROM wishlists`).
		WithArgs("user", "usr_1").
		WillReturnRows(sqlmock.NewRows([]string{"product_ids", "updated_at"}).AddRow([]byte(`["p1","p2"]`), now))

	repo := wishlists()
	require.NoError(t, repo.Save(context.Background(), &model.Wishlist{Owner: owner, ProductIDs: []string{"p1", "p2"}, UpdatedAt: now}))

	got, err := repo.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, got.ProductIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
