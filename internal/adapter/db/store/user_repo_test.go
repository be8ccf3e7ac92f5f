package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"users-api/internal/domain/user"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection to ":memory:" would open its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&UserSchema{}))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return db, mock
}

func TestUserRepo_CreateAndList(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	id1, err := repo.Create(ctx, &user.User{Name: "John Doe", Email: "john@example.com"})
	require.NoError(t, err)
	id2, err := repo.Create(ctx, &user.User{Name: "Jane Smith", Email: "jane@example.com"})
	require.NoError(t, err)

	assert.Positive(t, id1)
	assert.NotEqual(t, id1, id2)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []user.User{
		{ID: id1, Name: "John Doe", Email: "john@example.com"},
		{ID: id2, Name: "Jane Smith", Email: "jane@example.com"},
	}, users)
}

func TestUserRepo_List_EmptyTable(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))

	users, err := repo.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserRepo_Create_NilUser(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))

	_, err := repo.Create(context.Background(), nil)
	assert.EqualError(t, err, "user cannot be nil")
}

func TestUserRepo_Delete(t *testing.T) {
	repo := NewUserRepo(setupTestDB(t), zaptest.NewLogger(t))
	ctx := context.Background()

	keep, err := repo.Create(ctx, &user.User{Name: "Keep", Email: "keep@example.com"})
	require.NoError(t, err)
	drop, err := repo.Create(ctx, &user.User{Name: "Drop", Email: "drop@example.com"})
	require.NoError(t, err)

	affected, err := repo.Delete(ctx, drop)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.Delete(ctx, drop)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected, "second delete matches nothing")

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, keep, users[0].ID)
}

func TestUserRepo_MySQLStatements(t *testing.T) {
	t.Run("list issues a full table select", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users`")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
				AddRow(1, "John Doe", "john@example.com").
				AddRow(2, "Jane Smith", "jane@example.com"))

		users, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []user.User{
			{ID: 1, Name: "John Doe", Email: "john@example.com"},
			{ID: 2, Name: "Jane Smith", Email: "jane@example.com"},
		}, users)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create issues a single auto-committed insert", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users` (`name`,`email`) VALUES (?,?)")).
			WithArgs("John Doe", "john@example.com").
			WillReturnResult(sqlmock.NewResult(5, 1))

		id, err := repo.Create(context.Background(), &user.User{Name: "John Doe", Email: "john@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete is keyed on id and reports rows affected", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `users` WHERE `users`.`id` = ?")).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		affected, err := repo.Delete(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepo_StorageErrors(t *testing.T) {
	storageErr := errors.New("connection refused")

	t.Run("list", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))
		mock.ExpectQuery("SELECT").WillReturnError(storageErr)

		users, err := repo.List(context.Background())
		assert.Nil(t, users)
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("create", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))
		mock.ExpectExec("INSERT").WillReturnError(storageErr)

		_, err := repo.Create(context.Background(), &user.User{Name: "a", Email: "b"})
		assert.ErrorIs(t, err, storageErr)
	})

	t.Run("delete", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewUserRepo(db, zaptest.NewLogger(t))
		mock.ExpectExec("DELETE").WillReturnError(storageErr)

		_, err := repo.Delete(context.Background(), 1)
		assert.ErrorIs(t, err, storageErr)
	})
}
