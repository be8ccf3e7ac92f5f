package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"users-api/internal/domain/user"
	"users-api/pkg/logger"
)

// UserRepo implements the user Repository port on top of GORM. It works
// with any dialector the service supports (MySQL, PostgreSQL, SQLite).
type UserRepo struct {
	db  *gorm.DB    // Shared connection pool
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepo creates a new instance of UserRepo.
func NewUserRepo(db *gorm.DB, log *zap.Logger) *UserRepo {
	return &UserRepo{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"` // Unique identifier with auto-increment
	Name  string `gorm:"not null"`                 // User's name (required)
	Email string `gorm:"not null"`                 // User's email address (required)
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// List returns every row of the users table in storage order.
func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = user.User{
			ID:    model.ID,
			Name:  model.Name,
			Email: model.Email,
		}
	}

	return users, nil
}

// Create inserts a new user and returns the storage-assigned ID.
func (r *UserRepo) Create(ctx context.Context, u *user.User) (int64, error) {
	if u == nil {
		return 0, errors.New("user cannot be nil")
	}

	model := UserSchema{
		Name:  u.Name,
		Email: u.Email,
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to create user in db", zap.Error(err))
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	logger.WithContext(ctx, r.log).Debug("user created in db", zap.Int64("id", model.ID))
	return model.ID, nil
}

// Delete removes the user with the given ID and returns the number of rows
// affected, zero when no row matched.
func (r *UserRepo) Delete(ctx context.Context, id int64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if result.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(result.Error), zap.Int64("id", id))
		return 0, fmt.Errorf("failed to delete user: %w", result.Error)
	}

	logger.WithContext(ctx, r.log).Debug("delete user in db",
		zap.Int64("id", id),
		zap.Int64("rows_affected", result.RowsAffected),
	)
	return result.RowsAffected, nil
}
