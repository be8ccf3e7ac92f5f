package user

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "users-api/internal/domain/user"
	apperrors "users-api/pkg/errors"
	"users-api/pkg/logger"
)

// Client-facing messages, kept stable for API consumers.
const (
	MsgNameEmailRequired = "Name and email are required"
	MsgUserNotFound      = "User not found"
)

// Repository defines the interface for user data access operations.
// Each call issues exactly one statement against the users table.
type Repository interface {
	List(ctx context.Context) ([]domain.User, error)           // Full-table scan in storage order
	Create(ctx context.Context, u *domain.User) (int64, error) // Insert, returns the assigned ID
	Delete(ctx context.Context, id int64) (int64, error)       // Delete by ID, returns rows affected
}

// Usecase implements the business logic for user management operations.
type Usecase struct {
	repo     Repository
	log      *zap.Logger
	validate *validator.Validate
}

var _ UserUsecase = (*Usecase)(nil)

// New creates a new instance of Usecase with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Usecase {
	return &Usecase{repo: r, log: log, validate: validator.New()}
}

// failedFields lists the struct fields rejected by the validator.
func failedFields(err error) []string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	fields := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, e.Field())
	}
	return fields
}

// ListUsers returns every stored user. An empty table yields an empty,
// non-nil slice.
func (uc *Usecase) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = User{
			ID:    du.ID,
			Name:  du.Name,
			Email: du.Email,
		}
	}

	log.Debug("listed users", zap.Int("count", len(users)))
	return &ListUsersResponse{Users: users}, nil
}

// CreateUser validates that name and email are present and inserts a new user.
// Storage is not touched when validation fails.
func (uc *Usecase) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("create user validation failed", zap.String("fields", strings.Join(failedFields(err), ",")))
		return nil, apperrors.NewValidationError("", MsgNameEmailRequired)
	}

	id, err := uc.repo.Create(ctx, &domain.User{
		Name:  in.Name,
		Email: in.Email,
	})
	if err != nil {
		log.Error("failed to create user", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to create user", err)
	}

	log.Info("user created", zap.Int64("id", id))
	return &CreateUserResponse{
		ID:    id,
		Name:  in.Name,
		Email: in.Email,
	}, nil
}

// DeleteUser removes the user with the given ID. It reports NotFoundError
// when no row matched.
func (uc *Usecase) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	// Storage only issues positive IDs
	if in.ID <= 0 {
		log.Warn("delete user with non-positive id", zap.Int64("id", in.ID))
		return nil, apperrors.NewNotFoundError("user", MsgUserNotFound)
	}

	affected, err := uc.repo.Delete(ctx, in.ID)
	if err != nil {
		log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, apperrors.NewInternalError("failed to delete user", err)
	}
	if affected == 0 {
		log.Info("user to delete not found", zap.Int64("id", in.ID))
		return nil, apperrors.NewNotFoundError("user", MsgUserNotFound)
	}

	log.Info("user deleted", zap.Int64("id", in.ID))
	return &DeleteUserResponse{ID: in.ID}, nil
}
