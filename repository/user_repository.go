package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crates/model"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
// Lookups return nil, nil when no row matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetVerificationToken(ctx context.Context, userID int64, token string) error
	MarkVerified(ctx context.Context, userID int64, token string) (bool, error)
	SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, userID int64, token, passwordHash string, now time.Time) (bool, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser inserts user and fills in its ID.
func (r *gormUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// SetVerificationToken overwrites the stored verification token.
func (r *gormUserRepository) SetVerificationToken(ctx context.Context, userID int64, token string) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("verification_token", token).Error
	if err != nil {
		return fmt.Errorf("failed to store verification token for user %d: %w", userID, err)
	}
	return nil
}

// MarkVerified flips the user to verified only while token is still the
// stored one, clearing it in the same statement.
func (r *gormUserRepository) MarkVerified(ctx context.Context, userID int64, token string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND is_verified = ? AND verification_token = ?", userID, false, token).
		Updates(map[string]interface{}{
			"is_verified":        true,
			"verification_token": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark user %d verified: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormUserRepository) SetResetToken(ctx context.Context, userID int64, token string, expires time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"reset_token":         token,
			"reset_token_expires": expires,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to store reset token for user %d: %w", userID, err)
	}
	return nil
}

// ConsumeResetToken sets the new password hash if token is the stored,
// unexpired reset token. The token is cleared in the same UPDATE, so a
// second call with the same token reports false.
func (r *gormUserRepository) ConsumeResetToken(ctx context.Context, userID int64, token, passwordHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND reset_token = ? AND reset_token_expires > ?", userID, token, now).
		Updates(map[string]interface{}{
			"password_hash":       passwordHash,
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reset password for user %d: %w", userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
