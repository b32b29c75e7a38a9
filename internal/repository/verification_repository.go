package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/taskwise/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrMarkVerified is returned when flagging the code as used fails inside the verify transaction.
	ErrMarkVerified = errors.New("verification repository: mark code verified failed")
	// ErrCreateUser is returned when creating the user fails inside the verify transaction.
	ErrCreateUser = errors.New("verification repository: create user failed")
	// ErrCodeAlreadyUsed is returned when another request consumed the code first.
	ErrCodeAlreadyUsed = errors.New("verification repository: code already used")
)

// GormVerificationRepository is a GORM implementation of VerificationRepository
type GormVerificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository creates a new VerificationRepository
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &GormVerificationRepository{db: db}
}

// Create stores a new pending registration
func (r *GormVerificationRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// FindActive returns an unused, unexpired code for the email
func (r *GormVerificationRepository) FindActive(ctx context.Context, email string, now time.Time) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND verified = ? AND expires_at > ?", email, false, now).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// FindLatest returns the most recent code matching email and code
func (r *GormVerificationRepository) FindLatest(ctx context.Context, email, code string) (*models.VerificationCode, error) {
	var vc models.VerificationCode
	err := r.db.WithContext(ctx).
		Where("email = ? AND code = ?", email, code).
		Order("created_at DESC").
		Order("id DESC").
		First(&vc).Error
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

// Delete removes a pending registration
func (r *GormVerificationRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.VerificationCode{}, id).Error
}

// Consume marks the code as used and creates the user in one transaction.
// Any failure rolls both writes back.
func (r *GormVerificationRepository) Consume(ctx context.Context, code *models.VerificationCode, user *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.VerificationCode{}).
			Where("id = ? AND verified = ?", code.ID, false).
			Update("verified", true)
		if result.Error != nil {
			return fmt.Errorf("%w: %v", ErrMarkVerified, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrCodeAlreadyUsed
		}

		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrCreateUser, err)
		}

		code.Verified = true
		return nil
	})
}
