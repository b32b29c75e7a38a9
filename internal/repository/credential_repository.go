package repository

import (
	"context"

	"github.com/yukikurage/taskwise/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCredentialRepository is a GORM implementation of CredentialRepository
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new CredentialRepository
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

// Find returns the credential for the integration and subject
func (r *GormCredentialRepository) Find(ctx context.Context, integration, subject string) (*models.Credential, error) {
	var cred models.Credential
	err := r.db.WithContext(ctx).
		Where("integration = ? AND subject = ?", integration, subject).
		First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// Upsert inserts the credential or overwrites the token columns of the
// existing row for the same integration and subject. Concurrent writers
// resolve as last write wins; each row is always one complete token set.
func (r *GormCredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "integration"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token",
				"refresh_token",
				"token_type",
				"expiry",
				"scope",
				"account_email",
				"updated_at",
			}),
		}).
		Create(cred).Error
}

// Delete removes the credential
func (r *GormCredentialRepository) Delete(ctx context.Context, integration, subject string) error {
	return r.db.WithContext(ctx).
		Where("integration = ? AND subject = ?", integration, subject).
		Delete(&models.Credential{}).Error
}
