package models

import "time"

// VerificationCode holds a pending registration until its emailed code is confirmed.
type VerificationCode struct {
	ID           uint64    `gorm:"primarykey" json:"-"`
	Email        string    `gorm:"type:varchar(255);not null;index" json:"email"`
	Code         string    `gorm:"type:varchar(6);not null" json:"-"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

func (VerificationCode) TableName() string {
	return "email_verification_codes"
}

// Usable reports whether the code can still be consumed at now
func (v *VerificationCode) Usable(now time.Time) bool {
	return !v.Verified && now.Before(v.ExpiresAt)
}
