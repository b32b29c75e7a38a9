package models

import "time"

// Credential is a stored OAuth grant for one integration and subject. The
// subject is a user id for calendar access and a fixed name for the system
// email account.
type Credential struct {
	ID           uint64    `gorm:"primarykey" json:"-"`
	Integration  string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_credential_subject" json:"integration"`
	Subject      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_credential_subject" json:"subject"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenType    string    `gorm:"type:varchar(20)" json:"-"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `gorm:"type:text" json:"scope"`
	AccountEmail string    `gorm:"type:varchar(255)" json:"account_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Credential) TableName() string {
	return "oauth_credentials"
}

// Expired reports whether the access token can no longer be used at now
func (c *Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}
