package models

import "time"

// Credential holds the salted password digest of an account.
type Credential struct {
	Salt string `json:"-" bson:"salt" gorm:"type:varchar(64)"`
	Hash string `json:"-" bson:"hash" gorm:"type:varchar(128)"`
}

// Profile is the public part of an account.
type Profile struct {
	Username string `json:"username" bson:"username" gorm:"type:varchar(100)"`
}

// Account represents a marketplace user.
type Account struct {
	ID         string     `json:"_id" bson:"_id,omitempty" gorm:"primaryKey;type:varchar(36)"`
	Email      string     `json:"email" bson:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Profile    Profile    `json:"account" bson:"account" gorm:"embedded;embeddedPrefix:account_"`
	Newsletter bool       `json:"newsletter" bson:"newsletter"`
	Credential Credential `json:"-" bson:",inline" gorm:"embedded"`
	// Token is issued once at signup and never rotated.
	Token string `json:"-" bson:"token" gorm:"index;type:varchar(64)"`

	FailedLoginCount int        `json:"-" bson:"loginTry"`
	LockUntil        *time.Time `json:"-" bson:"lockedUntil,omitempty"`

	CreatedAt time.Time `json:"-" bson:"created_at"`
	UpdatedAt time.Time `json:"-" bson:"updated_at"`
}
