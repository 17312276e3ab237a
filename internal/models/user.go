package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a registered account. Password holds the bcrypt hash and never leaves the server.
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email;not null" json:"email"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Company   *string   `gorm:"type:varchar(255)" json:"company"`
	Phone     *string   `gorm:"type:varchar(20)" json:"phone"`
	Avatar    *string   `gorm:"type:text" json:"avatar"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	resetStamps(&u.CreatedAt, &u.UpdatedAt)
	return assignID(&u.ID)
}
