package model

import "time"

type User struct {
	ID         string    `gorm:"primaryKey;size:128" json:"id"`
	FullName   string    `gorm:"column:full_name;size:255" json:"fullName"`
	Email      string    `gorm:"size:255;index" json:"email"`
	ProfilePic *string   `gorm:"column:profile_pic;size:512" json:"profilePic,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
