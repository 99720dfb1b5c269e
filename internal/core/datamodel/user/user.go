package user

import "time"

type User struct {
	ID           int64      `gorm:"primaryKey"`
	Username     string     `gorm:"column:username;size:150;uniqueIndex;not null"`
	Email        string     `gorm:"column:email;size:254;uniqueIndex;not null"`
	FirstName    string     `gorm:"column:first_name;size:150"`
	LastName     string     `gorm:"column:last_name;size:150"`
	Role         string     `gorm:"column:role;size:20;not null;index"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	IsStaff      bool       `gorm:"column:is_staff;not null"`
	IsSuperuser  bool       `gorm:"column:is_superuser;not null"`
	DateJoined   time.Time  `gorm:"column:date_joined;autoCreateTime"`
	LastLogin    *time.Time `gorm:"column:last_login"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
