// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Role         string     `db:"role"`
	Approved     bool       `db:"approved"`
	Tier         string     `db:"tier"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)
